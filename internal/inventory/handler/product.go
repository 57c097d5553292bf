package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/service"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
)

// ProductHandler handles product endpoints
type ProductHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(svc *service.InventoryService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  log,
	}
}

// CreateProductRequest is the create payload. InitialStock seeds the ledger
// with a synthetic IN movement; current stock is otherwise never accepted
// from a client.
type CreateProductRequest struct {
	Name                 string   `json:"name" validate:"required,max=255"`
	SKU                  string   `json:"sku" validate:"required,max=100"`
	Barcode              *string  `json:"barcode,omitempty" validate:"omitempty,max=100"`
	Description          *string  `json:"description,omitempty"`
	Category             string   `json:"category" validate:"required,oneof=MEDICATION MEDICAL_SUPPLY EQUIPMENT CONSUMABLE OTHER"`
	Unit                 string   `json:"unit,omitempty" validate:"omitempty,max=50"`
	InitialStock         int      `json:"initial_stock,omitempty" validate:"gte=0"`
	MinStock             int      `json:"min_stock" validate:"gte=0"`
	MaxStock             *int     `json:"max_stock,omitempty" validate:"omitempty,gt=0"`
	CostPrice            *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	SalePrice            *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	Supplier             *string  `json:"supplier,omitempty" validate:"omitempty,max=255"`
	RequiresPrescription bool     `json:"requires_prescription,omitempty"`
	ControlledSubstance  bool     `json:"controlled_substance,omitempty"`
	AnvisaRegistry       *string  `json:"anvisa_registry,omitempty" validate:"omitempty,max=100"`
	ExpirationAlertDays  int      `json:"expiration_alert_days,omitempty" validate:"gte=0"`
}

// UpdateProductRequest is the update payload. There is deliberately no
// current_stock field; stock only changes through movements.
type UpdateProductRequest struct {
	Name                 string   `json:"name" validate:"required,max=255"`
	SKU                  string   `json:"sku" validate:"required,max=100"`
	Barcode              *string  `json:"barcode,omitempty" validate:"omitempty,max=100"`
	Description          *string  `json:"description,omitempty"`
	Category             string   `json:"category" validate:"required,oneof=MEDICATION MEDICAL_SUPPLY EQUIPMENT CONSUMABLE OTHER"`
	Unit                 string   `json:"unit,omitempty" validate:"omitempty,max=50"`
	MinStock             int      `json:"min_stock" validate:"gte=0"`
	MaxStock             *int     `json:"max_stock,omitempty" validate:"omitempty,gt=0"`
	CostPrice            *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	SalePrice            *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	Supplier             *string  `json:"supplier,omitempty" validate:"omitempty,max=255"`
	RequiresPrescription bool     `json:"requires_prescription,omitempty"`
	ControlledSubstance  bool     `json:"controlled_substance,omitempty"`
	AnvisaRegistry       *string  `json:"anvisa_registry,omitempty" validate:"omitempty,max=100"`
	ExpirationAlertDays  int      `json:"expiration_alert_days,omitempty" validate:"gte=0"`
	IsActive             *bool    `json:"is_active,omitempty"`
}

// List lists products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ProductFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		LowStock: r.URL.Query().Get("low_stock") == "true",
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / filter.PerPage
	if int(total)%filter.PerPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, &httputil.Meta{
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a product with its batch view
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Create creates a new product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	product := &repository.Product{
		Name:                 req.Name,
		SKU:                  req.SKU,
		Barcode:              req.Barcode,
		Description:          req.Description,
		Category:             req.Category,
		Unit:                 req.Unit,
		MinStock:             req.MinStock,
		MaxStock:             req.MaxStock,
		CostPrice:            req.CostPrice,
		SalePrice:            req.SalePrice,
		Supplier:             req.Supplier,
		RequiresPrescription: req.RequiresPrescription,
		ControlledSubstance:  req.ControlledSubstance,
		AnvisaRegistry:       req.AnvisaRegistry,
		ExpirationAlertDays:  req.ExpirationAlertDays,
		IsActive:             true,
	}
	if userID := httputil.GetUserID(r.Context()); userID != "" {
		product.CreatedBy = &userID
	}

	if err := h.service.CreateProduct(r.Context(), product, req.InitialStock); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, product)
}

// Update updates a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	product := &repository.Product{
		ID:                   id,
		Name:                 req.Name,
		SKU:                  req.SKU,
		Barcode:              req.Barcode,
		Description:          req.Description,
		Category:             req.Category,
		Unit:                 req.Unit,
		MinStock:             req.MinStock,
		MaxStock:             req.MaxStock,
		CostPrice:            req.CostPrice,
		SalePrice:            req.SalePrice,
		Supplier:             req.Supplier,
		RequiresPrescription: req.RequiresPrescription,
		ControlledSubstance:  req.ControlledSubstance,
		AnvisaRegistry:       req.AnvisaRegistry,
		ExpirationAlertDays:  req.ExpirationAlertDays,
		IsActive:             true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.service.UpdateProduct(r.Context(), product); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Delete soft deletes a product
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
