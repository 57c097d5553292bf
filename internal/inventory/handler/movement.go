package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/service"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
)

// MovementHandler handles ledger endpoints
type MovementHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(svc *service.InventoryService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		service: svc,
		logger:  log,
	}
}

// RecordMovementRequest is the movement payload. For ADJUSTMENT, quantity is
// the absolute target stock (gte=0); every other type requires a positive
// amount, enforced again in the service.
type RecordMovementRequest struct {
	ProductID      string   `json:"product_id" validate:"required,uuid"`
	Type           string   `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT EXPIRED TRANSFER"`
	Quantity       int      `json:"quantity" validate:"gte=0"`
	UnitCost       *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	BatchNumber    *string  `json:"batch_number,omitempty" validate:"omitempty,max=100"`
	ExpirationDate *string  `json:"expiration_date,omitempty"`
	Reason         *string  `json:"reason,omitempty"`
	ReferenceID    *string  `json:"reference_id,omitempty" validate:"omitempty,uuid"`
	ReferenceType  *string  `json:"reference_type,omitempty" validate:"omitempty,max=50"`
}

// Record records a stock movement
func (h *MovementHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.MovementInput{
		ProductID:     req.ProductID,
		Type:          req.Type,
		Quantity:      req.Quantity,
		UnitCost:      req.UnitCost,
		BatchNumber:   req.BatchNumber,
		Reason:        req.Reason,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		PerformedBy:   httputil.GetUserID(r.Context()),
	}

	if req.ExpirationDate != nil && *req.ExpirationDate != "" {
		expiry, err := time.Parse("2006-01-02", *req.ExpirationDate)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{
				"expiration_date": "must be a date in YYYY-MM-DD format",
			}))
			return
		}
		input.ExpirationDate = &expiry
	}

	movement, err := h.service.RecordMovement(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, movement)
}

// ListByProduct lists a product's movements in ledger order
func (h *MovementHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	movements, total, err := h.service.ListMovements(r.Context(), productID, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}
