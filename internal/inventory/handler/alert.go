package handler

import (
	"net/http"
	"strconv"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/service"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
)

// AlertHandler serves the derived alert views. Alerts are queries over the
// projection and the ledger, not stored rows.
type AlertHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.InventoryService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// LowStock lists active products at or below their minimum stock
func (h *AlertHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListLowStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Expiring lists products with batches expiring within ?days (default 30)
func (h *AlertHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 365 {
			httputil.Error(w, errors.Validation(map[string]string{
				"days": "must be an integer between 1 and 365",
			}))
			return
		}
		days = parsed
	}

	expiring, err := h.service.ListExpiringSoon(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, expiring)
}
