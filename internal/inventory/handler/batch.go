package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/service"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
)

// BatchHandler serves the derived FEFO batch view
type BatchHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.InventoryService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// ListByProduct returns the product's remaining batches, earliest expiry
// first. Batches are recomputed from the ledger on every call.
func (h *BatchHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	batches, err := h.service.GetBatches(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
