package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-core/internal/apperr"
	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

var ErrLocationRequired = apperr.Validation("LOCATION_REQUIRED", "location query parameter is required")

// InventoryHandler exposes stock levels per location
type InventoryHandler struct {
	ledger          service.InventoryLedger
	defaultLocation *uuid.UUID
	logger          *zap.Logger
}

// NewInventoryHandler builds the handler. defaultLocation answers requests
// without a location parameter and may be nil.
func NewInventoryHandler(ledger service.InventoryLedger, defaultLocation *uuid.UUID, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, defaultLocation: defaultLocation, logger: logger.Named("inventory_handler")}
}

func (h *InventoryHandler) RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/inventory", func(r chi.Router) {
		r.Use(rt.Protect(service.OpInventoryView))
		r.Get("/", h.List)
		r.Get("/low-stock", h.LowStock)
	})
}

func (h *InventoryHandler) location(r *http.Request) (uuid.UUID, error) {
	id, err := queryUUID(r, "location")
	if err != nil {
		return uuid.Nil, err
	}
	if id != nil {
		return *id, nil
	}
	if h.defaultLocation != nil {
		return *h.defaultLocation, nil
	}
	return uuid.Nil, ErrLocationRequired
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	locationID, err := h.location(r)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	records, err := h.ledger.ListByLocation(r.Context(), locationID)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, records)
}

func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	locationID, err := h.location(r)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	records, err := h.ledger.LowStock(r.Context(), locationID)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, records)
}
