package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-core/internal/domain"
	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

// CustomerRequest is the create and update payload of a customer
type CustomerRequest struct {
	Name          string  `json:"name" validate:"required"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone"`
	LoyaltyPoints int     `json:"loyalty_points" validate:"gte=0"`
}

func (req CustomerRequest) customer(id uuid.UUID) *domain.Customer {
	return &domain.Customer{
		ID:            id,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		LoyaltyPoints: req.LoyaltyPoints,
	}
}

// CustomerHandler serves customer maintenance for elevated operators
type CustomerHandler struct {
	customers service.CustomerService
	logger    *zap.Logger
}

func NewCustomerHandler(customers service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{customers: customers, logger: logger.Named("customer_handler")}
}

func (h *CustomerHandler) RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/customers", func(r chi.Router) {
		r.Use(rt.Protect(service.OpCustomerManage))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 0))
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, customers)
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	customer := req.customer(uuid.New())
	if err := h.customers.Create(r.Context(), actor(r), customer); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	var req CustomerRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	customer := req.customer(id)
	if err := h.customers.Update(r.Context(), actor(r), customer); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if err := h.customers.Delete(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
