package transport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-core/internal/domain"
	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

// OpenSaleRequest represents the payload that starts a sale
type OpenSaleRequest struct {
	RegisterID *string `json:"register_id"`
	LocationID *string `json:"location_id" validate:"omitempty,uuid"`
	CustomerID *string `json:"customer_id" validate:"omitempty,uuid"`
}

// AddLineRequest is one scan: a barcode or SKU and a quantity
type AddLineRequest struct {
	Code string          `json:"code" validate:"required"`
	Qty  decimal.Decimal `json:"qty"`
}

// DiscountRequest sets the absolute discount of a line
type DiscountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

// TenderRequest is one payment in a finalize request
type TenderRequest struct {
	Method      string          `json:"method" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef *string         `json:"external_ref"`
}

// FinalizeRequest represents the finalize payload
type FinalizeRequest struct {
	Payments []TenderRequest `json:"payments" validate:"dive"`
}

// FinalizeResponse reports the completed sale and the receipt outcome
type FinalizeResponse struct {
	Sale           *domain.Sale `json:"sale"`
	ReceiptPrinted bool         `json:"receipt_printed"`
	PrintError     string       `json:"print_error,omitempty"`
}

// ReceiptPrinter prints a completed sale
type ReceiptPrinter interface {
	PrintReceipt(ctx context.Context, sale *domain.Sale) error
}

// CheckoutHandler serves the scanning surface
type CheckoutHandler struct {
	checkout service.CheckoutService
	receipts ReceiptPrinter
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout service.CheckoutService, receipts ReceiptPrinter, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, receipts: receipts, logger: logger.Named("checkout_handler")}
}

func (h *CheckoutHandler) RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/sales", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.Protect(service.OpCheckout))
			r.Post("/", h.OpenSale)
			r.Get("/{saleID}", h.GetSale)
			r.Post("/{saleID}/lines", h.AddLine)
			r.Delete("/{saleID}/lines/{lineID}", h.RemoveLine)
			r.Get("/{saleID}/totals", h.Totals)
			r.Post("/{saleID}/finalize", h.Finalize)
			r.Post("/{saleID}/cancel", h.Cancel)
		})
		r.With(rt.Protect(service.OpCatalogManage)).Put("/{saleID}/lines/{lineID}/discount", h.ApplyDiscount)
	})
}

func (h *CheckoutHandler) OpenSale(w http.ResponseWriter, r *http.Request) {
	var req OpenSaleRequest
	if r.ContentLength != 0 {
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			middleware.RespondWithDecodeError(w, err)
			return
		}
	}

	params := service.OpenSaleParams{CashierID: actor(r), RegisterID: req.RegisterID}
	var err error
	if params.LocationID, err = optionalUUID(req.LocationID); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	if params.CustomerID, err = optionalUUID(req.CustomerID); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	sale, err := h.checkout.OpenSale(r.Context(), params)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, sale)
}

func (h *CheckoutHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	sale, err := h.checkout.GetSale(r.Context(), saleID)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

func (h *CheckoutHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	var req AddLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	line, err := h.checkout.AddLine(r.Context(), saleID, req.Code, req.Qty)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, line)
}

func (h *CheckoutHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	lineID, err := urlUUID(r, "lineID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if err := h.checkout.RemoveLine(r.Context(), saleID, lineID); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	lineID, err := urlUUID(r, "lineID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	var req DiscountRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	line, err := h.checkout.ApplyLineDiscount(r.Context(), actor(r), saleID, lineID, req.Discount)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, line)
}

func (h *CheckoutHandler) Totals(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	totals, err := h.checkout.RecomputeTotals(r.Context(), saleID)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, totals)
}

// Finalize completes the sale and then prints the receipt. A printing
// failure is reported in the response but the sale stays completed.
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	var req FinalizeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	payments := make([]domain.PaymentInput, 0, len(req.Payments))
	for _, p := range req.Payments {
		payments = append(payments, domain.PaymentInput{
			Method:      domain.PaymentMethod(p.Method),
			Amount:      p.Amount,
			ExternalRef: p.ExternalRef,
		})
	}

	sale, err := h.checkout.Finalize(r.Context(), service.FinalizeParams{
		SaleID:   saleID,
		ActorID:  actor(r),
		Payments: payments,
	})
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	resp := FinalizeResponse{Sale: sale}
	if h.receipts != nil {
		if err := h.receipts.PrintReceipt(r.Context(), sale); err != nil {
			h.logger.Warn("Receipt not printed", zap.String("sale_id", sale.ID.String()), zap.Error(err))
			resp.PrintError = err.Error()
		} else {
			resp.ReceiptPrinted = true
		}
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	saleID, err := urlUUID(r, "saleID")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if err := h.checkout.Cancel(r.Context(), saleID); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
