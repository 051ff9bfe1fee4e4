package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-core/internal/apperr"
	"pos-core/internal/middleware"
	"pos-core/internal/repository"
	"pos-core/internal/service"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = apperr.Validation("INVALID_DATE", "dates must be formatted as YYYY-MM-DD")

// ReportHandler serves back-office sales reports and the audit log
type ReportHandler struct {
	reports service.ReportService
	logger  *zap.Logger
	now     func() time.Time
}

func NewReportHandler(reports service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger.Named("report_handler"), now: time.Now}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/reports", func(r chi.Router) {
		r.Use(rt.Protect(service.OpReportView))
		r.Get("/sales/by-day", h.SalesByDay)
		r.Get("/sales/by-category", h.grouped(h.reports.SalesByCategory))
		r.Get("/sales/by-cashier", h.grouped(h.reports.SalesByCashier))
		r.Get("/sales/by-payment-method", h.grouped(h.reports.SalesByPaymentMethod))
		r.Get("/audit", h.AuditLog)
	})
}

// reportRange reads from and to as calendar days. Both default to today;
// a lone bound covers that single day.
func (h *ReportHandler) reportRange(r *http.Request) (service.ReportRange, error) {
	today := h.now().UTC()
	from, err := queryDate(r, "from")
	if err != nil {
		return service.ReportRange{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return service.ReportRange{}, err
	}

	switch {
	case from == nil && to == nil:
		return service.ReportRange{From: today, To: today}, nil
	case from == nil:
		return service.ReportRange{From: *to, To: *to}, nil
	case to == nil:
		return service.ReportRange{From: *from, To: *from}, nil
	}
	return service.ReportRange{From: *from, To: *to}, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, ErrInvalidDate.Wrap(err)
	}
	return &t, nil
}

func (h *ReportHandler) SalesByDay(w http.ResponseWriter, r *http.Request) {
	rng, err := h.reportRange(r)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	rows, err := h.reports.SalesByDay(r.Context(), rng)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, rows)
}

func (h *ReportHandler) grouped(report func(context.Context, service.ReportRange) ([]repository.GroupTotal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := h.reportRange(r)
		if err != nil {
			middleware.RespondWithAppError(w, h.logger, err)
			return
		}

		rows, err := report(r.Context(), rng)
		if err != nil {
			middleware.RespondWithAppError(w, h.logger, err)
			return
		}
		middleware.RespondWithJSON(w, http.StatusOK, rows)
	}
}

func (h *ReportHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	filter := repository.AuditFilter{
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   r.URL.Query().Get("entity_id"),
		Limit:      queryInt(r, "limit", 0),
	}

	entries, err := h.reports.AuditLog(r.Context(), filter)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}
