package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-core/internal/apperr"
	"pos-core/internal/config"
	"pos-core/internal/domain"
	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

var (
	ErrProfileNotFound = apperr.NotFound("PRINTER_PROFILE_NOT_FOUND", "printer profile not found")
	ErrInvalidProfile  = apperr.Validation("INVALID_PRINTER_PROFILE", "printer profile needs a name")
)

// PrinterManager owns the printer profiles of the register
type PrinterManager interface {
	Active() (string, config.Profile)
	Profiles() (config.PrinterSettingsFile, error)
	SetActive(name string) error
	PutProfile(name string, profile config.Profile) error
	PrintTestPage(ctx context.Context) error
}

// SetActiveProfileRequest selects the profile driving the printers
type SetActiveProfileRequest struct {
	Name string `json:"name" validate:"required"`
}

// PrinterSettingsRequest describes one printer connection
type PrinterSettingsRequest struct {
	Mode   string `json:"mode" validate:"omitempty,oneof=network usb"`
	Host   string `json:"host"`
	Port   int    `json:"port" validate:"gte=0,lte=65535"`
	Device string `json:"device"`
	USBVID int    `json:"usb_vid" validate:"gte=0"`
	USBPID int    `json:"usb_pid" validate:"gte=0"`
}

func (p PrinterSettingsRequest) settings() config.PrinterSettings {
	return config.PrinterSettings{Mode: p.Mode, Host: p.Host, Port: p.Port, Device: p.Device, USBVID: p.USBVID, USBPID: p.USBPID}
}

// ProfileRequest is the full content of a printer profile
type ProfileRequest struct {
	Store    string                 `json:"store"`
	Register string                 `json:"register"`
	Receipt  PrinterSettingsRequest `json:"receipt"`
	Label    PrinterSettingsRequest `json:"label"`
}

// ProfilesResponse lists stored profiles and the active one
type ProfilesResponse struct {
	Active   string                    `json:"active"`
	Profiles map[string]config.Profile `json:"profiles"`
}

// PrinterHandler serves printer profile management
type PrinterHandler struct {
	printers PrinterManager
	audit    service.AuditTrail
	logger   *zap.Logger
}

func NewPrinterHandler(printers PrinterManager, audit service.AuditTrail, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{printers: printers, audit: audit, logger: logger.Named("printer_handler")}
}

func (h *PrinterHandler) RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/printers", func(r chi.Router) {
		r.Use(rt.Protect(service.OpPrinterManage))
		r.Get("/profiles", h.ListProfiles)
		r.Put("/profiles/active", h.SetActive)
		r.Put("/profiles/{name}", h.PutProfile)
		r.Post("/test", h.TestPage)
	})
}

func mapProfileError(err error) error {
	if errors.Is(err, config.ErrProfileNotFound) {
		return ErrProfileNotFound.Wrap(err)
	}
	return err
}

func (h *PrinterHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	settings, err := h.printers.Profiles()
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	active, _ := h.printers.Active()
	middleware.RespondWithJSON(w, http.StatusOK, ProfilesResponse{Active: active, Profiles: settings.Profiles})
}

func (h *PrinterHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	previous, _ := h.printers.Active()
	if err := h.printers.SetActive(req.Name); err != nil {
		middleware.RespondWithAppError(w, h.logger, mapProfileError(err))
		return
	}

	h.record(r, req.Name, map[string]string{"active_profile": previous}, map[string]string{"active_profile": req.Name})
	_, profile := h.printers.Active()
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *PrinterHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" || name == "active" {
		middleware.RespondWithAppError(w, h.logger, ErrInvalidProfile)
		return
	}

	var req ProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	profile := config.Profile{
		Store:    req.Store,
		Register: req.Register,
		Receipt:  req.Receipt.settings(),
		Label:    req.Label.settings(),
	}

	var before any
	if settings, err := h.printers.Profiles(); err == nil {
		if prev, ok := settings.Profiles[name]; ok {
			before = prev
		}
	}

	if err := h.printers.PutProfile(name, profile); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	h.record(r, name, before, profile)
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

// record audits a profile change. The file is already written, so a failed
// audit insert is logged rather than reported.
func (h *PrinterHandler) record(r *http.Request, name string, before, after any) {
	err := h.audit.Record(r.Context(), nil, service.AuditRecord{
		ActorID:    actor(r),
		Action:     domain.ActionPrinterProfileSave,
		EntityType: "printer_profile",
		EntityID:   name,
		Before:     before,
		After:      after,
	})
	if err != nil {
		h.logger.Error("Failed to audit printer profile change", zap.String("profile", name), zap.Error(err))
	}
}

func (h *PrinterHandler) TestPage(w http.ResponseWriter, r *http.Request) {
	if err := h.printers.PrintTestPage(r.Context()); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
