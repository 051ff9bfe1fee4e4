package printing

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pos-core/internal/config"
	"pos-core/internal/domain"
)

// Printer sends jobs through its transport and writes the readable text to
// the fallback when the transport fails. The returned error still reports
// the failure so callers can surface it.
type Printer struct {
	name      string
	transport Transport
	fallback  Transport
	logger    *zap.Logger
}

func NewPrinter(name string, settings config.PrinterSettings, logger *zap.Logger) *Printer {
	return &Printer{
		name:      name,
		transport: NewTransport(name, settings, logger),
		fallback:  &FallbackTransport{Name: name, Logger: logger},
		logger:    logger,
	}
}

func (p *Printer) dispatch(ctx context.Context, job []byte, text string) error {
	err := p.transport.Send(ctx, job)
	if err == nil {
		return nil
	}

	p.logger.Warn("print failed, using fallback",
		zap.String("printer", p.name),
		zap.String("transport", p.transport.Describe()),
		zap.Error(err))
	if ferr := p.fallback.Send(ctx, []byte(text)); ferr != nil {
		p.logger.Error("fallback print failed", zap.String("printer", p.name), zap.Error(ferr))
	}
	return err
}

// Manager owns the receipt and label printers built from the active
// profile. Reload rebuilds them after the profile changes.
type Manager struct {
	store  *config.ProfileStore
	logger *zap.Logger

	mu      sync.RWMutex
	name    string
	profile config.Profile
	receipt *Printer
	label   *Printer
}

// NewManager loads the active profile. A malformed profile file is logged
// and the defaults are used.
func NewManager(store *config.ProfileStore, logger *zap.Logger) *Manager {
	m := &Manager{store: store, logger: logger.Named("printing")}
	if err := m.Reload(); err != nil {
		m.logger.Warn("printer profile not loaded, using defaults", zap.Error(err))
	}
	return m
}

func (m *Manager) Reload() error {
	name, profile, err := m.store.Active()
	if err != nil {
		defaults := config.DefaultPrinterSettings()
		name = defaults.ActiveProfile
		profile = defaults.Profiles[name]
	}
	m.apply(name, profile)
	return err
}

func (m *Manager) apply(name string, profile config.Profile) {
	receipt := NewPrinter("receipt", profile.Receipt, m.logger)
	label := NewPrinter("label", profile.Label, m.logger)

	m.mu.Lock()
	m.name, m.profile, m.receipt, m.label = name, profile, receipt, label
	m.mu.Unlock()

	m.logger.Info("printers configured",
		zap.String("profile", name),
		zap.String("receipt", receipt.transport.Describe()),
		zap.String("label", label.transport.Describe()))
}

// Active returns the name and settings currently driving the printers.
func (m *Manager) Active() (string, config.Profile) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name, m.profile
}

func (m *Manager) Profiles() (config.PrinterSettingsFile, error) {
	return m.store.Load()
}

// SetActive persists the active profile name and rebuilds the printers.
func (m *Manager) SetActive(name string) error {
	profile, err := m.store.SetActive(name)
	if err != nil {
		return err
	}
	m.apply(name, profile)
	return nil
}

// PutProfile stores a profile; printers are rebuilt when it is the active one.
func (m *Manager) PutProfile(name string, profile config.Profile) error {
	if err := m.store.Put(name, profile); err != nil {
		return err
	}
	if active, _ := m.Active(); active == name {
		m.apply(name, profile)
	}
	return nil
}

func (m *Manager) printers() (config.Profile, *Printer, *Printer) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile, m.receipt, m.label
}

func (m *Manager) PrintReceipt(ctx context.Context, sale *domain.Sale) error {
	profile, receipt, _ := m.printers()
	text := FormatReceipt(sale, profile)
	if err := receipt.dispatch(ctx, EncodeEscPos(text), text); err != nil {
		return fmt.Errorf("receipt for sale %s: %w", sale.ID, err)
	}
	return nil
}

func (m *Manager) PrintTestPage(ctx context.Context) error {
	profile, receipt, _ := m.printers()
	text := TestPage(profile)
	return receipt.dispatch(ctx, EncodeEscPos(text), text)
}

func (m *Manager) PrintLabel(ctx context.Context, req LabelRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	_, _, label := m.printers()
	job := EncodeZPL(req)
	return label.dispatch(ctx, job, string(job))
}
