package transport

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-core/internal/config"
	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/printing"
	"pos-core/internal/repository"
	"pos-core/internal/service"
)

type fakeCustomers struct {
	stored map[uuid.UUID]*domain.Customer
	query  string
}

func (f *fakeCustomers) List(ctx context.Context, query string, limit int) ([]*domain.Customer, error) {
	f.query = query
	var out []*domain.Customer
	for _, c := range f.stored {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCustomers) Get(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, ok := f.stored[id]
	if !ok {
		return nil, service.ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeCustomers) Create(ctx context.Context, actorID *uuid.UUID, customer *domain.Customer) error {
	f.stored[customer.ID] = customer
	return nil
}

func (f *fakeCustomers) Update(ctx context.Context, actorID *uuid.UUID, customer *domain.Customer) error {
	if _, ok := f.stored[customer.ID]; !ok {
		return service.ErrCustomerNotFound
	}
	f.stored[customer.ID] = customer
	return nil
}

func (f *fakeCustomers) Delete(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	if _, ok := f.stored[id]; !ok {
		return service.ErrCustomerNotFound
	}
	delete(f.stored, id)
	return nil
}

func TestCustomers(t *testing.T) {
	customers := &fakeCustomers{stored: map[uuid.UUID]*domain.Customer{}}
	router := newRouter(NewCustomerHandler(customers, zap.NewNop()))

	w := do(t, router, http.MethodGet, "/api/customers", &cashier, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodPost, "/api/customers", &manager, map[string]interface{}{"name": "Dana", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/customers", &manager, map[string]interface{}{"name": "Dana", "email": "dana@example.com", "loyalty_points": 5})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[domain.Customer](t, w)

	w = do(t, router, http.MethodPut, "/api/customers/"+created.ID.String(), &manager, map[string]interface{}{"name": "Dana R", "loyalty_points": 12})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, customers.stored[created.ID].LoyaltyPoints)

	w = do(t, router, http.MethodGet, "/api/customers?q=dan", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dan", customers.query)

	w = do(t, router, http.MethodDelete, "/api/customers/"+created.ID.String(), &manager, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodDelete, "/api/customers/"+created.ID.String(), &manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type fakeLedger struct {
	records map[uuid.UUID][]*domain.InventoryRecord
}

func (f *fakeLedger) Decrement(ctx context.Context, q database.DBTX, productID, locationID uuid.UUID, qty decimal.Decimal) (bool, decimal.Decimal, error) {
	return false, decimal.Zero, nil
}

func (f *fakeLedger) ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error) {
	return f.records[locationID], nil
}

func (f *fakeLedger) LowStock(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error) {
	var out []*domain.InventoryRecord
	for _, rec := range f.records[locationID] {
		if domain.ReorderCheck(*rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestInventory(t *testing.T) {
	store, back := uuid.New(), uuid.New()
	ledger := &fakeLedger{records: map[uuid.UUID][]*domain.InventoryRecord{
		store: {
			{ProductID: uuid.New(), LocationID: store, QtyOnHand: decimal.NewFromInt(48), ReorderPoint: decimal.NewFromInt(10)},
			{ProductID: uuid.New(), LocationID: store, QtyOnHand: decimal.NewFromInt(3), ReorderPoint: decimal.NewFromInt(5)},
		},
		back: {
			{ProductID: uuid.New(), LocationID: back, QtyOnHand: decimal.NewFromInt(1), ReorderPoint: decimal.NewFromInt(0)},
		},
	}}

	router := newRouter(NewInventoryHandler(ledger, &store, zap.NewNop()))

	w := do(t, router, http.MethodGet, "/api/inventory", &cashier, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodGet, "/api/inventory", &manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.InventoryRecord](t, w), 2)

	w = do(t, router, http.MethodGet, "/api/inventory/low-stock", &manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.InventoryRecord](t, w), 1)

	w = do(t, router, http.MethodGet, "/api/inventory?location="+back.String(), &manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.InventoryRecord](t, w), 1)

	w = do(t, router, http.MethodGet, "/api/inventory?location=back-room", &manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noDefault := newRouter(NewInventoryHandler(ledger, nil, zap.NewNop()))
	w = do(t, noDefault, http.MethodGet, "/api/inventory/low-stock", &manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LOCATION_REQUIRED", errorCode(t, w))
}

type fakeReports struct {
	lastRange service.ReportRange
	filter    repository.AuditFilter
}

func (f *fakeReports) SalesByDay(ctx context.Context, r service.ReportRange) ([]repository.DailySales, error) {
	f.lastRange = r
	if r.To.Before(r.From) {
		return nil, service.ErrInvalidRange
	}
	return []repository.DailySales{{Day: r.From, SaleCount: 1, GrandTotal: decimal.RequireFromString("2.904")}}, nil
}

func (f *fakeReports) group(r service.ReportRange, label string) ([]repository.GroupTotal, error) {
	f.lastRange = r
	return []repository.GroupTotal{{Label: label, Total: decimal.NewFromInt(1)}}, nil
}

func (f *fakeReports) SalesByCategory(ctx context.Context, r service.ReportRange) ([]repository.GroupTotal, error) {
	return f.group(r, "Drinks")
}

func (f *fakeReports) SalesByCashier(ctx context.Context, r service.ReportRange) ([]repository.GroupTotal, error) {
	return f.group(r, "alice")
}

func (f *fakeReports) SalesByPaymentMethod(ctx context.Context, r service.ReportRange) ([]repository.GroupTotal, error) {
	return f.group(r, "cash")
}

func (f *fakeReports) AuditLog(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error) {
	f.filter = filter
	return []*domain.AuditEntry{{ID: uuid.New(), Action: domain.ActionSaleFinalize, EntityType: "sale", EntityID: "x"}}, nil
}

func TestReports(t *testing.T) {
	reports := &fakeReports{}
	handler := NewReportHandler(reports, zap.NewNop())
	handler.now = func() time.Time { return time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC) }
	router := newRouter(handler)

	w := do(t, router, http.MethodGet, "/api/reports/sales/by-day", &cashier, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodGet, "/api/reports/sales/by-day", &manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-03-14", reports.lastRange.From.Format(dateLayout))
	assert.Equal(t, "2026-03-14", reports.lastRange.To.Format(dateLayout))

	w = do(t, router, http.MethodGet, "/api/reports/sales/by-category?from=2026-03-01&to=2026-03-07", &manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Drinks", decode[[]repository.GroupTotal](t, w)[0].Label)
	assert.Equal(t, "2026-03-07", reports.lastRange.To.Format(dateLayout))

	for path, label := range map[string]string{"by-cashier": "alice", "by-payment-method": "cash"} {
		w = do(t, router, http.MethodGet, "/api/reports/sales/"+path+"?from=2026-03-01", &admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, label, decode[[]repository.GroupTotal](t, w)[0].Label)
		assert.Equal(t, reports.lastRange.From, reports.lastRange.To)
	}

	w = do(t, router, http.MethodGet, "/api/reports/sales/by-day?from=03/01/2026", &manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DATE", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/reports/sales/by-day?from=2026-03-07&to=2026-03-01", &manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RANGE", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/reports/audit?entity_type=sale&limit=20", &manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.AuditFilter{EntityType: "sale", Limit: 20}, reports.filter)
}

type recordingAudit struct {
	records []service.AuditRecord
}

func (a *recordingAudit) Record(ctx context.Context, q database.DBTX, rec service.AuditRecord) error {
	a.records = append(a.records, rec)
	return nil
}

func (a *recordingAudit) List(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error) {
	return nil, nil
}

func TestPrinterProfiles(t *testing.T) {
	store := config.NewProfileStore(filepath.Join(t.TempDir(), "app_settings.json"))
	printers := printing.NewManager(store, zap.NewNop())
	audit := &recordingAudit{}
	router := newRouter(NewPrinterHandler(printers, audit, zap.NewNop()))

	w := do(t, router, http.MethodGet, "/api/printers/profiles", &cashier, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodGet, "/api/printers/profiles", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Default", decode[ProfilesResponse](t, w).Active)

	w = do(t, router, http.MethodPut, "/api/printers/profiles/active", &admin, map[string]string{"name": "Back Office"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PRINTER_PROFILE_NOT_FOUND", errorCode(t, w))

	w = do(t, router, http.MethodPut, "/api/printers/profiles/Back%20Office", &admin, map[string]interface{}{
		"store":    "Harbour Street",
		"register": "TILL-9",
		"receipt":  map[string]interface{}{"mode": "network", "host": "10.0.0.40", "port": 9100},
		"label":    map[string]interface{}{"mode": "usb", "device": "/dev/usb/lp0"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/printers/profiles/active", &admin, map[string]string{"name": "Back Office"})
	require.Equal(t, http.StatusOK, w.Code)
	name, profile := printers.Active()
	assert.Equal(t, "Back Office", name)
	assert.Equal(t, "TILL-9", profile.Register)

	require.Len(t, audit.records, 2)
	assert.Equal(t, domain.ActionPrinterProfileSave, audit.records[0].Action)
	assert.Equal(t, "Back Office", audit.records[0].EntityID)
	assert.Equal(t, admin.ID, *audit.records[1].ActorID)

	w = do(t, router, http.MethodPut, "/api/printers/profiles/Bad", &admin, map[string]interface{}{
		"receipt": map[string]interface{}{"mode": "serial"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrinterTestPage_FallsBackWhenUnconfigured(t *testing.T) {
	store := config.NewProfileStore(filepath.Join(t.TempDir(), "app_settings.json"))
	require.NoError(t, store.Put("Counter", config.Profile{
		Store:    "Main Store",
		Register: "TILL-3",
		Receipt:  config.PrinterSettings{Mode: config.PrinterModeUSB},
		Label:    config.PrinterSettings{Mode: config.PrinterModeUSB},
	}))
	_, err := store.SetActive("Counter")
	require.NoError(t, err)

	printers := printing.NewManager(store, zap.NewNop())
	router := newRouter(NewPrinterHandler(printers, &recordingAudit{}, zap.NewNop()))

	w := do(t, router, http.MethodPost, "/api/printers/test", &admin, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
