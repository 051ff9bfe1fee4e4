package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/outbox"
	"pos-core/internal/repository"
)

// memStore is the in-memory backing of the mock repositories. The mock
// transactor snapshots it before each transaction and restores it when the
// transaction fails, so rollback behaves like the real database.
type memStore struct {
	mu        sync.Mutex
	sales     map[uuid.UUID]domain.Sale
	products  map[uuid.UUID]domain.Product
	customers map[uuid.UUID]domain.Customer
	locations map[uuid.UUID]domain.Location
	stock     map[stockKey]domain.InventoryRecord
	audit     []*domain.AuditEntry
	outbox    []outbox.Message

	// failAt makes the named step return errInjected.
	failAt string
}

type stockKey struct {
	product  uuid.UUID
	location uuid.UUID
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		sales:     map[uuid.UUID]domain.Sale{},
		products:  map[uuid.UUID]domain.Product{},
		customers: map[uuid.UUID]domain.Customer{},
		locations: map[uuid.UUID]domain.Location{},
		stock:     map[stockKey]domain.InventoryRecord{},
	}
}

type memSnapshot struct {
	sales     map[uuid.UUID]domain.Sale
	products  map[uuid.UUID]domain.Product
	customers map[uuid.UUID]domain.Customer
	stock     map[stockKey]domain.InventoryRecord
	audit     []*domain.AuditEntry
	outbox    []outbox.Message
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		sales:     map[uuid.UUID]domain.Sale{},
		products:  map[uuid.UUID]domain.Product{},
		customers: map[uuid.UUID]domain.Customer{},
		stock:     map[stockKey]domain.InventoryRecord{},
		audit:     append([]*domain.AuditEntry(nil), m.audit...),
		outbox:    append([]outbox.Message(nil), m.outbox...),
	}
	for k, v := range m.sales {
		snap.sales[k] = cloneSale(v)
	}
	for k, v := range m.products {
		snap.products[k] = v
	}
	for k, v := range m.customers {
		snap.customers[k] = v
	}
	for k, v := range m.stock {
		snap.stock[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.sales = snap.sales
	m.products = snap.products
	m.customers = snap.customers
	m.stock = snap.stock
	m.audit = snap.audit
	m.outbox = snap.outbox
}

func (m *memStore) fail(step string) error {
	if m.failAt == step {
		return errInjected
	}
	return nil
}

func cloneSale(s domain.Sale) domain.Sale {
	s.Lines = append([]domain.SaleLine{}, s.Lines...)
	s.Payments = append([]domain.Payment{}, s.Payments...)
	return s
}

func (m *memStore) addProduct(sku, barcode, price, rate string) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domain.Product{ID: uuid.New(), SKU: sku, Name: sku, Price: decimal.RequireFromString(price), Active: true}
	if barcode != "" {
		code := barcode
		p.Barcode = &code
	}
	if rate != "" {
		tr := &domain.TaxRate{ID: uuid.New(), Name: "VAT", Rate: decimal.RequireFromString(rate)}
		p.TaxRate = tr
		p.TaxRateID = &tr.ID
	}
	m.products[p.ID] = p
	return &p
}

func (m *memStore) addLocation(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.locations[id] = domain.Location{ID: id, Name: name}
	return id
}

func (m *memStore) setStock(productID, locationID uuid.UUID, qty, reorder string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[stockKey{productID, locationID}] = domain.InventoryRecord{
		ID:           uuid.New(),
		ProductID:    productID,
		LocationID:   locationID,
		QtyOnHand:    decimal.RequireFromString(qty),
		ReorderPoint: decimal.RequireFromString(reorder),
	}
}

func (m *memStore) qty(productID, locationID uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[stockKey{productID, locationID}].QtyOnHand
}

func (m *memStore) storedSale(id uuid.UUID) domain.Sale {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSale(m.sales[id])
}

// mockTransactor serialises transactions on the store.
type mockTransactor struct {
	store *memStore
	txMu  sync.Mutex
}

func (t *mockTransactor) WithTx(ctx context.Context, fn func(database.DBTX) error) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	t.store.mu.Lock()
	snap := t.store.snapshot()
	t.store.mu.Unlock()

	if err := fn(nil); err != nil {
		t.store.mu.Lock()
		t.store.restore(snap)
		t.store.mu.Unlock()
		return err
	}
	return nil
}

type mockSaleRepository struct{ store *memStore }

func (r *mockSaleRepository) WithDB(database.DBTX) repository.SaleRepository { return r }

func (r *mockSaleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sales[sale.ID] = cloneSale(*sale)
	return nil
}

func (r *mockSaleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sale, ok := r.store.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (r *mockSaleRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return r.Get(ctx, id)
}

func (r *mockSaleRepository) UpdateHeader(ctx context.Context, sale *domain.Sale) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fail("update_header"); err != nil {
		return err
	}
	stored, ok := r.store.sales[sale.ID]
	if !ok {
		return repository.ErrSaleNotFound
	}
	stored.Subtotal = sale.Subtotal
	stored.TaxTotal = sale.TaxTotal
	stored.DiscountTotal = sale.DiscountTotal
	stored.GrandTotal = sale.GrandTotal
	stored.Status = sale.Status
	stored.PaymentStatus = sale.PaymentStatus
	stored.CompletedAt = sale.CompletedAt
	r.store.sales[sale.ID] = stored
	return nil
}

func (r *mockSaleRepository) InsertLine(ctx context.Context, line *domain.SaleLine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sale := r.store.sales[line.SaleID]
	sale.Lines = append(sale.Lines, *line)
	r.store.sales[line.SaleID] = sale
	return nil
}

func (r *mockSaleRepository) UpdateLineDiscount(ctx context.Context, line *domain.SaleLine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sale := r.store.sales[line.SaleID]
	for i := range sale.Lines {
		if sale.Lines[i].ID == line.ID {
			sale.Lines[i].Discount = line.Discount
			sale.Lines[i].LineTotal = line.LineTotal
			r.store.sales[line.SaleID] = sale
			return nil
		}
	}
	return repository.ErrSaleLineNotFound
}

func (r *mockSaleRepository) DeleteLine(ctx context.Context, saleID, lineID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sale := r.store.sales[saleID]
	for i := range sale.Lines {
		if sale.Lines[i].ID == lineID {
			sale.Lines = append(sale.Lines[:i], sale.Lines[i+1:]...)
			r.store.sales[saleID] = sale
			return nil
		}
	}
	return repository.ErrSaleLineNotFound
}

func (r *mockSaleRepository) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fail("insert_payment"); err != nil {
		return err
	}
	sale := r.store.sales[payment.SaleID]
	sale.Payments = append(sale.Payments, *payment)
	r.store.sales[payment.SaleID] = sale
	return nil
}

func (r *mockSaleRepository) DeleteLinesAndPayments(ctx context.Context, saleID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sale := r.store.sales[saleID]
	sale.Lines = []domain.SaleLine{}
	sale.Payments = []domain.Payment{}
	r.store.sales[saleID] = sale
	return nil
}

type mockProductRepository struct{ store *memStore }

func (r *mockProductRepository) WithDB(database.DBTX) repository.ProductRepository { return r }

func (r *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.products {
		if p.SKU == product.SKU {
			return repository.ErrProductSKUExists
		}
		if p.Barcode != nil && product.Barcode != nil && *p.Barcode == *product.Barcode {
			return repository.ErrProductBarcodeExists
		}
	}
	r.store.products[product.ID] = *product
	return nil
}

func (r *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	r.store.products[product.ID] = *product
	return nil
}

func (r *mockProductRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Active = false
	r.store.products[id] = p
	return nil
}

func (r *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

// FindActiveByCode prefers a barcode match over a sku match.
func (r *mockProductRepository) FindActiveByCode(ctx context.Context, code string) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var bySKU *domain.Product
	for _, p := range r.store.products {
		if !p.Active {
			continue
		}
		if p.Barcode != nil && *p.Barcode == code {
			found := p
			return &found, nil
		}
		if p.SKU == code {
			found := p
			bySKU = &found
		}
	}
	if bySKU == nil {
		return nil, repository.ErrProductNotFound
	}
	return bySKU, nil
}

func (r *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range r.store.products {
		if filter.ActiveOnly && !p.Active {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) {
			continue
		}
		found := p
		out = append(out, &found)
	}
	return out, len(out), nil
}

type mockLocationRepository struct{ store *memStore }

func (r *mockLocationRepository) Create(ctx context.Context, location *domain.Location) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.locations[location.ID] = *location
	return nil
}

func (r *mockLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.locations[id]
	if !ok {
		return nil, repository.ErrLocationNotFound
	}
	return &l, nil
}

func (r *mockLocationRepository) FindByName(ctx context.Context, name string) (*domain.Location, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, l := range r.store.locations {
		if l.Name == name {
			found := l
			return &found, nil
		}
	}
	return nil, repository.ErrLocationNotFound
}

type mockCustomerRepository struct{ store *memStore }

func (r *mockCustomerRepository) WithDB(database.DBTX) repository.CustomerRepository { return r }

func (r *mockCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.customers[c.ID] = *c
	return nil
}

func (r *mockCustomerRepository) Update(ctx context.Context, c *domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.customers[c.ID]; !ok {
		return repository.ErrCustomerNotFound
	}
	r.store.customers[c.ID] = *c
	return nil
}

func (r *mockCustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.customers[id]; !ok {
		return repository.ErrCustomerNotFound
	}
	delete(r.store.customers, id)
	return nil
}

func (r *mockCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[id]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	return &c, nil
}

func (r *mockCustomerRepository) List(ctx context.Context, query string, limit int) ([]*domain.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*domain.Customer{}
	for _, c := range r.store.customers {
		if query == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			found := c
			out = append(out, &found)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type mockInventoryRepository struct{ store *memStore }

func (r *mockInventoryRepository) WithDB(database.DBTX) repository.InventoryRepository { return r }

func (r *mockInventoryRepository) Decrement(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal) (bool, decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fail("decrement"); err != nil {
		return false, decimal.Zero, err
	}
	key := stockKey{productID, locationID}
	rec, ok := r.store.stock[key]
	if !ok {
		return false, decimal.Zero, nil
	}
	rec.QtyOnHand = rec.QtyOnHand.Sub(qty)
	r.store.stock[key] = rec
	return true, rec.QtyOnHand, nil
}

func (r *mockInventoryRepository) Upsert(ctx context.Context, record *domain.InventoryRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.stock[stockKey{record.ProductID, record.LocationID}] = *record
	return nil
}

func (r *mockInventoryRepository) Find(ctx context.Context, productID, locationID uuid.UUID) (*domain.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.stock[stockKey{productID, locationID}]
	if !ok {
		return nil, repository.ErrInventoryRecordNotFound
	}
	return &rec, nil
}

func (r *mockInventoryRepository) ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*domain.InventoryRecord{}
	for k, rec := range r.store.stock {
		if k.location == locationID {
			found := rec
			out = append(out, &found)
		}
	}
	return out, nil
}

type mockAuditRepository struct{ store *memStore }

func (r *mockAuditRepository) WithDB(database.DBTX) repository.AuditRepository { return r }

func (r *mockAuditRepository) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fail("audit"); err != nil {
		return err
	}
	r.store.audit = append(r.store.audit, entry)
	return nil
}

func (r *mockAuditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*domain.AuditEntry{}
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		e := r.store.audit[i]
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.audit))
	for _, e := range m.audit {
		actions = append(actions, e.Action)
	}
	return actions
}

type mockOutboxRepository struct{ store *memStore }

func (r *mockOutboxRepository) WithDB(database.DBTX) outbox.Repository { return r }

func (r *mockOutboxRepository) Create(ctx context.Context, msg *outbox.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.fail("outbox"); err != nil {
		return err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now().UTC()
	r.store.outbox = append(r.store.outbox, *msg)
	return nil
}

func (r *mockOutboxRepository) ListUnprocessed(ctx context.Context, batchSize int) ([]outbox.Message, error) {
	return nil, nil
}

func (r *mockOutboxRepository) MarkProcessed(ctx context.Context, results []outbox.Result) error {
	return nil
}

// checkoutFixture wires a checkout service over one memStore with the
// seeded cola and water products stocked at a single location.
type checkoutFixture struct {
	store      *memStore
	service    CheckoutService
	location   uuid.UUID
	cashier    uuid.UUID
	cola       *domain.Product
	water      *domain.Product
	allowNeg   bool
	allowEmpty bool
}

type fixtureOption func(*checkoutFixture)

func withNegativeStockRejected() fixtureOption {
	return func(f *checkoutFixture) { f.allowNeg = false }
}

func withEmptyFinalizeAllowed() fixtureOption {
	return func(f *checkoutFixture) { f.allowEmpty = true }
}

func newCheckoutFixture(opts ...fixtureOption) *checkoutFixture {
	store := newMemStore()
	f := &checkoutFixture{store: store, cashier: uuid.New(), allowNeg: true}
	for _, opt := range opts {
		opt(f)
	}

	f.location = store.addLocation("Main Store")
	f.cola = store.addProduct("COLA-330", "1234567890123", "1.20", "0.21")
	f.water = store.addProduct("WATER-500", "2234567890123", "0.80", "")
	store.setStock(f.cola.ID, f.location, "50", "10")
	store.setStock(f.water.ID, f.location, "80", "20")

	logger := zap.NewNop()
	locations := &mockLocationRepository{store}
	ledger := NewInventoryLedger(&mockInventoryRepository{store}, locations, f.allowNeg, logger)

	f.service = NewCheckoutService(CheckoutDeps{
		Tx:        &mockTransactor{store: store},
		Sales:     &mockSaleRepository{store},
		Products:  &mockProductRepository{store},
		Locations: locations,
		Customers: &mockCustomerRepository{store},
		Inventory: ledger,
		Audit:     NewAuditTrail(&mockAuditRepository{store}),
		Outbox:    &mockOutboxRepository{store},
		Logger:    logger,
	}, CheckoutOptions{
		PaymentTolerance:   decimal.RequireFromString("0.01"),
		AllowEmptyFinalize: f.allowEmpty,
		DefaultLocationID:  &f.location,
		TopicPrefix:        "pos",
	})

	return f
}

func (f *checkoutFixture) openSale(ctx context.Context) (*domain.Sale, error) {
	register := "TILL-1"
	return f.service.OpenSale(ctx, OpenSaleParams{CashierID: &f.cashier, RegisterID: &register})
}

func cash(amount string) []domain.PaymentInput {
	return []domain.PaymentInput{{Method: domain.PaymentMethodCash, Amount: decimal.RequireFromString(amount)}}
}
