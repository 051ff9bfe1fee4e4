package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-core/internal/apperr"
)

// SaleStatus is the lifecycle state of a sale
type SaleStatus string

const (
	SaleStatusOpen      SaleStatus = "open"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusVoid      SaleStatus = "void"
)

// PaymentStatus summarises tendered amounts against the grand total
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentMethod is the tender instrument
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodOther PaymentMethod = "other"
)

// Valid reports whether m is one of the supported tender instruments.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

const (
	PaymentCaptured = "captured"
	PaymentFailed   = "failed"
)

var (
	ErrInvalidQuantity = apperr.Validation("INVALID_QUANTITY", "quantity must be greater than zero")
	ErrInvalidDiscount = apperr.Validation("INVALID_DISCOUNT", "discount must be between zero and the line amount")
	ErrInvalidPayment  = apperr.Validation("INVALID_PAYMENT", "payment amount must be positive and method must be cash, card or other")
	ErrNoPayments      = apperr.Validation("NO_PAYMENTS", "at least one payment is required")
	ErrSaleNotOpen     = apperr.Conflict("SALE_NOT_OPEN", "sale is not open")
)

// Sale is the aggregate root of one customer transaction
type Sale struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	CashierID     *uuid.UUID      `json:"cashier_id,omitempty" db:"cashier_id"`
	RegisterID    *string         `json:"register_id,omitempty" db:"register_id"`
	CustomerID    *uuid.UUID      `json:"customer_id,omitempty" db:"customer_id"`
	LocationID    *uuid.UUID      `json:"location_id,omitempty" db:"location_id"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total" db:"tax_total"`
	DiscountTotal decimal.Decimal `json:"discount_total" db:"discount_total"`
	GrandTotal    decimal.Decimal `json:"grand_total" db:"grand_total"`
	Status        SaleStatus      `json:"status" db:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status" db:"payment_status"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`

	Lines    []SaleLine `json:"lines"`
	Payments []Payment  `json:"payments"`
}

// SaleLine is one scanned item. UnitPrice and TaxRate are frozen when the
// line is created.
type SaleLine struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	SaleID      uuid.UUID        `json:"sale_id" db:"sale_id"`
	Position    int              `json:"position" db:"position"`
	ProductID   uuid.UUID        `json:"product_id" db:"product_id"`
	ProductName string           `json:"product_name" db:"product_name"`
	Qty         decimal.Decimal  `json:"qty" db:"qty"`
	UnitPrice   decimal.Decimal  `json:"unit_price" db:"unit_price"`
	Discount    decimal.Decimal  `json:"discount" db:"discount"`
	TaxRateID   *uuid.UUID       `json:"tax_rate_id,omitempty" db:"tax_rate_id"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty" db:"tax_rate"`
	LineTotal   decimal.Decimal  `json:"line_total" db:"line_total"`
}

// Payment is one tender applied to a sale
type Payment struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SaleID      uuid.UUID       `json:"sale_id" db:"sale_id"`
	Method      PaymentMethod   `json:"method" db:"method"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ExternalRef *string         `json:"external_ref,omitempty" db:"external_ref"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// NewSale returns an open sale with zero totals.
func NewSale(cashierID *uuid.UUID, registerID *string, locationID, customerID *uuid.UUID, now time.Time) *Sale {
	return &Sale{
		ID:            uuid.New(),
		CreatedAt:     now,
		CashierID:     cashierID,
		RegisterID:    registerID,
		LocationID:    locationID,
		CustomerID:    customerID,
		Subtotal:      decimal.Zero,
		TaxTotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		GrandTotal:    decimal.Zero,
		Status:        SaleStatusOpen,
		PaymentStatus: PaymentStatusUnpaid,
		Lines:         []SaleLine{},
		Payments:      []Payment{},
	}
}

// IsOpen reports whether the sale still accepts changes.
func (s *Sale) IsOpen() bool {
	return s.Status == SaleStatusOpen
}

// NewSaleLine snapshots price and tax from product for the given quantity.
func NewSaleLine(saleID uuid.UUID, position int, product *Product, qty decimal.Decimal) (*SaleLine, error) {
	if !qty.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	line := &SaleLine{
		ID:          uuid.New(),
		SaleID:      saleID,
		Position:    position,
		ProductID:   product.ID,
		ProductName: product.Name,
		Qty:         qty,
		UnitPrice:   product.Price,
		Discount:    decimal.Zero,
	}
	if product.TaxRate != nil {
		id := product.TaxRate.ID
		rate := product.TaxRate.Rate
		line.TaxRateID = &id
		line.TaxRate = &rate
	} else if product.TaxRateID != nil {
		id := *product.TaxRateID
		line.TaxRateID = &id
	}
	line.LineTotal = line.computeTotal()

	return line, nil
}

// Gross is qty * unit price before discount.
func (l *SaleLine) Gross() decimal.Decimal {
	return l.Qty.Mul(l.UnitPrice)
}

// ApplyDiscount sets the line discount; 0 <= discount <= gross.
func (l *SaleLine) ApplyDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThan(l.Gross()) {
		return ErrInvalidDiscount
	}
	l.Discount = discount
	l.LineTotal = l.computeTotal()
	return nil
}

func (l *SaleLine) computeTotal() decimal.Decimal {
	return l.Gross().Sub(l.Discount)
}

// PaymentInput is a tender offered at finalize time
type PaymentInput struct {
	Method      PaymentMethod
	Amount      decimal.Decimal
	ExternalRef *string
}

// ValidatePayments checks the tender list before any state is touched.
func ValidatePayments(payments []PaymentInput) error {
	if len(payments) == 0 {
		return ErrNoPayments
	}
	for _, p := range payments {
		if !p.Method.Valid() || !p.Amount.IsPositive() {
			return ErrInvalidPayment
		}
	}
	return nil
}

// SumPayments totals tendered amounts.
func SumPayments(payments []PaymentInput) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// ResolvePaymentStatus is paid iff |paid - grandTotal| < tolerance, else partial.
func ResolvePaymentStatus(paid, grandTotal, tolerance decimal.Decimal) PaymentStatus {
	if paid.Sub(grandTotal).Abs().LessThan(tolerance) {
		return PaymentStatusPaid
	}
	return PaymentStatusPartial
}

// SaleSnapshot is the serialisable audit view of a sale.
type SaleSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	Status        SaleStatus      `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	LineCount     int             `json:"line_count"`
	Payments      []Payment       `json:"payments,omitempty"`
}

// Snapshot captures the sale header for the audit trail.
func (s *Sale) Snapshot() SaleSnapshot {
	return SaleSnapshot{
		ID:            s.ID,
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
		Subtotal:      s.Subtotal,
		TaxTotal:      s.TaxTotal,
		DiscountTotal: s.DiscountTotal,
		GrandTotal:    s.GrandTotal,
		LineCount:     len(s.Lines),
		Payments:      append([]Payment(nil), s.Payments...),
	}
}
