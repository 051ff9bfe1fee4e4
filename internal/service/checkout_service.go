package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/outbox"
	"pos-core/internal/repository"
)

const saleCompletedEvent = "sale.completed"

// OpenSaleParams starts a sale. LocationID falls back to the configured
// default location; CustomerID is optional.
type OpenSaleParams struct {
	CashierID  *uuid.UUID
	RegisterID *string
	LocationID *uuid.UUID
	CustomerID *uuid.UUID
}

// FinalizeParams closes a sale with one or more tenders.
type FinalizeParams struct {
	SaleID   uuid.UUID
	ActorID  *uuid.UUID
	Payments []domain.PaymentInput
}

// CheckoutService drives a sale from open to completed or void
type CheckoutService interface {
	OpenSale(ctx context.Context, params OpenSaleParams) (*domain.Sale, error)
	AddLine(ctx context.Context, saleID uuid.UUID, code string, qty decimal.Decimal) (*domain.SaleLine, error)
	RemoveLine(ctx context.Context, saleID, lineID uuid.UUID) error
	ApplyLineDiscount(ctx context.Context, actorID *uuid.UUID, saleID, lineID uuid.UUID, discount decimal.Decimal) (*domain.SaleLine, error)
	RecomputeTotals(ctx context.Context, saleID uuid.UUID) (domain.Totals, error)
	Finalize(ctx context.Context, params FinalizeParams) (*domain.Sale, error)
	Cancel(ctx context.Context, saleID uuid.UUID) error
	GetSale(ctx context.Context, saleID uuid.UUID) (*domain.Sale, error)
}

// CheckoutDeps are the collaborators of the checkout engine.
type CheckoutDeps struct {
	Tx        database.Transactor
	Sales     repository.SaleRepository
	Products  repository.ProductRepository
	Locations repository.LocationRepository
	Customers repository.CustomerRepository
	Inventory InventoryLedger
	Audit     AuditTrail
	Outbox    outbox.Repository
	Logger    *zap.Logger
}

type CheckoutOptions struct {
	PaymentTolerance   decimal.Decimal
	AllowEmptyFinalize bool
	DefaultLocationID  *uuid.UUID
	TopicPrefix        string
}

type checkoutService struct {
	CheckoutDeps
	opts   CheckoutOptions
	logger *zap.Logger
	now    func() time.Time
}

func NewCheckoutService(deps CheckoutDeps, opts CheckoutOptions) CheckoutService {
	if !opts.PaymentTolerance.IsPositive() {
		opts.PaymentTolerance = decimal.New(1, -2)
	}
	return &checkoutService{
		CheckoutDeps: deps,
		opts:         opts,
		logger:       deps.Logger.Named("checkout"),
		now:          time.Now,
	}
}

func (s *checkoutService) OpenSale(ctx context.Context, params OpenSaleParams) (*domain.Sale, error) {
	if params.CashierID == nil || *params.CashierID == uuid.Nil {
		return nil, ErrCashierRequired
	}

	locationID := params.LocationID
	if locationID == nil {
		locationID = s.opts.DefaultLocationID
	} else if _, err := s.Locations.FindByID(ctx, *locationID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to find location: %w", err)
	}

	if params.CustomerID != nil {
		if _, err := s.Customers.FindByID(ctx, *params.CustomerID); err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return nil, ErrCustomerNotFound
			}
			return nil, fmt.Errorf("failed to find customer: %w", err)
		}
	}

	sale := domain.NewSale(params.CashierID, params.RegisterID, locationID, params.CustomerID, s.now().UTC())
	if err := s.Sales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to open sale: %w", err)
	}

	s.logger.Info("sale opened",
		zap.String("sale_id", sale.ID.String()),
		zap.String("cashier_id", params.CashierID.String()))

	return sale, nil
}

func (s *checkoutService) AddLine(ctx context.Context, saleID uuid.UUID, code string, qty decimal.Decimal) (*domain.SaleLine, error) {
	if !qty.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}

	var line *domain.SaleLine
	err := s.Tx.WithTx(ctx, func(q database.DBTX) error {
		sales := s.Sales.WithDB(q)

		sale, err := s.lockOpenSale(ctx, sales, saleID)
		if err != nil {
			return err
		}

		product, err := s.Products.WithDB(q).FindActiveByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to look up product: %w", err)
		}

		line, err = domain.NewSaleLine(sale.ID, nextPosition(sale.Lines), product, qty)
		if err != nil {
			return err
		}
		if err := sales.InsertLine(ctx, line); err != nil {
			return err
		}

		sale.Lines = append(sale.Lines, *line)
		return s.writeTotals(ctx, sales, sale)
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

func (s *checkoutService) RemoveLine(ctx context.Context, saleID, lineID uuid.UUID) error {
	return s.Tx.WithTx(ctx, func(q database.DBTX) error {
		sales := s.Sales.WithDB(q)

		sale, err := s.lockOpenSale(ctx, sales, saleID)
		if err != nil {
			return err
		}

		if err := sales.DeleteLine(ctx, saleID, lineID); err != nil {
			if errors.Is(err, repository.ErrSaleLineNotFound) {
				return ErrSaleLineNotFound
			}
			return err
		}

		kept := sale.Lines[:0]
		for _, l := range sale.Lines {
			if l.ID != lineID {
				kept = append(kept, l)
			}
		}
		sale.Lines = kept
		return s.writeTotals(ctx, sales, sale)
	})
}

func (s *checkoutService) ApplyLineDiscount(ctx context.Context, actorID *uuid.UUID, saleID, lineID uuid.UUID, discount decimal.Decimal) (*domain.SaleLine, error) {
	var updated *domain.SaleLine
	err := s.Tx.WithTx(ctx, func(q database.DBTX) error {
		sales := s.Sales.WithDB(q)

		sale, err := s.lockOpenSale(ctx, sales, saleID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range sale.Lines {
			if sale.Lines[i].ID == lineID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrSaleLineNotFound
		}

		line := &sale.Lines[idx]
		before := *line
		if err := line.ApplyDiscount(discount); err != nil {
			return err
		}
		if err := sales.UpdateLineDiscount(ctx, line); err != nil {
			return err
		}
		if err := s.writeTotals(ctx, sales, sale); err != nil {
			return err
		}

		if err := s.Audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionLineDiscount,
			EntityType: "sale_line",
			EntityID:   line.ID.String(),
			Before:     before,
			After:      *line,
		}); err != nil {
			return err
		}

		copied := *line
		updated = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *checkoutService) RecomputeTotals(ctx context.Context, saleID uuid.UUID) (domain.Totals, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.ComputeTotals(sale.Lines), nil
}

// Finalize completes the sale in one transaction: payments, stock, header,
// audit entry and outbox event commit together or not at all.
func (s *checkoutService) Finalize(ctx context.Context, params FinalizeParams) (*domain.Sale, error) {
	var finalized *domain.Sale
	err := s.Tx.WithTx(ctx, func(q database.DBTX) error {
		sales := s.Sales.WithDB(q)

		sale, err := s.lockOpenSale(ctx, sales, params.SaleID)
		if err != nil {
			return err
		}
		if len(sale.Lines) == 0 && !s.opts.AllowEmptyFinalize {
			return ErrEmptySale
		}
		if err := domain.ValidatePayments(params.Payments); err != nil {
			return err
		}

		before := sale.Snapshot()
		now := s.now().UTC()

		totals := domain.ComputeTotals(sale.Lines)
		totals.Apply(sale)
		sale.PaymentStatus = domain.ResolvePaymentStatus(domain.SumPayments(params.Payments), totals.GrandTotal, s.opts.PaymentTolerance)

		for _, in := range params.Payments {
			payment := domain.Payment{
				ID:          uuid.New(),
				SaleID:      sale.ID,
				Method:      in.Method,
				Amount:      in.Amount,
				ExternalRef: in.ExternalRef,
				Status:      domain.PaymentCaptured,
				CreatedAt:   now,
			}
			if err := sales.InsertPayment(ctx, &payment); err != nil {
				return err
			}
			sale.Payments = append(sale.Payments, payment)
		}

		if sale.LocationID != nil {
			for _, move := range domain.StockMoves(sale.Lines) {
				if _, _, err := s.Inventory.Decrement(ctx, q, move.ProductID, *sale.LocationID, move.Qty); err != nil {
					return err
				}
			}
		}

		sale.Status = domain.SaleStatusCompleted
		sale.CompletedAt = &now
		if err := sales.UpdateHeader(ctx, sale); err != nil {
			return err
		}

		if err := s.Audit.Record(ctx, q, AuditRecord{
			ActorID:    params.ActorID,
			Action:     domain.ActionSaleFinalize,
			EntityType: "sale",
			EntityID:   sale.ID.String(),
			Before:     before,
			After:      sale.Snapshot(),
		}); err != nil {
			return err
		}

		if err := s.enqueueCompleted(ctx, q, sale); err != nil {
			return err
		}

		finalized = sale
		return nil
	})
	if err != nil {
		s.logger.Warn("finalize failed",
			zap.String("sale_id", params.SaleID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("sale finalized",
		zap.String("sale_id", finalized.ID.String()),
		zap.String("grand_total", finalized.GrandTotal.String()),
		zap.String("payment_status", string(finalized.PaymentStatus)))

	return finalized, nil
}

func (s *checkoutService) Cancel(ctx context.Context, saleID uuid.UUID) error {
	err := s.Tx.WithTx(ctx, func(q database.DBTX) error {
		sales := s.Sales.WithDB(q)

		sale, err := s.lockOpenSale(ctx, sales, saleID)
		if err != nil {
			return err
		}
		if err := sales.DeleteLinesAndPayments(ctx, saleID); err != nil {
			return err
		}

		sale.Lines = nil
		sale.Payments = nil
		domain.Totals{}.Apply(sale)
		sale.Status = domain.SaleStatusVoid
		return sales.UpdateHeader(ctx, sale)
	})
	if err != nil {
		return err
	}

	s.logger.Info("sale cancelled", zap.String("sale_id", saleID.String()))
	return nil
}

func (s *checkoutService) GetSale(ctx context.Context, saleID uuid.UUID) (*domain.Sale, error) {
	sale, err := s.Sales.Get(ctx, saleID)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *checkoutService) lockOpenSale(ctx context.Context, sales repository.SaleRepository, saleID uuid.UUID) (*domain.Sale, error) {
	sale, err := sales.GetForUpdate(ctx, saleID)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	if !sale.IsOpen() {
		return nil, domain.ErrSaleNotOpen
	}
	return sale, nil
}

func (s *checkoutService) writeTotals(ctx context.Context, sales repository.SaleRepository, sale *domain.Sale) error {
	domain.ComputeTotals(sale.Lines).Apply(sale)
	return sales.UpdateHeader(ctx, sale)
}

func nextPosition(lines []domain.SaleLine) int {
	highest := 0
	for _, l := range lines {
		if l.Position > highest {
			highest = l.Position
		}
	}
	return highest + 1
}

// SaleCompleted is the event published for downstream consumers once a
// sale is finalized.
type SaleCompleted struct {
	SaleID        uuid.UUID            `json:"sale_id"`
	CashierID     *uuid.UUID           `json:"cashier_id,omitempty"`
	RegisterID    *string              `json:"register_id,omitempty"`
	LocationID    *uuid.UUID           `json:"location_id,omitempty"`
	CustomerID    *uuid.UUID           `json:"customer_id,omitempty"`
	GrandTotal    decimal.Decimal      `json:"grand_total"`
	TaxTotal      decimal.Decimal      `json:"tax_total"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	CompletedAt   time.Time            `json:"completed_at"`
	Lines         []SaleCompletedLine  `json:"lines"`
}

type SaleCompletedLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func (s *checkoutService) enqueueCompleted(ctx context.Context, q database.DBTX, sale *domain.Sale) error {
	event := SaleCompleted{
		SaleID:        sale.ID,
		CashierID:     sale.CashierID,
		RegisterID:    sale.RegisterID,
		LocationID:    sale.LocationID,
		CustomerID:    sale.CustomerID,
		GrandTotal:    sale.GrandTotal,
		TaxTotal:      sale.TaxTotal,
		PaymentStatus: sale.PaymentStatus,
		CompletedAt:   *sale.CompletedAt,
		Lines:         make([]SaleCompletedLine, 0, len(sale.Lines)),
	}
	for _, l := range sale.Lines {
		event.Lines = append(event.Lines, SaleCompletedLine{ProductID: l.ProductID, Qty: l.Qty, LineTotal: l.LineTotal})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode sale event: %w", err)
	}

	key := sale.ID.String()
	msg := &outbox.Message{
		Topic:        EventTopic(s.opts.TopicPrefix, saleCompletedEvent),
		Headers:      map[string]string{"event_type": saleCompletedEvent},
		Payload:      payload,
		PartitionKey: &key,
	}
	if err := s.Outbox.WithDB(q).Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue sale event: %w", err)
	}
	return nil
}

// EventTopic joins the configured prefix and an event name.
func EventTopic(prefix, event string) string {
	if prefix == "" {
		return event
	}
	return prefix + "." + event
}
