package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pos-core/internal/database"
	"pos-core/internal/domain"
)

var (
	ErrSaleNotFound     = errors.New("sale not found")
	ErrSaleLineNotFound = errors.New("sale line not found")
)

// SaleRepository persists the sale aggregate: header, lines and payments
type SaleRepository interface {
	WithDB(db database.DBTX) SaleRepository
	Create(ctx context.Context, sale *domain.Sale) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	// GetForUpdate locks the sale header row. Only meaningful inside a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	UpdateHeader(ctx context.Context, sale *domain.Sale) error
	InsertLine(ctx context.Context, line *domain.SaleLine) error
	UpdateLineDiscount(ctx context.Context, line *domain.SaleLine) error
	DeleteLine(ctx context.Context, saleID, lineID uuid.UUID) error
	InsertPayment(ctx context.Context, payment *domain.Payment) error
	DeleteLinesAndPayments(ctx context.Context, saleID uuid.UUID) error
}

type saleRepository struct {
	db database.DBTX
}

func NewSaleRepository(db database.DBTX) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) WithDB(db database.DBTX) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	query := `
		INSERT INTO sales (id, created_at, cashier_id, register_id, customer_id, location_id,
		                   subtotal, tax_total, discount_total, grand_total, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		sale.ID,
		sale.CreatedAt,
		sale.CashierID,
		sale.RegisterID,
		sale.CustomerID,
		sale.LocationID,
		sale.Subtotal,
		sale.TaxTotal,
		sale.DiscountTotal,
		sale.GrandTotal,
		sale.Status,
		sale.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}

	return nil
}

const saleHeaderSelect = `
	SELECT id, created_at, cashier_id, register_id, customer_id, location_id,
	       subtotal, tax_total, discount_total, grand_total, status, payment_status, completed_at
	FROM sales
	WHERE id = $1`

func (r *saleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return r.load(ctx, saleHeaderSelect, id)
}

func (r *saleRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return r.load(ctx, saleHeaderSelect+` FOR UPDATE`, id)
}

func (r *saleRepository) load(ctx context.Context, headerQuery string, id uuid.UUID) (*domain.Sale, error) {
	sale := &domain.Sale{}
	err := r.db.QueryRowContext(ctx, headerQuery, id).Scan(
		&sale.ID,
		&sale.CreatedAt,
		&sale.CashierID,
		&sale.RegisterID,
		&sale.CustomerID,
		&sale.LocationID,
		&sale.Subtotal,
		&sale.TaxTotal,
		&sale.DiscountTotal,
		&sale.GrandTotal,
		&sale.Status,
		&sale.PaymentStatus,
		&sale.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale: %w", err)
	}

	if sale.Lines, err = r.lines(ctx, id); err != nil {
		return nil, err
	}
	if sale.Payments, err = r.payments(ctx, id); err != nil {
		return nil, err
	}

	return sale, nil
}

func (r *saleRepository) lines(ctx context.Context, saleID uuid.UUID) ([]domain.SaleLine, error) {
	query := `
		SELECT id, sale_id, position, product_id, product_name, qty, unit_price, discount,
		       tax_rate_id, tax_rate, line_total
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.SaleLine{}
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(
			&line.ID,
			&line.SaleID,
			&line.Position,
			&line.ProductID,
			&line.ProductName,
			&line.Qty,
			&line.UnitPrice,
			&line.Discount,
			&line.TaxRateID,
			&line.TaxRate,
			&line.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		lines = append(lines, line)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale lines: %w", err)
	}

	return lines, nil
}

func (r *saleRepository) payments(ctx context.Context, saleID uuid.UUID) ([]domain.Payment, error) {
	query := `
		SELECT id, sale_id, method, amount, external_ref, status, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.ExternalRef, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

// UpdateHeader writes totals and lifecycle fields of the sale.
func (r *saleRepository) UpdateHeader(ctx context.Context, sale *domain.Sale) error {
	query := `
		UPDATE sales
		SET subtotal = $2, tax_total = $3, discount_total = $4, grand_total = $5,
		    status = $6, payment_status = $7, completed_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		sale.ID,
		sale.Subtotal,
		sale.TaxTotal,
		sale.DiscountTotal,
		sale.GrandTotal,
		sale.Status,
		sale.PaymentStatus,
		sale.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSaleNotFound
	}

	return nil
}

func (r *saleRepository) InsertLine(ctx context.Context, line *domain.SaleLine) error {
	query := `
		INSERT INTO sale_lines (id, sale_id, position, product_id, product_name, qty, unit_price,
		                        discount, tax_rate_id, tax_rate, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		line.ID,
		line.SaleID,
		line.Position,
		line.ProductID,
		line.ProductName,
		line.Qty,
		line.UnitPrice,
		line.Discount,
		line.TaxRateID,
		line.TaxRate,
		line.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale line: %w", err)
	}

	return nil
}

func (r *saleRepository) UpdateLineDiscount(ctx context.Context, line *domain.SaleLine) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sale_lines SET discount = $3, line_total = $4 WHERE id = $1 AND sale_id = $2`,
		line.ID, line.SaleID, line.Discount, line.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSaleLineNotFound
	}

	return nil
}

func (r *saleRepository) DeleteLine(ctx context.Context, saleID, lineID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE id = $1 AND sale_id = $2`, lineID, saleID)
	if err != nil {
		return fmt.Errorf("failed to delete sale line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSaleLineNotFound
	}

	return nil
}

func (r *saleRepository) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, sale_id, method, amount, external_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.SaleID,
		payment.Method,
		payment.Amount,
		payment.ExternalRef,
		payment.Status,
		payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

func (r *saleRepository) DeleteLinesAndPayments(ctx context.Context, saleID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("failed to delete sale lines: %w", err)
	}
	return nil
}
