package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pos-core/internal/database"
)

// DailySales is one row of the sales-by-day report
type DailySales struct {
	Day        time.Time       `json:"day"`
	SaleCount  int             `json:"sale_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// GroupTotal is a labelled sum used by the grouped reports
type GroupTotal struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// ReportRepository aggregates completed sales within [from, until)
type ReportRepository interface {
	SalesByDay(ctx context.Context, from, until time.Time) ([]DailySales, error)
	SalesByCategory(ctx context.Context, from, until time.Time) ([]GroupTotal, error)
	SalesByCashier(ctx context.Context, from, until time.Time) ([]GroupTotal, error)
	SalesByPaymentMethod(ctx context.Context, from, until time.Time) ([]GroupTotal, error)
}

type reportRepository struct {
	db database.DBTX
}

func NewReportRepository(db database.DBTX) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) SalesByDay(ctx context.Context, from, until time.Time) ([]DailySales, error) {
	query := `
		SELECT date_trunc('day', s.created_at) AS day,
		       COUNT(*),
		       COALESCE(SUM(s.subtotal), 0),
		       COALESCE(SUM(s.tax_total), 0),
		       COALESCE(SUM(s.grand_total), 0)
		FROM sales s
		WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales by day: %w", err)
	}
	defer rows.Close()

	out := []DailySales{}
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.SaleCount, &d.Subtotal, &d.TaxTotal, &d.GrandTotal); err != nil {
			return nil, fmt.Errorf("failed to scan sales by day: %w", err)
		}
		out = append(out, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales by day: %w", err)
	}
	return out, nil
}

func (r *reportRepository) SalesByCategory(ctx context.Context, from, until time.Time) ([]GroupTotal, error) {
	return r.grouped(ctx, "category", `
		SELECT COALESCE(c.name, 'Uncategorized'), COALESCE(SUM(l.line_total), 0)
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		JOIN products p ON p.id = l.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY 1
		ORDER BY 2 DESC
	`, from, until)
}

func (r *reportRepository) SalesByCashier(ctx context.Context, from, until time.Time) ([]GroupTotal, error) {
	return r.grouped(ctx, "cashier", `
		SELECT COALESCE(u.username, 'unknown'), COALESCE(SUM(s.grand_total), 0)
		FROM sales s
		LEFT JOIN users u ON u.id = s.cashier_id
		WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY 1
		ORDER BY 2 DESC
	`, from, until)
}

func (r *reportRepository) SalesByPaymentMethod(ctx context.Context, from, until time.Time) ([]GroupTotal, error) {
	return r.grouped(ctx, "payment method", `
		SELECT p.method, COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY 1
		ORDER BY 2 DESC
	`, from, until)
}

func (r *reportRepository) grouped(ctx context.Context, name, query string, from, until time.Time) ([]GroupTotal, error) {
	rows, err := r.db.QueryContext(ctx, query, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales by %s: %w", name, err)
	}
	defer rows.Close()

	out := []GroupTotal{}
	for rows.Next() {
		var g GroupTotal
		if err := rows.Scan(&g.Label, &g.Total); err != nil {
			return nil, fmt.Errorf("failed to scan sales by %s: %w", name, err)
		}
		out = append(out, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales by %s: %w", name, err)
	}
	return out, nil
}
