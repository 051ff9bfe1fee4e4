package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-core/internal/database"
	"pos-core/internal/domain"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductSKUExists     = errors.New("product with this sku already exists")
	ErrProductBarcodeExists = errors.New("product with this barcode already exists")
)

// ProductFilter narrows List results
type ProductFilter struct {
	CategoryID *uuid.UUID
	ActiveOnly bool
	Query      string
	Page       int
	PageSize   int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	WithDB(db database.DBTX) ProductRepository
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindActiveByCode(ctx context.Context, code string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
}

type productRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db database.DBTX) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithDB(db database.DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `
	p.id, p.sku, p.barcode, p.name, p.price, p.cost, p.category_id, p.tax_id,
	p.active, p.created_at, p.updated_at, t.name, t.rate`

const productFrom = `
	FROM products p
	LEFT JOIN tax_rates t ON t.id = p.tax_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var (
		taxName *string
		taxRate *decimal.Decimal
	)
	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Barcode,
		&product.Name,
		&product.Price,
		&product.Cost,
		&product.CategoryID,
		&product.TaxRateID,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
		&taxName,
		&taxRate,
	)
	if err != nil {
		return nil, err
	}
	if product.TaxRateID != nil && taxRate != nil {
		product.TaxRate = &domain.TaxRate{ID: *product.TaxRateID, Rate: *taxRate}
		if taxName != nil {
			product.TaxRate.Name = *taxName
		}
	}
	return product, nil
}

func mapProductWriteError(err error, action string) error {
	switch {
	case database.IsUniqueViolation(err, "products_sku_key"):
		return ErrProductSKUExists
	case database.IsUniqueViolation(err, "products_barcode_key"):
		return ErrProductBarcodeExists
	}
	return fmt.Errorf("failed to %s product: %w", action, err)
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, sku, barcode, name, category_id, tax_id, price, cost, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Barcode,
		product.Name,
		product.CategoryID,
		product.TaxRateID,
		product.Price,
		product.Cost,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return mapProductWriteError(err, "create")
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET sku = $2, barcode = $3, name = $4, category_id = $5, tax_id = $6,
		    price = $7, cost = $8, active = $9
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Barcode,
		product.Name,
		product.CategoryID,
		product.TaxRateID,
		product.Price,
		product.Cost,
		product.Active,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return mapProductWriteError(err, "update")
	}

	return nil
}

// Deactivate hides a product from scanning. Sale lines keep referencing it.
func (r *productRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + productFrom + ` WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindActiveByCode resolves a scanned code. A barcode match wins over a SKU
// match; inactive products never match.
func (r *productRepository) FindActiveByCode(ctx context.Context, code string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + productFrom + `
		WHERE p.active = TRUE AND (p.barcode = $1 OR p.sku = $1)
		ORDER BY (p.barcode = $1) DESC NULLS LAST
		LIMIT 1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by code: %w", err)
	}

	return product, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 50
	}

	var (
		conditions []string
		args       []any
	)
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "p.active = TRUE")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.sku ILIKE $%d OR p.barcode ILIKE $%d)", len(args), len(args), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY p.name ASC LIMIT $%d OFFSET $%d`,
		productColumns, productFrom, whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}
