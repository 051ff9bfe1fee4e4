package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-core/internal/database"
	"pos-core/internal/domain"
)

// InventoryRepository reads and adjusts stock levels
type InventoryRepository interface {
	WithDB(db database.DBTX) InventoryRepository
	// Decrement subtracts qty in a single statement and returns the new level.
	// applied is false when no record exists for the pair.
	Decrement(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal) (applied bool, newQty decimal.Decimal, err error)
	Upsert(ctx context.Context, record *domain.InventoryRecord) error
	Find(ctx context.Context, productID, locationID uuid.UUID) (*domain.InventoryRecord, error)
	ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error)
}

var ErrInventoryRecordNotFound = errors.New("inventory record not found")

type inventoryRepository struct {
	db database.DBTX
}

func NewInventoryRepository(db database.DBTX) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) WithDB(db database.DBTX) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Decrement(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal) (bool, decimal.Decimal, error) {
	query := `
		UPDATE inventory
		SET qty_on_hand = qty_on_hand - $3
		WHERE product_id = $1 AND location_id = $2
		RETURNING qty_on_hand
	`

	var newQty decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, productID, locationID, qty).Scan(&newQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, decimal.Zero, nil
		}
		return false, decimal.Zero, fmt.Errorf("failed to decrement inventory: %w", err)
	}

	return true, newQty, nil
}

func (r *inventoryRepository) Upsert(ctx context.Context, record *domain.InventoryRecord) error {
	query := `
		INSERT INTO inventory (id, product_id, location_id, qty_on_hand, reorder_point)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, location_id)
		DO UPDATE SET qty_on_hand = EXCLUDED.qty_on_hand, reorder_point = EXCLUDED.reorder_point
		RETURNING id, updated_at
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, query, record.ID, record.ProductID, record.LocationID, record.QtyOnHand, record.ReorderPoint).
		Scan(&record.ID, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory: %w", err)
	}
	return nil
}

const inventorySelect = `
	SELECT id, product_id, location_id, qty_on_hand, reorder_point, updated_at
	FROM inventory`

func scanInventory(row rowScanner) (*domain.InventoryRecord, error) {
	rec := &domain.InventoryRecord{}
	if err := row.Scan(&rec.ID, &rec.ProductID, &rec.LocationID, &rec.QtyOnHand, &rec.ReorderPoint, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *inventoryRepository) Find(ctx context.Context, productID, locationID uuid.UUID) (*domain.InventoryRecord, error) {
	rec, err := scanInventory(r.db.QueryRowContext(ctx, inventorySelect+` WHERE product_id = $1 AND location_id = $2`, productID, locationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryRecordNotFound
		}
		return nil, fmt.Errorf("failed to find inventory: %w", err)
	}
	return rec, nil
}

func (r *inventoryRepository) ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, inventorySelect+` WHERE location_id = $1 ORDER BY product_id`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	records := []*domain.InventoryRecord{}
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}
	return records, nil
}
