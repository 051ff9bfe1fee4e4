package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/repository"
)

// InventoryLedger adjusts stock per product and location
type InventoryLedger interface {
	// Decrement runs on q, the caller's transaction. A missing record is a
	// no-op and reports applied=false.
	Decrement(ctx context.Context, q database.DBTX, productID, locationID uuid.UUID, qty decimal.Decimal) (applied bool, newQty decimal.Decimal, err error)
	ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error)
	LowStock(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error)
}

type inventoryLedger struct {
	repo          repository.InventoryRepository
	locations     repository.LocationRepository
	allowNegative bool
	logger        *zap.Logger
}

func NewInventoryLedger(repo repository.InventoryRepository, locations repository.LocationRepository, allowNegative bool, logger *zap.Logger) InventoryLedger {
	return &inventoryLedger{
		repo:          repo,
		locations:     locations,
		allowNegative: allowNegative,
		logger:        logger.Named("inventory"),
	}
}

func (l *inventoryLedger) Decrement(ctx context.Context, q database.DBTX, productID, locationID uuid.UUID, qty decimal.Decimal) (bool, decimal.Decimal, error) {
	if !qty.IsPositive() {
		return false, decimal.Zero, domain.ErrInvalidQuantity
	}

	repo := l.repo
	if q != nil {
		repo = repo.WithDB(q)
	}

	applied, newQty, err := repo.Decrement(ctx, productID, locationID, qty)
	if err != nil {
		return false, decimal.Zero, err
	}
	if !applied {
		l.logger.Debug("no stock record, decrement skipped",
			zap.String("product_id", productID.String()),
			zap.String("location_id", locationID.String()))
		return false, decimal.Zero, nil
	}

	if newQty.IsNegative() {
		if !l.allowNegative {
			return true, newQty, ErrInsufficientStock
		}
		l.logger.Warn("stock went negative",
			zap.String("product_id", productID.String()),
			zap.String("location_id", locationID.String()),
			zap.String("qty_on_hand", newQty.String()))
	}

	return true, newQty, nil
}

func (l *inventoryLedger) ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error) {
	if _, err := l.locations.FindByID(ctx, locationID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to find location: %w", err)
	}

	records, err := l.repo.ListByLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return records, nil
}

// LowStock returns the records at or below their reorder point.
func (l *inventoryLedger) LowStock(ctx context.Context, locationID uuid.UUID) ([]*domain.InventoryRecord, error) {
	records, err := l.ListByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	low := []*domain.InventoryRecord{}
	for _, rec := range records {
		if domain.ReorderCheck(*rec) {
			low = append(low, rec)
		}
	}
	return low, nil
}
