package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryRecord holds stock for one product at one location
type InventoryRecord struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ProductID    uuid.UUID       `json:"product_id" db:"product_id"`
	LocationID   uuid.UUID       `json:"location_id" db:"location_id"`
	QtyOnHand    decimal.Decimal `json:"qty_on_hand" db:"qty_on_hand"`
	ReorderPoint decimal.Decimal `json:"reorder_point" db:"reorder_point"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ReorderCheck reports whether the record is at or below its reorder point.
func ReorderCheck(record InventoryRecord) bool {
	return record.QtyOnHand.LessThanOrEqual(record.ReorderPoint)
}

// StockMove is the total quantity a sale takes of one product.
type StockMove struct {
	ProductID uuid.UUID
	Qty       decimal.Decimal
}

// StockMoves sums line quantities per product, ordered by product ID so that
// concurrent finalizes lock inventory rows in the same order.
func StockMoves(lines []SaleLine) []StockMove {
	byProduct := make(map[uuid.UUID]decimal.Decimal, len(lines))
	for _, line := range lines {
		byProduct[line.ProductID] = byProduct[line.ProductID].Add(line.Qty)
	}

	moves := make([]StockMove, 0, len(byProduct))
	for id, qty := range byProduct {
		moves = append(moves, StockMove{ProductID: id, Qty: qty})
	}
	sort.Slice(moves, func(i, j int) bool {
		return bytes.Compare(moves[i].ProductID[:], moves[j].ProductID[:]) < 0
	})
	return moves
}
