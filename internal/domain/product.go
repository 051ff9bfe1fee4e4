package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item in the catalog
type Product struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	SKU        string           `json:"sku" db:"sku"`
	Barcode    *string          `json:"barcode,omitempty" db:"barcode"`
	Name       string           `json:"name" db:"name"`
	Price      decimal.Decimal  `json:"price" db:"price"`
	Cost       *decimal.Decimal `json:"cost,omitempty" db:"cost"`
	CategoryID *uuid.UUID       `json:"category_id,omitempty" db:"category_id"`
	TaxRateID  *uuid.UUID       `json:"tax_rate_id,omitempty" db:"tax_id"`
	Active     bool             `json:"active" db:"active"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`

	// TaxRate is resolved on catalog lookups used by checkout.
	TaxRate *TaxRate `json:"tax_rate,omitempty" db:"-"`
}

// Category represents a product category
type Category struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// TaxRate is a named tax expressed as a fraction (0.21 = 21%)
type TaxRate struct {
	ID   uuid.UUID       `json:"id" db:"id"`
	Name string          `json:"name" db:"name"`
	Rate decimal.Decimal `json:"rate" db:"rate"`
}

// Location is a stock-holding place such as a store or a back room
type Location struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}
