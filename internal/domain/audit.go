package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit action codes.
const (
	ActionSaleFinalize       = "sale.finalize"
	ActionProductCreate      = "product.create"
	ActionProductUpdate      = "product.update"
	ActionProductDeactivate  = "product.deactivate"
	ActionCategoryCreate     = "category.create"
	ActionTaxRateCreate      = "tax_rate.create"
	ActionCustomerCreate     = "customer.create"
	ActionCustomerUpdate     = "customer.update"
	ActionCustomerDelete     = "customer.delete"
	ActionLineDiscount       = "sale_line.discount"
	ActionPasswordChange     = "user.password_change"
	ActionPrinterProfileSave = "printer_profile.save"
)

// AuditEntry is an immutable record of who changed what
type AuditEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty" db:"before_json"`
	After      json.RawMessage `json:"after,omitempty" db:"after_json"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
