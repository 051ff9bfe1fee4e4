package service

import "pos-core/internal/apperr"

var (
	ErrInvalidCredentials = apperr.Authentication("INVALID_CREDENTIALS", "invalid username or password")
	ErrInvalidToken       = apperr.Authentication("INVALID_TOKEN", "invalid token")
	ErrTokenExpired       = apperr.Authentication("TOKEN_EXPIRED", "token has expired")
	ErrInvalidPassword    = apperr.Validation("INVALID_PASSWORD", "new password must be non-empty and match its confirmation")

	ErrCashierRequired   = apperr.Validation("CASHIER_REQUIRED", "a sale must be opened by a cashier")
	ErrItemNotFound      = apperr.NotFound("ITEM_NOT_FOUND", "no active product matches the scanned code")
	ErrSaleNotFound      = apperr.NotFound("SALE_NOT_FOUND", "sale not found")
	ErrSaleLineNotFound  = apperr.NotFound("SALE_LINE_NOT_FOUND", "sale line not found")
	ErrEmptySale         = apperr.Validation("EMPTY_SALE", "a sale needs at least one line to be finalized")
	ErrInsufficientStock = apperr.Conflict("INSUFFICIENT_STOCK", "not enough stock to complete the sale")
	ErrCustomerNotFound  = apperr.NotFound("CUSTOMER_NOT_FOUND", "customer not found")
	ErrLocationNotFound  = apperr.NotFound("LOCATION_NOT_FOUND", "location not found")

	ErrProductNotFound = apperr.NotFound("PRODUCT_NOT_FOUND", "product not found")
	ErrDuplicateSKU    = apperr.Conflict("DUPLICATE_SKU", "a product with this sku already exists")
	ErrDuplicateCode   = apperr.Conflict("DUPLICATE_BARCODE", "a product with this barcode already exists")
	ErrCategoryExists  = apperr.Conflict("DUPLICATE_CATEGORY", "a category with this name already exists")
	ErrTaxRateExists   = apperr.Conflict("DUPLICATE_TAX_RATE", "a tax rate with this name already exists")
	ErrInvalidProduct  = apperr.Validation("INVALID_PRODUCT", "product needs a sku, a name and a non-negative price")
	ErrInvalidTaxRate  = apperr.Validation("INVALID_TAX_RATE", "tax rate needs a name and a non-negative rate")
	ErrInvalidCategory = apperr.Validation("INVALID_CATEGORY", "category needs a name and an existing parent")
	ErrInvalidCustomer = apperr.Validation("INVALID_CUSTOMER", "customer needs a name")
	ErrInvalidRange    = apperr.Validation("INVALID_RANGE", "report range end must not precede its start")
	ErrInvalidAudit    = apperr.Validation("INVALID_AUDIT_ENTRY", "audit entries need an action, an entity type and an entity id")
)
