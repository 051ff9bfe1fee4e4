package service

import "pos-core/internal/domain"

// Operation is a protected capability checked by Authorize.
type Operation string

const (
	OpCheckout       Operation = "checkout"
	OpCatalogManage  Operation = "catalog.manage"
	OpCustomerManage Operation = "customer.manage"
	OpReportView     Operation = "report.view"
	OpInventoryView  Operation = "inventory.view"
	OpPrinterManage  Operation = "printer.manage"
	OpLabelPrint     Operation = "label.print"
)

// standardOperations are open to every authenticated operator.
var standardOperations = map[Operation]bool{
	OpCheckout: true,
}

// IsElevated reports whether role belongs to the elevated tier.
func IsElevated(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleManager
}

// Authorize decides whether role may perform op. Unknown or empty roles are
// treated as the standard tier.
func Authorize(role string, op Operation) bool {
	if IsElevated(role) {
		return true
	}
	return standardOperations[op]
}
