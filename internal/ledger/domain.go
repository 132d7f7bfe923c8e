package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates ledger invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusRefunded  InvoiceStatus = "REFUNDED"
)

// Invoice is a read-only billing record. The ledger owns its lifecycle; this
// module only consumes it.
type Invoice struct {
	ID         int64
	PersonID   int64
	FamilyID   int64
	IssuedAt   time.Time
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	PaidAmount decimal.Decimal
	Status     InvoiceStatus
}

// Payment is a read-only payment record applied to an invoice.
type Payment struct {
	ID        int64
	InvoiceID int64
	PaidAt    time.Time
	Amount    decimal.Decimal
	Method    string
}

// LineItem is a single charge on an invoice carrying the category tag used
// for qualifying/non-qualifying classification.
type LineItem struct {
	ID        int64
	InvoiceID int64
	Category  string
	Label     string
	Amount    decimal.Decimal
}

// FamilyRef carries the minimal family identity needed by exports.
type FamilyRef struct {
	ID          int64
	DisplayName string
}
