package ledger

import (
	"context"
	"time"
)

// InvoiceReader reads invoices from the billing ledger.
type InvoiceReader interface {
	ListInvoicesByPerson(ctx context.Context, personID int64) ([]Invoice, error)
	ListInvoicesByDateRange(ctx context.Context, from, to time.Time) ([]Invoice, error)
}

// PaymentReader reads payments from the billing ledger.
type PaymentReader interface {
	ListPaymentsByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error)
	ListPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error)
}

// LineItemReader reads invoice line items for expense classification.
type LineItemReader interface {
	ListLineItemsByInvoice(ctx context.Context, invoiceID int64) ([]LineItem, error)
}

// FamilyReader resolves family display identity for export party names.
type FamilyReader interface {
	GetFamily(ctx context.Context, familyID int64) (FamilyRef, error)
}

// CareDaysProvider supplies the precomputed days-of-care figure for a person
// and tax year. The derivation from enrollment schedules lives outside this
// module.
type CareDaysProvider interface {
	DaysOfCare(ctx context.Context, personID int64, taxYear int) (int, error)
}

// Reader bundles the read contracts the aggregator needs.
type Reader interface {
	InvoiceReader
	PaymentReader
	LineItemReader
}
