package exports

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurora-cpe/aurora-cpe/internal/shared"
)

// ExportType selects which ledger records an export covers.
type ExportType string

const (
	TypeInvoices ExportType = "INVOICES"
	TypePayments ExportType = "PAYMENTS"
	TypeCombined ExportType = "COMBINED"
)

// NormaliseType maps loose caller input onto the canonical export types.
func NormaliseType(raw string) (ExportType, bool) {
	switch ExportType(strings.ToUpper(strings.TrimSpace(raw))) {
	case TypeInvoices:
		return TypeInvoices, true
	case TypePayments:
		return TypePayments, true
	case TypeCombined:
		return TypeCombined, true
	default:
		return "", false
	}
}

// Format identifies the target accounting package.
type Format string

const (
	FormatSage50     Format = "SAGE50_CSV"
	FormatQuickBooks Format = "QUICKBOOKS_IIF"
)

// Extension returns the file extension fixed by the format.
func (f Format) Extension() string {
	if f == FormatQuickBooks {
		return ".iif"
	}
	return ".csv"
}

// NormaliseFormat maps loose caller input onto the canonical formats.
func NormaliseFormat(raw string) (Format, bool) {
	switch Format(strings.ToUpper(strings.TrimSpace(raw))) {
	case FormatSage50:
		return FormatSage50, true
	case FormatQuickBooks:
		return FormatQuickBooks, true
	default:
		return "", false
	}
}

// DateRange is the inclusive period an export covers.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Validate rejects empty or inverted ranges before any ledger work happens.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: export date range requires both bounds", shared.ErrValidation)
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: export date range ends before it starts", shared.ErrValidation)
	}
	return nil
}

// TransactionKind distinguishes the two ledger record sources.
type TransactionKind string

const (
	KindInvoice TransactionKind = "INVOICE"
	KindPayment TransactionKind = "PAYMENT"
)

// Transaction is the format-neutral record both encoders consume. The
// service flattens ledger invoices and payments into this shape so the
// encoders only deal with field mapping and escaping.
type Transaction struct {
	Kind       TransactionKind
	Date       time.Time
	Reference  string
	FamilyID   int64
	FamilyName string
	Memo       string
	Method     string
	Amount     decimal.Decimal
}

// Result carries the encoded artifact plus the metadata the audit trail
// records alongside it.
type Result struct {
	FileName    string
	Data        []byte
	RecordCount int
	TotalAmount decimal.Decimal
}

// Encoder turns a flattened transaction list into a target-specific byte
// stream.
type Encoder interface {
	Encode(txns []Transaction) ([]byte, error)
}

// SchoolYearLabel names the childcare school year covering t. The year
// rolls over in September.
func SchoolYearLabel(t time.Time) string {
	start := t.Year()
	if t.Month() < time.September {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// BuildFileName encodes target, export type, school year and the covered
// range into the download name. The extension is fixed by the format.
func BuildFileName(format Format, exportType ExportType, r DateRange) string {
	target := "sage50"
	if format == FormatQuickBooks {
		target = "quickbooks"
	}
	return fmt.Sprintf("%s_%s_%s_%s-%s%s",
		target,
		strings.ToLower(string(exportType)),
		SchoolYearLabel(r.From),
		r.From.Format("20060102"),
		r.To.Format("20060102"),
		format.Extension(),
	)
}

func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
