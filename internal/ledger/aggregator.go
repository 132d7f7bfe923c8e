package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds the four legally defined amounts for one person and tax year.
type Summary struct {
	PersonID      int64
	FamilyID      int64
	TaxYear       int
	DaysOfCare    int
	TotalPaid     decimal.Decimal // Box C
	NonQualifying decimal.Decimal // Box D
	Qualifying    decimal.Decimal // Box E
}

// ErrInvalidTaxYear indicates a tax year outside the representable range.
var ErrInvalidTaxYear = errors.New("ledger: invalid tax year")

// TaxYearWindow returns the inclusive [Jan 1, Dec 31] bounds of a tax year in
// the supplied location.
func TaxYearWindow(taxYear int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	from := time.Date(taxYear, time.January, 1, 0, 0, 0, 0, loc)
	to := time.Date(taxYear, time.December, 31, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return from, to
}

// InWindow reports whether ts falls inside the inclusive tax-year window.
func InWindow(ts time.Time, from, to time.Time) bool {
	return !ts.Before(from) && !ts.After(to)
}

// QualifyingExpenses computes Box E: max(0, boxC - boxD) rounded to cents.
func QualifyingExpenses(boxC, boxD decimal.Decimal) decimal.Decimal {
	e := boxC.Sub(boxD)
	if e.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return e.Round(2)
}

// Aggregator reduces ledger records to the slip amounts.
type Aggregator struct {
	reader     Reader
	classifier Classifier
	careDays   CareDaysProvider
	location   *time.Location
}

// NewAggregator wires the ledger reader, the expense classifier and the
// days-of-care provider. A nil classifier falls back to the fixed category set.
func NewAggregator(reader Reader, classifier Classifier, careDays CareDaysProvider, loc *time.Location) *Aggregator {
	if classifier == nil {
		classifier = NewCategoryClassifier()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{reader: reader, classifier: classifier, careDays: careDays, location: loc}
}

// Aggregate computes the Summary for a person and tax year. Only payments
// dated inside the inclusive tax-year window contribute to Box C; invoiced
// totals never do.
func (a *Aggregator) Aggregate(ctx context.Context, personID int64, taxYear int) (Summary, error) {
	if a == nil || a.reader == nil {
		return Summary{}, errors.New("ledger: aggregator not configured")
	}
	if taxYear < 1990 || taxYear > 9999 {
		return Summary{}, fmt.Errorf("%w: %d", ErrInvalidTaxYear, taxYear)
	}
	if personID <= 0 {
		return Summary{}, errors.New("ledger: person id required")
	}

	from, to := TaxYearWindow(taxYear, a.location)
	invoices, err := a.reader.ListInvoicesByPerson(ctx, personID)
	if err != nil {
		return Summary{}, fmt.Errorf("ledger: list invoices: %w", err)
	}

	summary := Summary{PersonID: personID, TaxYear: taxYear}
	totalPaid := decimal.Zero
	nonQualifying := decimal.Zero
	for _, inv := range invoices {
		if inv.Status == InvoiceStatusCancelled {
			continue
		}
		if summary.FamilyID == 0 {
			summary.FamilyID = inv.FamilyID
		}
		payments, err := a.reader.ListPaymentsByInvoice(ctx, inv.ID)
		if err != nil {
			return Summary{}, fmt.Errorf("ledger: list payments for invoice %d: %w", inv.ID, err)
		}
		paidInWindow := decimal.Zero
		for _, pay := range payments {
			if InWindow(pay.PaidAt.In(a.location), from, to) {
				paidInWindow = paidInWindow.Add(pay.Amount)
			}
		}
		if paidInWindow.IsZero() {
			continue
		}
		totalPaid = totalPaid.Add(paidInWindow)

		lines, err := a.reader.ListLineItemsByInvoice(ctx, inv.ID)
		if err != nil {
			return Summary{}, fmt.Errorf("ledger: list line items for invoice %d: %w", inv.ID, err)
		}
		for _, line := range lines {
			if a.classifier.IsNonQualifying(line.Category) {
				nonQualifying = nonQualifying.Add(line.Amount)
			}
		}
	}

	summary.TotalPaid = totalPaid.Round(2)
	summary.NonQualifying = nonQualifying.Round(2)
	summary.Qualifying = QualifyingExpenses(summary.TotalPaid, summary.NonQualifying)

	if a.careDays != nil {
		days, err := a.careDays.DaysOfCare(ctx, personID, taxYear)
		if err != nil {
			return Summary{}, fmt.Errorf("ledger: days of care: %w", err)
		}
		if days < 0 {
			days = 0
		}
		summary.DaysOfCare = days
	}
	return summary, nil
}
