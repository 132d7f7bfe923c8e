package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	invoices map[int64][]Invoice
	payments map[int64][]Payment
	lines    map[int64][]LineItem
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		invoices: make(map[int64][]Invoice),
		payments: make(map[int64][]Payment),
		lines:    make(map[int64][]LineItem),
	}
}

func (m *memoryLedger) ListInvoicesByPerson(ctx context.Context, personID int64) ([]Invoice, error) {
	return m.invoices[personID], nil
}

func (m *memoryLedger) ListInvoicesByDateRange(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	var out []Invoice
	for _, invs := range m.invoices {
		for _, inv := range invs {
			if InWindow(inv.IssuedAt, from, to) {
				out = append(out, inv)
			}
		}
	}
	return out, nil
}

func (m *memoryLedger) ListPaymentsByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return m.payments[invoiceID], nil
}

func (m *memoryLedger) ListPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error) {
	var out []Payment
	for _, pays := range m.payments {
		for _, pay := range pays {
			if InWindow(pay.PaidAt, from, to) {
				out = append(out, pay)
			}
		}
	}
	return out, nil
}

func (m *memoryLedger) ListLineItemsByInvoice(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	return m.lines[invoiceID], nil
}

type fixedCareDays map[int64]int

func (f fixedCareDays) DaysOfCare(ctx context.Context, personID int64, taxYear int) (int, error) {
	return f[personID], nil
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregatePaidAmountsOnly(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	repo.invoices[7] = []Invoice{{
		ID:        1,
		PersonID:  7,
		FamilyID:  3,
		IssuedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:  money("1000.00"),
		TaxAmount: money("149.75"),
		Total:     money("1149.75"),
		Status:    InvoiceStatusPartial,
	}}
	repo.payments[1] = []Payment{
		{ID: 1, InvoiceID: 1, PaidAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Amount: money("500.00")},
		{ID: 2, InvoiceID: 1, PaidAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), Amount: money("500.00")},
	}

	agg := NewAggregator(repo, nil, fixedCareDays{7: 180}, time.UTC)
	summary, err := agg.Aggregate(ctx, 7, 2025)
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.FamilyID)
	require.Equal(t, 180, summary.DaysOfCare)
	require.True(t, summary.TotalPaid.Equal(money("1000.00")), "Box C is paid amounts, not invoiced total; got %s", summary.TotalPaid)
	require.True(t, summary.Qualifying.Equal(money("1000.00")))
}

func TestAggregateWindowBoundaries(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	repo.invoices[7] = []Invoice{{ID: 1, PersonID: 7, FamilyID: 3, Status: InvoiceStatusIssued}}
	repo.payments[1] = []Payment{
		{ID: 1, InvoiceID: 1, PaidAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Amount: money("10.00")},
		{ID: 2, InvoiceID: 1, PaidAt: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), Amount: money("20.00")},
		{ID: 3, InvoiceID: 1, PaidAt: time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), Amount: money("40.00")},
		{ID: 4, InvoiceID: 1, PaidAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Amount: money("80.00")},
	}

	agg := NewAggregator(repo, nil, nil, time.UTC)
	summary, err := agg.Aggregate(ctx, 7, 2025)
	require.NoError(t, err)
	require.True(t, summary.TotalPaid.Equal(money("30.00")), "boundary days are inclusive, outside days excluded; got %s", summary.TotalPaid)
}

func TestAggregateNonQualifyingLines(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	repo.invoices[7] = []Invoice{{ID: 1, PersonID: 7, FamilyID: 3, Status: InvoiceStatusPaid}}
	repo.payments[1] = []Payment{{ID: 1, InvoiceID: 1, PaidAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Amount: money("300.00")}}
	repo.lines[1] = []LineItem{
		{ID: 1, InvoiceID: 1, Category: "daycare", Amount: money("250.00")},
		{ID: 2, InvoiceID: 1, Category: "Field Trips", Amount: money("30.00")},
		{ID: 3, InvoiceID: 1, Category: "REGISTRATION FEES", Amount: money("20.00")},
	}

	agg := NewAggregator(repo, nil, nil, time.UTC)
	summary, err := agg.Aggregate(ctx, 7, 2025)
	require.NoError(t, err)
	require.True(t, summary.TotalPaid.Equal(money("300.00")))
	require.True(t, summary.NonQualifying.Equal(money("50.00")))
	require.True(t, summary.Qualifying.Equal(money("250.00")))
}

func TestAggregateSkipsCancelledInvoices(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	repo.invoices[7] = []Invoice{{ID: 1, PersonID: 7, Status: InvoiceStatusCancelled}}
	repo.payments[1] = []Payment{{ID: 1, InvoiceID: 1, PaidAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Amount: money("100.00")}}

	agg := NewAggregator(repo, nil, nil, time.UTC)
	summary, err := agg.Aggregate(ctx, 7, 2025)
	require.NoError(t, err)
	require.True(t, summary.TotalPaid.IsZero())
}

func TestAggregateRejectsBadInput(t *testing.T) {
	agg := NewAggregator(newMemoryLedger(), nil, nil, time.UTC)
	_, err := agg.Aggregate(context.Background(), 0, 2025)
	require.Error(t, err)
	_, err = agg.Aggregate(context.Background(), 7, 0)
	require.ErrorIs(t, err, ErrInvalidTaxYear)
}

func TestQualifyingExpensesClamped(t *testing.T) {
	cases := []struct {
		boxC, boxD, want string
	}{
		{"100.00", "30.00", "70.00"},
		{"30.00", "100.00", "0.00"},
		{"0.00", "0.00", "0.00"},
		{"10.005", "0.00", "10.01"},
	}
	for _, tc := range cases {
		got := QualifyingExpenses(money(tc.boxC), money(tc.boxD))
		require.True(t, got.Equal(money(tc.want)), "C=%s D=%s got %s", tc.boxC, tc.boxD, got)
	}
}
