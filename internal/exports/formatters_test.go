package exports

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleTxn() Transaction {
	return Transaction{
		Kind:       KindPayment,
		Date:       time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		Reference:  "PMT-000042",
		FamilyID:   123,
		FamilyName: "Famille Côté",
		Memo:       "Childcare payment",
		Method:     "cheque",
		Amount:     decimal.RequireFromString("450.00"),
	}
}

func TestSage50CSVRoundTripsHostileField(t *testing.T) {
	hostile := `Côté, "Les Petits"` + "\nsecond line"
	txn := sampleTxn()
	txn.FamilyName = hostile

	data, err := NewSage50Encoder(Sage50Options{}).Encode([]Transaction{txn})
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, hostile, rows[1][2], "delimiter, quote and newline survive the round trip")
}

func TestSage50DateLayouts(t *testing.T) {
	txn := sampleTxn()
	cases := []struct {
		layout string
		want   string
	}{
		{"", "03/07/2025"},
		{Sage50DateMDY, "03/07/2025"},
		{Sage50DateDMY, "07/03/2025"},
		{Sage50DateISO, "2025-03-07"},
	}
	for _, tc := range cases {
		require.True(t, ValidSage50DateLayout(tc.layout))
		data, err := NewSage50Encoder(Sage50Options{DateLayout: tc.layout}).Encode([]Transaction{txn})
		require.NoError(t, err)
		r := csv.NewReader(bytes.NewReader(data))
		rows, err := r.ReadAll()
		require.NoError(t, err)
		require.Equal(t, tc.want, rows[1][0])
	}

	for _, layout := range []string{"2006/01/02", "Jan 2 2006", "garbage"} {
		require.False(t, ValidSage50DateLayout(layout), layout)
	}
}

func TestSage50CustomerCodeAndMethods(t *testing.T) {
	require.Equal(t, "FAM-000123", Sage50CustomerCode(123))
	require.Equal(t, "FAM-1000000", Sage50CustomerCode(1000000))

	require.Equal(t, "Cheque", sage50Method("check"))
	require.Equal(t, "Cheque", sage50Method("Cheque"))
	require.Equal(t, "Other", sage50Method("barter"))
	require.Equal(t, "", sage50Method(""))
}

func TestSage50BOMAndCRLF(t *testing.T) {
	txn := sampleTxn()

	plain, err := NewSage50Encoder(Sage50Options{}).Encode([]Transaction{txn})
	require.NoError(t, err)
	require.False(t, bytes.HasPrefix(plain, utf8BOM))
	require.True(t, bytes.HasSuffix(plain, []byte("\r\n")))

	withBOM, err := NewSage50Encoder(Sage50Options{IncludeBOM: true}).Encode([]Transaction{txn})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(withBOM, utf8BOM))
}

func TestSage50ZeroAmountFormats(t *testing.T) {
	txn := sampleTxn()
	txn.Amount = decimal.Decimal{}

	data, err := NewSage50Encoder(Sage50Options{}).Encode([]Transaction{txn})
	require.NoError(t, err)
	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "0.00", rows[1][6])
}

func TestIIFSanitizationNeverEmitsEmbeddedTab(t *testing.T) {
	hostile := "line one\r\nline two\ttabbed\rold mac"
	got := sanitizeIIF(hostile)
	require.NotContains(t, got, "\t")
	require.NotContains(t, got, "\n")
	require.NotContains(t, got, "\r")
	require.Equal(t, "line one line two tabbed old mac", got)
}

func TestQuickBooksIIFStructure(t *testing.T) {
	txn := sampleTxn()
	data, err := NewQuickBooksEncoder(QuickBooksOptions{}).Encode([]Transaction{txn})
	require.NoError(t, err)

	require.True(t, bytes.HasSuffix(data, []byte("ENDTRNS\r\n")))
	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 6)
	require.True(t, strings.HasPrefix(lines[0], "!TRNS\t"))
	require.True(t, strings.HasPrefix(lines[1], "!SPL\t"))
	require.Equal(t, "!ENDTRNS", lines[2])

	trns := strings.Split(lines[3], "\t")
	spl := strings.Split(lines[4], "\t")
	require.Equal(t, "TRNS", trns[0])
	require.Equal(t, "SPL", spl[0])
	require.Equal(t, "PAYMENT", trns[1])
	require.Equal(t, "3/7/25", trns[2], "no leading zeros")
	require.Equal(t, "Undeposited Funds", trns[3])
	require.Equal(t, "Accounts Receivable", spl[3])
	require.Equal(t, "450.00", trns[5])
	require.Equal(t, "-450.00", spl[5], "split is the negation of the transaction line")
	require.Equal(t, "Check", trns[8])
	require.Equal(t, "ENDTRNS", lines[5])
}

func TestQuickBooksInvoiceAccounts(t *testing.T) {
	txn := sampleTxn()
	txn.Kind = KindInvoice
	txn.Method = ""

	data, err := NewQuickBooksEncoder(QuickBooksOptions{}).Encode([]Transaction{txn})
	require.NoError(t, err)
	lines := strings.Split(string(data), "\r\n")
	trns := strings.Split(lines[3], "\t")
	spl := strings.Split(lines[4], "\t")
	require.Equal(t, "INVOICE", trns[1])
	require.Equal(t, "Accounts Receivable", trns[3])
	require.Equal(t, "Childcare Income", spl[3])
}

func TestQuickBooksNameFallback(t *testing.T) {
	txn := sampleTxn()
	txn.FamilyName = ""
	require.Equal(t, "Family-000123", quickBooksName(txn))

	txn.FamilyName = "Famille\tBélanger"
	require.Equal(t, "Famille Bélanger", quickBooksName(txn))
}

func TestQuickBooksMethods(t *testing.T) {
	require.Equal(t, "Check", quickBooksMethod("cheque"))
	require.Equal(t, "E-Transfer", quickBooksMethod("etransfer"))
	require.Equal(t, "Other", quickBooksMethod("cowrie shells"))
	require.Equal(t, "", quickBooksMethod(""))
}

func TestBuildFileName(t *testing.T) {
	r := DateRange{
		From: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	require.Equal(t, "sage50_invoices_2025-2026_20250901-20260630.csv", BuildFileName(FormatSage50, TypeInvoices, r))
	require.Equal(t, "quickbooks_combined_2025-2026_20250901-20260630.iif", BuildFileName(FormatQuickBooks, TypeCombined, r))
}

func TestSchoolYearLabel(t *testing.T) {
	require.Equal(t, "2025-2026", SchoolYearLabel(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2024-2025", SchoolYearLabel(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
}

func TestDateRangeValidate(t *testing.T) {
	ok := DateRange{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, ok.Validate())

	require.Error(t, DateRange{}.Validate())
	inverted := DateRange{From: ok.To, To: ok.From}
	require.Error(t, inverted.Validate())
}
