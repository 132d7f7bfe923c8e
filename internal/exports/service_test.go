package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	"github.com/aurora-cpe/aurora-cpe/internal/ledger"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
)

type fakeLedger struct {
	invoices []ledger.Invoice
	payments []ledger.Payment
	failList bool
}

func (f *fakeLedger) ListInvoicesByDateRange(ctx context.Context, from, to time.Time) ([]ledger.Invoice, error) {
	if f.failList {
		return nil, errors.New("ledger unavailable")
	}
	var out []ledger.Invoice
	for _, inv := range f.invoices {
		if !inv.IssuedAt.Before(from) && !inv.IssuedAt.After(to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]ledger.Payment, error) {
	var out []ledger.Payment
	for _, pay := range f.payments {
		if !pay.PaidAt.Before(from) && !pay.PaidAt.After(to) {
			out = append(out, pay)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetInvoice(ctx context.Context, id int64) (*ledger.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ID == id {
			copied := inv
			return &copied, nil
		}
	}
	return nil, nil
}

type fakeFamilies struct {
	names map[int64]string
}

func (f *fakeFamilies) GetFamily(ctx context.Context, familyID int64) (ledger.FamilyRef, error) {
	name, ok := f.names[familyID]
	if !ok {
		return ledger.FamilyRef{}, ledger.ErrFamilyNotFound
	}
	return ledger.FamilyRef{ID: familyID, DisplayName: name}, nil
}

// recordingTrail captures the lifecycle calls the service makes.
type recordingTrail struct {
	nextID     int64
	started    []int64
	completed  map[int64]exportlog.Completion
	failed     map[int64]string
	failCreate bool
}

func newRecordingTrail() *recordingTrail {
	return &recordingTrail{
		nextID:    1,
		completed: map[int64]exportlog.Completion{},
		failed:    map[int64]string{},
	}
}

func (r *recordingTrail) Create(ctx context.Context, p exportlog.CreateParams) (*exportlog.ExportLog, error) {
	if r.failCreate {
		return nil, errors.New("trail unavailable")
	}
	id := r.nextID
	r.nextID++
	return &exportlog.ExportLog{ID: id, Status: exportlog.StatusPending, FileName: p.FileName}, nil
}

func (r *recordingTrail) Start(ctx context.Context, id int64) error {
	r.started = append(r.started, id)
	return nil
}

func (r *recordingTrail) Complete(ctx context.Context, id int64, c exportlog.Completion) error {
	r.completed[id] = c
	return nil
}

func (r *recordingTrail) Fail(ctx context.Context, id int64, message string) error {
	r.failed[id] = message
	return nil
}

func schoolYear2025() DateRange {
	return DateRange{
		From: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func newTestExportService(t *testing.T, led *fakeLedger, trail *recordingTrail) *Service {
	t.Helper()
	families := &fakeFamilies{names: map[int64]string{3: "Famille Côté"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(led, families, trail, logger, t.TempDir())
}

func TestGenerateInvoicesExport(t *testing.T) {
	led := &fakeLedger{
		invoices: []ledger.Invoice{
			{ID: 1, FamilyID: 3, IssuedAt: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("1149.75"), Status: ledger.InvoiceStatusIssued},
			{ID: 2, FamilyID: 3, IssuedAt: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("850.25"), Status: ledger.InvoiceStatusIssued},
			{ID: 3, FamilyID: 3, IssuedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("99.99"), Status: ledger.InvoiceStatusCancelled},
		},
	}
	trail := newRecordingTrail()
	svc := newTestExportService(t, led, trail)

	result, entry, err := svc.Generate(context.Background(), Request{
		Format:     FormatSage50,
		ExportType: TypeInvoices,
		Range:      schoolYear2025(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.RecordCount, "cancelled invoices stay out of the export")
	require.Equal(t, "2000.00", result.TotalAmount.StringFixed(2))
	require.Equal(t, "sage50_invoices_2025-2026_20250901-20260630.csv", result.FileName)

	completion, ok := trail.completed[entry.ID]
	require.True(t, ok)
	require.Equal(t, exportlog.Checksum(result.Data), completion.Checksum)
	require.Equal(t, int64(len(result.Data)), completion.FileSize)
	require.Equal(t, 2, completion.RecordCount)

	stored, err := os.ReadFile(completion.FilePath)
	require.NoError(t, err)
	require.Equal(t, result.Data, stored, "published artifact matches the returned bytes")

	rows, err := csv.NewReader(bytes.NewReader(stored)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "FAM-000003", rows[1][1])
}

func TestGenerateCombinedOrdersByDate(t *testing.T) {
	led := &fakeLedger{
		invoices: []ledger.Invoice{
			{ID: 1, FamilyID: 3, IssuedAt: time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("500.00"), Status: ledger.InvoiceStatusIssued},
		},
		payments: []ledger.Payment{
			{ID: 7, InvoiceID: 1, PaidAt: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("250.00"), Method: "cash"},
		},
	}
	trail := newRecordingTrail()
	svc := newTestExportService(t, led, trail)

	result, _, err := svc.Generate(context.Background(), Request{
		Format:     FormatSage50,
		ExportType: TypeCombined,
		Range:      schoolYear2025(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.RecordCount)

	rows, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, "PMT-000007", rows[1][3], "earlier payment sorts before the later invoice")
	require.Equal(t, "INV-000001", rows[2][3])
}

func TestGenerateFailureMarksLogFailed(t *testing.T) {
	led := &fakeLedger{failList: true}
	trail := newRecordingTrail()
	svc := newTestExportService(t, led, trail)

	_, entry, err := svc.Generate(context.Background(), Request{
		Format:     FormatSage50,
		ExportType: TypeInvoices,
		Range:      schoolYear2025(),
	})
	require.Error(t, err)
	require.NotNil(t, entry)
	require.Contains(t, trail.failed[entry.ID], "ledger unavailable")
	require.Empty(t, trail.completed)
}

func TestGenerateRejectsBadRequestBeforeTrail(t *testing.T) {
	trail := newRecordingTrail()
	svc := newTestExportService(t, &fakeLedger{}, trail)

	_, _, err := svc.Generate(context.Background(), Request{Format: FormatSage50, ExportType: TypeInvoices})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.Generate(context.Background(), Request{Format: "DBASE", ExportType: TypeInvoices, Range: schoolYear2025()})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.Generate(context.Background(), Request{Format: FormatSage50, ExportType: "EVERYTHING", Range: schoolYear2025()})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Equal(t, int64(1), trail.nextID, "no log entry opened for rejected input")
}

func TestGenerateQuickBooksPaymentExport(t *testing.T) {
	led := &fakeLedger{
		invoices: []ledger.Invoice{
			{ID: 1, FamilyID: 3, IssuedAt: time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("500.00"), Status: ledger.InvoiceStatusIssued},
		},
		payments: []ledger.Payment{
			{ID: 4, InvoiceID: 1, PaidAt: time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("500.00"), Method: "etransfer"},
		},
	}
	trail := newRecordingTrail()
	svc := newTestExportService(t, led, trail)

	result, _, err := svc.Generate(context.Background(), Request{
		Format:     FormatQuickBooks,
		ExportType: TypePayments,
		Range:      schoolYear2025(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordCount)
	require.Contains(t, string(result.Data), "Famille Côté")
	require.Contains(t, string(result.Data), "10/5/25")
	require.Contains(t, string(result.Data), "-500.00")
	require.True(t, bytes.HasSuffix(result.Data, []byte("ENDTRNS\r\n")))
}
