package exports

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	"github.com/aurora-cpe/aurora-cpe/internal/ledger"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
)

// Ledger reads the billing records an export covers.
type Ledger interface {
	ListInvoicesByDateRange(ctx context.Context, from, to time.Time) ([]ledger.Invoice, error)
	ListPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]ledger.Payment, error)
	GetInvoice(ctx context.Context, id int64) (*ledger.Invoice, error)
}

// FamilyDirectory resolves family display identity for party names.
type FamilyDirectory interface {
	GetFamily(ctx context.Context, familyID int64) (ledger.FamilyRef, error)
}

// Trail is the export audit log this service reports to.
type Trail interface {
	Create(ctx context.Context, p exportlog.CreateParams) (*exportlog.ExportLog, error)
	Start(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64, c exportlog.Completion) error
	Fail(ctx context.Context, id int64, message string) error
}

// Request describes one export generation.
type Request struct {
	Format     Format
	ExportType ExportType
	Range      DateRange
	Sage50     Sage50Options
	QuickBooks QuickBooksOptions
}

// Service turns ledger records into accounting export files. Every attempt
// is tracked in the export log; the artifact is published atomically so a
// download can never observe a half written file.
type Service struct {
	ledger     Ledger
	families   FamilyDirectory
	trail      Trail
	logger     *slog.Logger
	storageDir string
	now        func() time.Time
}

func NewService(led Ledger, families FamilyDirectory, trail Trail, logger *slog.Logger, storageDir string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if storageDir == "" {
		storageDir = filepath.Join(os.TempDir(), "aurora-exports")
	}
	return &Service{
		ledger:     led,
		families:   families,
		trail:      trail,
		logger:     logger,
		storageDir: storageDir,
		now:        time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Generate runs one export end to end: validate, open the log entry, flatten
// the ledger, encode, persist, close the log entry in a terminal state.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, *exportlog.ExportLog, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, nil, err
	}
	if _, ok := NormaliseType(string(req.ExportType)); !ok {
		return nil, nil, fmt.Errorf("%w: unknown export type %q", shared.ErrValidation, req.ExportType)
	}
	if _, ok := NormaliseFormat(string(req.Format)); !ok {
		return nil, nil, fmt.Errorf("%w: unknown export format %q", shared.ErrValidation, req.Format)
	}

	fileName := BuildFileName(req.Format, req.ExportType, req.Range)
	entry, err := s.trail.Create(ctx, exportlog.CreateParams{
		ExportType:   string(req.ExportType),
		ExportFormat: string(req.Format),
		PeriodStart:  req.Range.From,
		PeriodEnd:    req.Range.To,
		FileName:     fileName,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.trail.Start(ctx, entry.ID); err != nil {
		return nil, entry, err
	}

	result, err := s.generate(ctx, req, fileName)
	if err != nil {
		if failErr := s.trail.Fail(ctx, entry.ID, err.Error()); failErr != nil {
			s.logger.Error("export log fail update lost", slog.Any("error", failErr))
		}
		return nil, entry, err
	}

	path, err := s.publish(fileName, result.Data)
	if err != nil {
		if failErr := s.trail.Fail(ctx, entry.ID, "store artifact: "+err.Error()); failErr != nil {
			s.logger.Error("export log fail update lost", slog.Any("error", failErr))
		}
		return nil, entry, err
	}

	completion := exportlog.Completion{
		FilePath:    path,
		FileSize:    int64(len(result.Data)),
		Checksum:    exportlog.Checksum(result.Data),
		RecordCount: result.RecordCount,
		TotalAmount: result.TotalAmount,
	}
	if err := s.trail.Complete(ctx, entry.ID, completion); err != nil {
		return nil, entry, err
	}
	s.logger.Info("export generated",
		slog.String("format", string(req.Format)),
		slog.String("type", string(req.ExportType)),
		slog.String("file", fileName),
		slog.Int("records", result.RecordCount))
	return result, entry, nil
}

func (s *Service) generate(ctx context.Context, req Request, fileName string) (*Result, error) {
	txns, err := s.collect(ctx, req)
	if err != nil {
		return nil, err
	}

	var encoder Encoder
	if req.Format == FormatQuickBooks {
		encoder = NewQuickBooksEncoder(req.QuickBooks)
	} else {
		encoder = NewSage50Encoder(req.Sage50)
	}
	data, err := encoder.Encode(txns)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, txn := range txns {
		total = total.Add(txn.Amount)
	}
	return &Result{
		FileName:    fileName,
		Data:        data,
		RecordCount: len(txns),
		TotalAmount: total.Round(2),
	}, nil
}

// collect flattens the requested ledger records into transactions, newest
// last, with a deterministic order for byte-identical reruns.
func (s *Service) collect(ctx context.Context, req Request) ([]Transaction, error) {
	var txns []Transaction
	names := map[int64]string{}

	familyName := func(familyID int64) string {
		if name, ok := names[familyID]; ok {
			return name
		}
		fam, err := s.families.GetFamily(ctx, familyID)
		if err != nil {
			// A missing family record only degrades the party label; the
			// format fallbacks cover identity.
			s.logger.Warn("export family lookup failed", slog.Int64("family_id", familyID), slog.Any("error", err))
			names[familyID] = ""
			return ""
		}
		names[familyID] = fam.DisplayName
		return fam.DisplayName
	}

	if req.ExportType == TypeInvoices || req.ExportType == TypeCombined {
		invoices, err := s.ledger.ListInvoicesByDateRange(ctx, req.Range.From, req.Range.To)
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
		for _, inv := range invoices {
			if inv.Status == ledger.InvoiceStatusCancelled {
				continue
			}
			txns = append(txns, Transaction{
				Kind:       KindInvoice,
				Date:       inv.IssuedAt,
				Reference:  fmt.Sprintf("INV-%06d", inv.ID),
				FamilyID:   inv.FamilyID,
				FamilyName: familyName(inv.FamilyID),
				Memo:       "Childcare invoice",
				Amount:     inv.Total,
			})
		}
	}

	if req.ExportType == TypePayments || req.ExportType == TypeCombined {
		payments, err := s.ledger.ListPaymentsByDateRange(ctx, req.Range.From, req.Range.To)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		for _, pay := range payments {
			inv, err := s.ledger.GetInvoice(ctx, pay.InvoiceID)
			if err != nil {
				return nil, fmt.Errorf("resolve invoice %d: %w", pay.InvoiceID, err)
			}
			var familyID int64
			if inv != nil {
				familyID = inv.FamilyID
			}
			txns = append(txns, Transaction{
				Kind:       KindPayment,
				Date:       pay.PaidAt,
				Reference:  fmt.Sprintf("PMT-%06d", pay.ID),
				FamilyID:   familyID,
				FamilyName: familyName(familyID),
				Memo:       "Childcare payment",
				Method:     pay.Method,
				Amount:     pay.Amount,
			})
		}
	}

	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return txns[i].Reference < txns[j].Reference
	})
	return txns, nil
}

// publish writes the artifact to a temp file and renames it into place so
// readers only ever see a complete file.
func (s *Service) publish(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.storageDir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close export: %w", err)
	}
	final := filepath.Join(s.storageDir, name)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish export: %w", err)
	}
	return final, nil
}
