package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
	"github.com/aurora-cpe/aurora-cpe/internal/slips"
)

// SlipLoader loads slips for batch rendering.
type SlipLoader interface {
	GetSlipsByIDs(ctx context.Context, ids []string) ([]slips.TaxSlip, error)
}

// Lifecycle advances slips that are rendered for the first time.
type Lifecycle interface {
	MarkGenerated(ctx context.Context, id string) (*slips.TaxSlip, error)
}

// BatchConfig bounds a batch run. Budgets scale with document count and are
// applied before the batch starts, never reactively.
type BatchConfig struct {
	MaxBatchSize        int
	BaseTime            time.Duration
	PerDocTime          time.Duration
	BaseMemory          int64
	LargeBatchThreshold int
	LargeBatchMemory    int64
	Concurrency         int
}

// DefaultBatchConfig mirrors the operational defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:        200,
		BaseTime:            30 * time.Second,
		PerDocTime:          3 * time.Second,
		BaseMemory:          128 << 20,
		LargeBatchThreshold: 50,
		LargeBatchMemory:    512 << 20,
		Concurrency:         4,
	}
}

// Budget is the concrete allowance computed for one batch.
type Budget struct {
	Time   time.Duration
	Memory int64
}

// BudgetFor scales the allowance with the document count.
func (c BatchConfig) BudgetFor(count int) Budget {
	b := Budget{
		Time:   c.BaseTime + time.Duration(count)*c.PerDocTime,
		Memory: c.BaseMemory,
	}
	if c.LargeBatchThreshold > 0 && count > c.LargeBatchThreshold {
		b.Memory = c.LargeBatchMemory
	}
	return b
}

// UnitFailure records one document that failed without aborting the batch.
type UnitFailure struct {
	SlipID string
	Reason string
}

// BatchResult is the outcome of a batch render.
type BatchResult struct {
	ArchiveName string
	Archive     []byte
	Succeeded   int
	Failures    []UnitFailure
	RejectedIDs []string
	TotalBytes  int64
}

var (
	ErrEmptyBatch     = errors.New("render: batch contains no slip identifiers")
	ErrNoValidIDs     = errors.New("render: no well-formed slip identifiers in batch")
	ErrBatchTooLarge  = errors.New("render: batch exceeds the configured ceiling")
	ErrAllUnitsFailed = errors.New("render: every document in the batch failed")
)

// BatchRenderer renders many slips into a single ZIP archive. One failing
// document is recorded and skipped; only a fully failing batch aborts.
type BatchRenderer struct {
	loader    SlipLoader
	lifecycle Lifecycle
	renderer  *Renderer
	provider  provider.Reader
	logger    *slog.Logger
	cfg       BatchConfig
	collator  *collate.Collator
	now       func() time.Time
}

// NewBatchRenderer wires the batch pipeline.
func NewBatchRenderer(loader SlipLoader, lifecycle Lifecycle, renderer *Renderer, prov provider.Reader, logger *slog.Logger, cfg BatchConfig) *BatchRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg = DefaultBatchConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &BatchRenderer{
		loader:    loader,
		lifecycle: lifecycle,
		renderer:  renderer,
		provider:  prov,
		logger:    logger,
		cfg:       cfg,
		collator:  collate.New(language.CanadianFrench, collate.IgnoreCase),
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (b *BatchRenderer) WithNow(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

// Render validates, budgets and renders the batch, returning the assembled
// archive. Malformed identifiers are excluded before any work starts.
func (b *BatchRenderer) Render(ctx context.Context, ids []string) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w", ErrEmptyBatch)
	}
	valid, rejected := shared.FilterValidIDs(ids)
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: %d identifier(s) rejected", ErrNoValidIDs, len(rejected))
	}
	if len(valid) > b.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d documents requested, ceiling is %d", ErrBatchTooLarge, len(valid), b.cfg.MaxBatchSize)
	}

	budget := b.cfg.BudgetFor(len(valid))
	b.logger.Info("batch budget adjusted",
		slog.Int("documents", len(valid)),
		slog.Duration("time_budget", budget.Time),
		slog.Int64("memory_budget_bytes", budget.Memory))
	ctx, cancel := context.WithTimeout(ctx, budget.Time)
	defer cancel()

	prof, err := b.provider.ProviderProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}

	loaded, err := b.loader.GetSlipsByIDs(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("render: load slips: %w", err)
	}
	result := &BatchResult{RejectedIDs: rejected}
	found := make(map[string]bool, len(loaded))
	for _, s := range loaded {
		found[s.ID] = true
	}
	for _, id := range valid {
		if !found[id] {
			result.Failures = append(result.Failures, UnitFailure{SlipID: id, Reason: "slip not found"})
		}
	}

	// Archive ordering follows the listing sort: tax year, then recipient
	// name under fr-CA collation.
	sort.SliceStable(loaded, func(i, j int) bool {
		if loaded[i].TaxYear != loaded[j].TaxYear {
			return loaded[i].TaxYear < loaded[j].TaxYear
		}
		if cmp := b.collator.CompareString(loaded[i].RecipientName, loaded[j].RecipientName); cmp != 0 {
			return cmp < 0
		}
		return loaded[i].ID < loaded[j].ID
	})

	type unit struct {
		slip slips.TaxSlip
		pdf  []byte
		err  error
	}
	units := make([]unit, len(loaded))
	var produced atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i := range loaded {
		i := i
		g.Go(func() error {
			slip := loaded[i]
			if slip.Status == slips.StatusDraft && b.lifecycle != nil {
				generated, err := b.lifecycle.MarkGenerated(gctx, slip.ID)
				if err != nil {
					units[i] = unit{slip: slip, err: err}
					return nil
				}
				slip = *generated
			}
			pdf, err := b.renderer.RenderSlip(gctx, &slip, prof)
			if err != nil {
				units[i] = unit{slip: slip, err: err}
				return nil
			}
			if produced.Add(int64(len(pdf))) > budget.Memory {
				return fmt.Errorf("%w: archive payload exceeds %d bytes", shared.ErrResourceExhausted, budget.Memory)
			}
			units[i] = unit{slip: slip, pdf: pdf}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: time budget %s reached", shared.ErrResourceExhausted, budget.Time)
		}
		return nil, err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: time budget %s reached", shared.ErrResourceExhausted, budget.Time)
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for i, u := range units {
		if u.err != nil {
			b.logger.Warn("slip render failed",
				slog.String("slip_id", u.slip.ID),
				slog.Any("error", u.err))
			result.Failures = append(result.Failures, UnitFailure{SlipID: u.slip.ID, Reason: u.err.Error()})
			continue
		}
		name := fmt.Sprintf("%03d_%s", i+1, SlipFileName(&u.slip, true))
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("render: archive entry: %w", err)
		}
		if _, err := w.Write(u.pdf); err != nil {
			return nil, fmt.Errorf("render: archive write: %w", err)
		}
		result.Succeeded++
		result.TotalBytes += int64(len(u.pdf))
	}
	if result.Succeeded == 0 {
		return nil, fmt.Errorf("%w (%d failure(s))", ErrAllUnitsFailed, len(result.Failures))
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("render: close archive: %w", err)
	}
	result.Archive = buf.Bytes()
	result.ArchiveName = ArchiveFileName(b.now(), result.Succeeded)
	return result, nil
}

// PublishArchive writes the archive under dir atomically: the file appears
// only once fully written, so a download can never observe a partial ZIP.
func PublishArchive(dir, name string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "rl24-batches")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".batch-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	final := filepath.Join(dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	return final, nil
}
