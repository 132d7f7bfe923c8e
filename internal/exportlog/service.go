package exportlog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aurora-cpe/aurora-cpe/internal/shared"
)

// Store defines persistence for export log entries.
type Store interface {
	GetLog(ctx context.Context, id int64) (*ExportLog, error)
	ListLogs(ctx context.Context, filter ListFilter) ([]ExportLog, error)
	InsertLog(ctx context.Context, log ExportLog) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	UpdateCompleted(ctx context.Context, id int64, c Completion, at time.Time) error
	UpdateFailed(ctx context.Context, id int64, message string, at time.Time) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRecorder persists compliance audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListFilter narrows ListLogs queries.
type ListFilter struct {
	ExportType string
	Status     Status
	Limit      int
	Offset     int
}

// CreateParams describes the export attempt being opened.
type CreateParams struct {
	ExportType   string
	ExportFormat string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	FileName     string
}

// Service owns the export log lifecycle: every generation attempt opens an
// entry in Pending and closes it in exactly one terminal state.
type Service struct {
	store         Store
	audit         AuditRecorder
	logger        *slog.Logger
	retentionDays int
	now           func() time.Time
}

// NewService builds the export log service. retentionDays bounds how long
// entries survive before Cleanup removes them.
func NewService(store Store, audit AuditRecorder, logger *slog.Logger, retentionDays int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Service{
		store:         store,
		audit:         audit,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create opens a Pending entry at export request time.
func (s *Service) Create(ctx context.Context, p CreateParams) (*ExportLog, error) {
	if p.ExportType == "" || p.ExportFormat == "" {
		return nil, fmt.Errorf("%w: export log requires type and format", shared.ErrValidation)
	}
	now := s.now()
	entry := ExportLog{
		ExportType:   p.ExportType,
		ExportFormat: p.ExportFormat,
		PeriodStart:  p.PeriodStart,
		PeriodEnd:    p.PeriodEnd,
		FileName:     p.FileName,
		Status:       StatusPending,
		ActorID:      shared.ActorFromContext(ctx),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.store.InsertLog(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.ID = id
	s.recordAudit(ctx, "export.requested", id, map[string]any{
		"export_type":   p.ExportType,
		"export_format": p.ExportFormat,
	})
	return &entry, nil
}

// Start transitions Pending -> Processing when generation begins.
func (s *Service) Start(ctx context.Context, id int64) error {
	entry, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(entry.Status, StatusProcessing); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, id, StatusProcessing, s.now())
}

// Complete closes the entry with the artifact facts. The Completed
// invariants are enforced before the status flips; a terminal entry rejects
// any further change.
func (s *Service) Complete(ctx context.Context, id int64, c Completion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	entry, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(entry.Status, StatusCompleted); err != nil {
		return err
	}
	if err := s.store.UpdateCompleted(ctx, id, c, s.now()); err != nil {
		return err
	}
	s.recordAudit(ctx, "export.completed", id, map[string]any{
		"file_path":    c.FilePath,
		"file_size":    c.FileSize,
		"checksum":     c.Checksum,
		"record_count": c.RecordCount,
	})
	return nil
}

// Fail closes the entry with a diagnosis. The message is mandatory so no
// failure reaches the trail without enough detail to act on.
func (s *Service) Fail(ctx context.Context, id int64, message string) error {
	if message == "" {
		return fmt.Errorf("%w: failed export requires an error message", shared.ErrValidation)
	}
	entry, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(entry.Status, StatusFailed); err != nil {
		return err
	}
	if err := s.store.UpdateFailed(ctx, id, message, s.now()); err != nil {
		return err
	}
	s.recordAudit(ctx, "export.failed", id, map[string]any{"error": message})
	return nil
}

// Get loads one entry.
func (s *Service) Get(ctx context.Context, id int64) (*ExportLog, error) {
	return s.get(ctx, id)
}

// List returns entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]ExportLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.store.ListLogs(ctx, filter)
}

// Verify recomputes the artifact digest for a completed entry and compares
// it against the logged checksum.
func (s *Service) Verify(ctx context.Context, id int64) error {
	entry, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status != StatusCompleted {
		return fmt.Errorf("%w: only completed exports carry an artifact", shared.ErrValidation)
	}
	return VerifyFile(entry.FilePath, entry.Checksum)
}

// Cleanup deletes entries created strictly before the retention cutoff. An
// entry created exactly at the boundary is retained.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("export log retention cleanup",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func (s *Service) get(ctx context.Context, id int64) (*ExportLog, error) {
	entry, err := s.store.GetLog(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrLogNotFound
	}
	return entry, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   shared.EntityExportLog,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
