package exportlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurora-cpe/aurora-cpe/internal/shared"
)

// Status is the lifecycle state of one export attempt.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ExportLog is the durable record of one generation or export attempt. It
// outlives the artifact itself so compliance review can reconstruct what was
// produced, when, by whom, and whether it succeeded.
type ExportLog struct {
	ID           int64
	ExportType   string
	ExportFormat string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	RecordCount  int
	TotalAmount  decimal.Decimal
	FileName     string
	FilePath     string
	FileSize     int64
	Checksum     string
	Status       Status
	ErrorMessage string
	ActorID      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	ErrLogNotFound       = errors.New("export log entry not found")
	ErrInvalidTransition = errors.New("export log status transition not allowed")
	ErrArtifactMissing   = errors.New("export artifact missing from storage")
	ErrChecksumMismatch  = errors.New("export artifact checksum mismatch")
)

// transitions is monotonic: a terminal entry never moves again.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition wraps CanTransition with a caller-facing error.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Completion carries the artifact facts a Completed entry must record.
type Completion struct {
	FilePath    string
	FileSize    int64
	Checksum    string
	RecordCount int
	TotalAmount decimal.Decimal
}

// Validate enforces the Completed invariants before the status flips.
func (c Completion) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("%w: completed export requires a file path", shared.ErrValidation)
	}
	if c.FileSize <= 0 {
		return fmt.Errorf("%w: completed export requires a positive file size", shared.ErrValidation)
	}
	if c.Checksum == "" {
		return fmt.Errorf("%w: completed export requires a checksum", shared.ErrValidation)
	}
	return nil
}

// NormaliseStatus maps loose input onto the canonical statuses.
func NormaliseStatus(raw Status) (Status, bool) {
	switch raw {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return raw, true
	default:
		return "", false
	}
}
