// Package slips implements RL-24 tax slip computation and lifecycle.
package slips

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SlipType enumerates the relevé type reported in Box A.
type SlipType string

const (
	TypeOriginal  SlipType = "ORIGINAL"
	TypeAmended   SlipType = "AMENDED"
	TypeCancelled SlipType = "CANCELLED"
)

// BoxALabel returns the Revenu Québec slip-type label printed in Box A.
func (t SlipType) BoxALabel() string {
	switch t {
	case TypeAmended:
		return "Relevé modifié"
	case TypeCancelled:
		return "Relevé annulé"
	default:
		return "Relevé original"
	}
}

// Status enumerates the slip lifecycle states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusGenerated Status = "GENERATED"
	StatusSent      Status = "SENT"
	StatusFiled     Status = "FILED"
	StatusAmended   Status = "AMENDED"
)

// TaxSlip is a computed RL-24 record. Amendments spawn a new record; the
// superseded one keeps its history with status AMENDED.
type TaxSlip struct {
	ID            string
	SlipNumber    string
	PersonID      int64
	FamilyID      int64
	TaxYear       int
	SlipType      SlipType
	Status        Status
	DaysOfCare    int
	TotalPaid     decimal.Decimal // Box C
	NonQualifying decimal.Decimal // Box D
	Qualifying    decimal.Decimal // Box E
	ProviderSIN   string
	RecipientSIN  string
	RecipientName string
	ChildName     string
	AmendsSlipID  *string
	GeneratedAt   *time.Time
	SentAt        *time.Time
	FiledAt       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Person carries the recipient identity read from the enrollment records.
type Person struct {
	ID             int64
	FamilyID       int64
	RecipientName  string
	RecipientSIN   string
	RecipientEmail string
	ChildName      string
}

var (
	ErrSlipNotFound      = errors.New("slips: slip not found")
	ErrInvalidTransition = errors.New("slips: invalid status transition")
	ErrCannotAmend       = errors.New("slips: slip cannot be amended")
	ErrCannotCancel      = errors.New("slips: slip cannot be cancelled")
	ErrDuplicateOriginal = errors.New("slips: original slip already exists for person and year")
)

// transitions encodes the slip state machine. AMENDED is terminal; the
// correction lives in a new record.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusGenerated},
	StatusGenerated: {StatusSent, StatusAmended},
	StatusSent:      {StatusFiled, StatusAmended},
	StatusFiled:     {StatusAmended},
	StatusAmended:   {},
}

// CanTransition reports whether a status change is permitted.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when the change is not
// permitted.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanAmend reports whether the slip may be superseded by an amendment.
// Only delivered or filed slips qualify.
func CanAmend(slip *TaxSlip) bool {
	if slip == nil {
		return false
	}
	return slip.Status == StatusSent || slip.Status == StatusFiled
}

// CanCancel reports whether the slip may be cancelled. A slip already of
// cancelled type cannot be cancelled again.
func CanCancel(slip *TaxSlip) bool {
	if slip == nil {
		return false
	}
	return slip.Status == StatusGenerated && slip.SlipType != TypeCancelled
}

// FormatSlipNumber renders the RL24-{year}-{sequence:6} number.
func FormatSlipNumber(taxYear int, seq int64) string {
	return fmt.Sprintf("RL24-%d-%06d", taxYear, seq)
}

// NormaliseStatus uppercases and validates a stored status string.
func NormaliseStatus(v string) (Status, error) {
	s := Status(strings.TrimSpace(strings.ToUpper(v)))
	switch s {
	case StatusDraft, StatusGenerated, StatusSent, StatusFiled, StatusAmended:
		return s, nil
	}
	return "", fmt.Errorf("slips: unknown status %q", v)
}

// NormaliseType uppercases and validates a stored slip type string.
func NormaliseType(v string) (SlipType, error) {
	t := SlipType(strings.TrimSpace(strings.ToUpper(v)))
	switch t {
	case TypeOriginal, TypeAmended, TypeCancelled:
		return t, nil
	}
	return "", fmt.Errorf("slips: unknown slip type %q", v)
}
