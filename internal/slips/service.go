package slips

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurora-cpe/aurora-cpe/internal/ledger"
	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
	"github.com/aurora-cpe/aurora-cpe/internal/sin"
)

// Store defines persistence for tax slips.
type Store interface {
	GetSlip(ctx context.Context, id string) (*TaxSlip, error)
	GetSlipsByIDs(ctx context.Context, ids []string) ([]TaxSlip, error)
	FindOriginal(ctx context.Context, personID int64, taxYear int) (*TaxSlip, error)
	ListSlips(ctx context.Context, filter ListFilter) ([]TaxSlip, error)
	InsertSlip(ctx context.Context, slip TaxSlip) error
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	UpdateType(ctx context.Context, id string, slipType SlipType) error
	MarkAmended(ctx context.Context, replacementID, originalID string, at time.Time) error
	AssignSlipNumber(ctx context.Context, id, number string, at time.Time) error
	NextSequence(ctx context.Context, taxYear int) (int64, error)
}

// PersonReader resolves recipient identity.
type PersonReader interface {
	GetPerson(ctx context.Context, personID int64) (Person, error)
}

// AuditRecorder persists compliance audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifyFunc queues a delivery notification for the recipient. Delivery
// itself happens out of process.
type NotifyFunc func(ctx context.Context, to, subject, body string) error

// ListFilter narrows ListSlips queries.
type ListFilter struct {
	TaxYear  int
	PersonID int64
	FamilyID int64
	Status   Status
	SlipType SlipType
	Limit    int
	Offset   int
}

// Service orchestrates slip computation and lifecycle.
type Service struct {
	store    Store
	persons  PersonReader
	agg      *ledger.Aggregator
	provider provider.Reader
	audit    AuditRecorder
	logger   *slog.Logger
	notify   NotifyFunc
	now      func() time.Time
	newID    func() string
}

// NewService builds the slip service with explicit dependencies.
func NewService(store Store, persons PersonReader, agg *ledger.Aggregator, prov provider.Reader, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		persons:  persons,
		agg:      agg,
		provider: prov,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithIDGenerator overrides slip ID generation for deterministic tests.
func (s *Service) WithIDGenerator(gen func() string) {
	if gen != nil {
		s.newID = gen
	}
}

// WithNotifier enables recipient notification when a slip is marked sent.
func (s *Service) WithNotifier(fn NotifyFunc) {
	s.notify = fn
}

// DetermineSlipType yields ORIGINAL when no original exists for the person
// and year, AMENDED otherwise.
func (s *Service) DetermineSlipType(ctx context.Context, personID int64, taxYear int) (SlipType, error) {
	existing, err := s.store.FindOriginal(ctx, personID, taxYear)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return TypeOriginal, nil
	}
	return TypeAmended, nil
}

// ComputeDraft aggregates the ledger for the person and year and persists a
// DRAFT slip. Generation is blocked while the provider profile is incomplete.
func (s *Service) ComputeDraft(ctx context.Context, personID int64, taxYear int) (*TaxSlip, error) {
	prof, err := s.provider.ProviderProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	person, err := s.persons.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	summary, err := s.agg.Aggregate(ctx, personID, taxYear)
	if err != nil {
		return nil, err
	}
	slipType, err := s.DetermineSlipType(ctx, personID, taxYear)
	if err != nil {
		return nil, err
	}
	now := s.now()
	slip := TaxSlip{
		ID:            s.newID(),
		PersonID:      personID,
		FamilyID:      person.FamilyID,
		TaxYear:       taxYear,
		SlipType:      slipType,
		Status:        StatusDraft,
		DaysOfCare:    summary.DaysOfCare,
		TotalPaid:     summary.TotalPaid,
		NonQualifying: summary.NonQualifying,
		Qualifying:    summary.Qualifying,
		ProviderSIN:   prof.FormattedSIN(),
		RecipientSIN:  formatRecipientSIN(person.RecipientSIN),
		RecipientName: person.RecipientName,
		ChildName:     person.ChildName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertSlip(ctx, slip); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "slip.draft", slip.ID, map[string]any{
		"person_id": personID,
		"tax_year":  taxYear,
		"slip_type": string(slipType),
	})
	return &slip, nil
}

// MarkGenerated assigns the slip number and transitions DRAFT -> GENERATED.
// Slip numbers are sequential per tax year and never reused.
func (s *Service) MarkGenerated(ctx context.Context, id string) (*TaxSlip, error) {
	slip, err := s.getValidated(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(slip.Status, StatusGenerated); err != nil {
		return nil, err
	}
	seq, err := s.store.NextSequence(ctx, slip.TaxYear)
	if err != nil {
		return nil, fmt.Errorf("slips: next sequence: %w", err)
	}
	number := FormatSlipNumber(slip.TaxYear, seq)
	now := s.now()
	if err := s.store.AssignSlipNumber(ctx, slip.ID, number, now); err != nil {
		return nil, err
	}
	slip.SlipNumber = number
	slip.Status = StatusGenerated
	slip.GeneratedAt = &now
	slip.UpdatedAt = now
	s.recordAudit(ctx, "slip.generated", slip.ID, map[string]any{"slip_number": number})
	return slip, nil
}

// MarkSent transitions GENERATED -> SENT once delivery is confirmed and
// queues the recipient notification. Notification is best effort: a queue
// failure is logged, not rolled back.
func (s *Service) MarkSent(ctx context.Context, id string) error {
	slip, err := s.getValidated(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(slip.Status, StatusSent); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, slip.ID, StatusSent, s.now()); err != nil {
		return err
	}
	s.recordAudit(ctx, "slip.sent", slip.ID, nil)
	s.notifyRecipient(ctx, slip)
	return nil
}

func (s *Service) notifyRecipient(ctx context.Context, slip *TaxSlip) {
	if s.notify == nil {
		return
	}
	person, err := s.persons.GetPerson(ctx, slip.PersonID)
	if err != nil || person.RecipientEmail == "" {
		return
	}
	subject := fmt.Sprintf("Relevé 24 %d pour %s", slip.TaxYear, slip.ChildName)
	body := fmt.Sprintf("Votre relevé 24 (%s) pour l'année %d est maintenant disponible.", slip.SlipNumber, slip.TaxYear)
	if err := s.notify(ctx, person.RecipientEmail, subject, body); err != nil {
		s.logger.Warn("slip notification enqueue failed", slog.String("slip_id", slip.ID), slog.Any("error", err))
	}
}

// MarkFiled transitions SENT -> FILED once confirmed with Revenu Québec.
func (s *Service) MarkFiled(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusFiled, "slip.filed")
}

// Amend supersedes a delivered/filed slip: the old record becomes AMENDED
// (terminal) and a fresh AMENDED-type draft is computed from the ledger.
func (s *Service) Amend(ctx context.Context, id string) (*TaxSlip, error) {
	old, err := s.getValidated(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAmend(old) {
		return nil, fmt.Errorf("%w: status %s", ErrCannotAmend, old.Status)
	}
	replacement, err := s.ComputeDraft(ctx, old.PersonID, old.TaxYear)
	if err != nil {
		return nil, err
	}
	replacement.SlipType = TypeAmended
	replacement.AmendsSlipID = &old.ID
	if err := s.store.MarkAmended(ctx, replacement.ID, old.ID, s.now()); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "slip.amended", old.ID, map[string]any{"replacement_id": replacement.ID})
	return replacement, nil
}

// Cancel flips a generated slip to cancelled type. The record is kept so the
// cancellation relevé can still be produced.
func (s *Service) Cancel(ctx context.Context, id string) error {
	slip, err := s.getValidated(ctx, id)
	if err != nil {
		return err
	}
	if !CanCancel(slip) {
		return fmt.Errorf("%w: status %s type %s", ErrCannotCancel, slip.Status, slip.SlipType)
	}
	if err := s.store.UpdateType(ctx, slip.ID, TypeCancelled); err != nil {
		return err
	}
	s.recordAudit(ctx, "slip.cancelled", slip.ID, nil)
	return nil
}

// Get loads one slip after identifier validation.
func (s *Service) Get(ctx context.Context, id string) (*TaxSlip, error) {
	return s.getValidated(ctx, id)
}

// List returns slips matching the filter, ordered for stable output.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]TaxSlip, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.store.ListSlips(ctx, filter)
}

func (s *Service) transition(ctx context.Context, id string, to Status, action string) error {
	slip, err := s.getValidated(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(slip.Status, to); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, slip.ID, to, s.now()); err != nil {
		return err
	}
	s.recordAudit(ctx, action, slip.ID, nil)
	return nil
}

func (s *Service) getValidated(ctx context.Context, id string) (*TaxSlip, error) {
	if err := shared.ValidateID(id); err != nil {
		return nil, err
	}
	slip, err := s.store.GetSlip(ctx, id)
	if err != nil {
		return nil, err
	}
	if slip == nil {
		return nil, ErrSlipNotFound
	}
	return slip, nil
}

func (s *Service) recordAudit(ctx context.Context, action, slipID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   shared.EntityTaxSlip,
		EntityID: slipID,
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func formatRecipientSIN(raw string) string {
	// Recipient SIN may legitimately be absent on draft records; only
	// canonicalise when present.
	if raw == "" {
		return ""
	}
	if formatted := sin.Format(raw); formatted != "" {
		return formatted
	}
	return raw
}
