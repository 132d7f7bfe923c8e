package slips

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurora-cpe/aurora-cpe/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for tax slips.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const slipColumns = `id, slip_number, person_id, family_id, tax_year, slip_type, status,
days_of_care, total_paid, non_qualifying, qualifying,
provider_sin, recipient_sin, recipient_name, child_name,
amends_slip_id, generated_at, sent_at, filed_at, created_at, updated_at`

func scanSlip(row pgx.Row) (*TaxSlip, error) {
	var s TaxSlip
	err := row.Scan(&s.ID, &s.SlipNumber, &s.PersonID, &s.FamilyID, &s.TaxYear, &s.SlipType, &s.Status,
		&s.DaysOfCare, &s.TotalPaid, &s.NonQualifying, &s.Qualifying,
		&s.ProviderSIN, &s.RecipientSIN, &s.RecipientName, &s.ChildName,
		&s.AmendsSlipID, &s.GeneratedAt, &s.SentAt, &s.FiledAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSlip loads one slip, nil when absent.
func (r *Repository) GetSlip(ctx context.Context, id string) (*TaxSlip, error) {
	return scanSlip(r.pool.QueryRow(ctx, `SELECT `+slipColumns+` FROM tax_slips WHERE id=$1`, id))
}

// GetSlipsByIDs loads slips for the given identifiers, ordered by tax year
// then recipient name for reproducible batch output.
func (r *Repository) GetSlipsByIDs(ctx context.Context, ids []string) ([]TaxSlip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+slipColumns+` FROM tax_slips WHERE id = ANY($1) ORDER BY tax_year, recipient_name, id`, ids)
	if err != nil {
		return nil, err
	}
	return collectSlips(rows)
}

// FindOriginal returns the ORIGINAL-type slip for a person and year, nil when
// none exists.
func (r *Repository) FindOriginal(ctx context.Context, personID int64, taxYear int) (*TaxSlip, error) {
	return scanSlip(r.pool.QueryRow(ctx, `SELECT `+slipColumns+` FROM tax_slips WHERE person_id=$1 AND tax_year=$2 AND slip_type='ORIGINAL'`, personID, taxYear))
}

// ListSlips returns slips matching the filter, ordered by tax year then
// recipient name (the listing sort batch archives follow).
func (r *Repository) ListSlips(ctx context.Context, filter ListFilter) ([]TaxSlip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+slipColumns+` FROM tax_slips
WHERE ($1 = 0 OR tax_year = $1)
  AND ($2 = 0 OR person_id = $2)
  AND ($3 = 0 OR family_id = $3)
  AND ($4 = '' OR status = $4)
  AND ($5 = '' OR slip_type = $5)
ORDER BY tax_year, recipient_name, id
LIMIT $6 OFFSET $7`,
		filter.TaxYear, filter.PersonID, filter.FamilyID, string(filter.Status), string(filter.SlipType), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectSlips(rows)
}

// InsertSlip persists a new slip. A second ORIGINAL for the same person and
// year violates uq_tax_slips_original and maps to ErrDuplicateOriginal.
func (r *Repository) InsertSlip(ctx context.Context, s TaxSlip) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO tax_slips (`+slipColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		s.ID, s.SlipNumber, s.PersonID, s.FamilyID, s.TaxYear, s.SlipType, s.Status,
		s.DaysOfCare, s.TotalPaid, s.NonQualifying, s.Qualifying,
		s.ProviderSIN, s.RecipientSIN, s.RecipientName, s.ChildName,
		s.AmendsSlipID, s.GeneratedAt, s.SentAt, s.FiledAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isDuplicateOriginal(err) {
			return ErrDuplicateOriginal
		}
		return err
	}
	return nil
}

func isDuplicateOriginal(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_tax_slips_original"
}

// UpdateStatus changes the slip status and stamps the matching timestamp
// column.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	var column string
	switch status {
	case StatusSent:
		column = "sent_at"
	case StatusFiled:
		column = "filed_at"
	default:
		column = ""
	}
	var err error
	if column == "" {
		_, err = r.pool.Exec(ctx, `UPDATE tax_slips SET status=$1, updated_at=$2 WHERE id=$3`, status, at, id)
	} else {
		_, err = r.pool.Exec(ctx, `UPDATE tax_slips SET status=$1, `+column+`=$2, updated_at=$2 WHERE id=$3`, status, at, id)
	}
	return err
}

// UpdateType changes the slip type (amendment replacement, cancellation).
func (r *Repository) UpdateType(ctx context.Context, id string, slipType SlipType) error {
	_, err := r.pool.Exec(ctx, `UPDATE tax_slips SET slip_type=$1, updated_at=NOW() WHERE id=$2`, slipType, id)
	return err
}

// MarkAmended retypes the replacement slip and retires the original in one
// transaction, so a crash never leaves an amendment half applied.
func (r *Repository) MarkAmended(ctx context.Context, replacementID, originalID string, at time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE tax_slips SET slip_type=$1, amends_slip_id=$2, updated_at=$3 WHERE id=$4`,
			TypeAmended, originalID, at, replacementID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrSlipNotFound
		}
		tag, err = tx.Exec(ctx, `UPDATE tax_slips SET status=$1, updated_at=$2 WHERE id=$3`, StatusAmended, at, originalID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrSlipNotFound
		}
		return nil
	})
}

// AssignSlipNumber sets the slip number and transitions the row to GENERATED.
func (r *Repository) AssignSlipNumber(ctx context.Context, id, number string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE tax_slips SET slip_number=$1, status=$2, generated_at=$3, updated_at=$3 WHERE id=$4`, number, StatusGenerated, at, id)
	return err
}

// NextSequence atomically advances and returns the per-year slip counter.
// Issued numbers are never reused, even when a later insert fails.
func (r *Repository) NextSequence(ctx context.Context, taxYear int) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `INSERT INTO slip_number_sequences (tax_year, last_value)
VALUES ($1, 1)
ON CONFLICT (tax_year) DO UPDATE SET last_value = slip_number_sequences.last_value + 1
RETURNING last_value`, taxYear).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func collectSlips(rows pgx.Rows) ([]TaxSlip, error) {
	defer rows.Close()
	var slips []TaxSlip
	for rows.Next() {
		var s TaxSlip
		if err := rows.Scan(&s.ID, &s.SlipNumber, &s.PersonID, &s.FamilyID, &s.TaxYear, &s.SlipType, &s.Status,
			&s.DaysOfCare, &s.TotalPaid, &s.NonQualifying, &s.Qualifying,
			&s.ProviderSIN, &s.RecipientSIN, &s.RecipientName, &s.ChildName,
			&s.AmendsSlipID, &s.GeneratedAt, &s.SentAt, &s.FiledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		slips = append(slips, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slips, nil
}

// PersonRepository resolves recipients from enrollment records.
type PersonRepository struct {
	pool *pgxpool.Pool
}

// NewPersonRepository constructs the reader.
func NewPersonRepository(pool *pgxpool.Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// ErrPersonNotFound indicates an unknown person id.
var ErrPersonNotFound = errors.New("slips: person not found")

// GetPerson loads recipient identity for a person.
func (r *PersonRepository) GetPerson(ctx context.Context, personID int64) (Person, error) {
	var p Person
	err := r.pool.QueryRow(ctx, `SELECT p.id, p.family_id, f.guardian_name, f.guardian_sin, f.guardian_email, p.full_name
FROM persons p JOIN families f ON f.id = p.family_id
WHERE p.id=$1`, personID).Scan(&p.ID, &p.FamilyID, &p.RecipientName, &p.RecipientSIN, &p.RecipientEmail, &p.ChildName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Person{}, ErrPersonNotFound
	}
	if err != nil {
		return Person{}, err
	}
	return p, nil
}
