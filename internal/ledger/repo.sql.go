package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrFamilyNotFound indicates a missing family record.
var ErrFamilyNotFound = errors.New("ledger: family not found")

// Repository provides PostgreSQL backed read access to the billing ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, person_id, family_id, issued_at, subtotal, tax_amount, total_amount, paid_amount, status`

func scanInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.PersonID, &inv.FamilyID, &inv.IssuedAt, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.PaidAmount, &inv.Status); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetInvoice returns one invoice by id, nil when absent.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ledger_invoices WHERE id=$1`, id).
		Scan(&inv.ID, &inv.PersonID, &inv.FamilyID, &inv.IssuedAt, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.PaidAmount, &inv.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoicesByPerson returns every invoice billed to the person.
func (r *Repository) ListInvoicesByPerson(ctx context.Context, personID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ledger_invoices WHERE person_id=$1 ORDER BY issued_at, id`, personID)
	if err != nil {
		return nil, err
	}
	return scanInvoices(rows)
}

// ListInvoicesByDateRange returns invoices issued inside [from, to].
func (r *Repository) ListInvoicesByDateRange(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ledger_invoices WHERE issued_at BETWEEN $1 AND $2 ORDER BY issued_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	return scanInvoices(rows)
}

func scanPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var pay Payment
		if err := rows.Scan(&pay.ID, &pay.InvoiceID, &pay.PaidAt, &pay.Amount, &pay.Method); err != nil {
			return nil, err
		}
		payments = append(payments, pay)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// ListPaymentsByInvoice returns payments applied to an invoice.
func (r *Repository) ListPaymentsByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, paid_at, amount, method FROM ledger_payments WHERE invoice_id=$1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

// ListPaymentsByDateRange returns payments dated inside [from, to].
func (r *Repository) ListPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, paid_at, amount, method FROM ledger_payments WHERE paid_at BETWEEN $1 AND $2 ORDER BY paid_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

// ListLineItemsByInvoice returns the charge lines of an invoice.
func (r *Repository) ListLineItemsByInvoice(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, category, label, amount FROM ledger_invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var line LineItem
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Category, &line.Label, &line.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// GetFamily resolves the display identity of a family.
func (r *Repository) GetFamily(ctx context.Context, familyID int64) (FamilyRef, error) {
	var fam FamilyRef
	err := r.pool.QueryRow(ctx, `SELECT id, display_name FROM families WHERE id=$1`, familyID).Scan(&fam.ID, &fam.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return FamilyRef{}, ErrFamilyNotFound
	}
	if err != nil {
		return FamilyRef{}, err
	}
	return fam, nil
}

// EnrollmentCareDays reads the precomputed days-of-care figure maintained by
// the enrollment module.
type EnrollmentCareDays struct {
	pool *pgxpool.Pool
}

// NewEnrollmentCareDays constructs the provider.
func NewEnrollmentCareDays(pool *pgxpool.Pool) *EnrollmentCareDays {
	return &EnrollmentCareDays{pool: pool}
}

// DaysOfCare returns the stored figure, zero when no enrollment row exists.
func (p *EnrollmentCareDays) DaysOfCare(ctx context.Context, personID int64, taxYear int) (int, error) {
	var days int
	err := p.pool.QueryRow(ctx, `SELECT days_of_care FROM enrollment_care_days WHERE person_id=$1 AND tax_year=$2`, personID, taxYear).Scan(&days)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if days < 0 {
		days = 0
	}
	return days, nil
}
