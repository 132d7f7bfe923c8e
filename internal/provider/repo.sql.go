package provider

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the provider profile from facility settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProviderProfile loads the single settings row. A missing row maps to
// ErrNotConfigured so callers report it as a validation failure.
func (r *Repository) ProviderProfile(ctx context.Context) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT name, sin, address, city, region, postal_code FROM provider_settings LIMIT 1`).
		Scan(&p.Name, &p.SIN, &p.Address, &p.City, &p.Region, &p.Postal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotConfigured
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SaveProfile upserts the single settings row. The profile is validated by
// the caller; storage accepts partial profiles so setup can happen in steps.
func (r *Repository) SaveProfile(ctx context.Context, p Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_settings (singleton, name, sin, address, city, region, postal_code)
		VALUES (TRUE, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (singleton) DO UPDATE
		SET name = EXCLUDED.name, sin = EXCLUDED.sin, address = EXCLUDED.address,
		    city = EXCLUDED.city, region = EXCLUDED.region, postal_code = EXCLUDED.postal_code`,
		p.Name, p.SIN, p.Address, p.City, p.Region, p.Postal)
	return err
}
