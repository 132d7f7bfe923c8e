// Package provider exposes the facility's filing identity used on every slip.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/aurora-cpe/aurora-cpe/internal/sin"
)

// Profile is the provider identity printed on tax slips.
type Profile struct {
	Name    string
	SIN     string
	Address string
	City    string
	Region  string
	Postal  string
}

// Reader loads the configured provider profile.
type Reader interface {
	ProviderProfile(ctx context.Context) (Profile, error)
}

// ErrNotConfigured blocks slip generation until the profile is complete.
var ErrNotConfigured = errors.New("provider: profile not configured")

// Validate checks the profile against the slip-generation gate: name, address
// and a Luhn-valid SIN are all required.
func (p Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "address")
	}
	if !sin.Validate(p.SIN) {
		missing = append(missing, "valid SIN")
	}
	if len(missing) > 0 {
		return errors.Join(ErrNotConfigured, errors.New("missing "+strings.Join(missing, ", ")))
	}
	return nil
}

// FormattedSIN returns the canonical DDD-DDD-DDD form.
func (p Profile) FormattedSIN() string {
	return sin.Format(p.SIN)
}

// FullAddress joins the address components for rendering.
func (p Profile) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{p.Address, p.City, p.Region, p.Postal} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, ", ")
}
