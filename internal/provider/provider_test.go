package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfileValidate(t *testing.T) {
	complete := Profile{Name: "Garderie Les Petits Explorateurs", SIN: "046454286", Address: "123 rue Principale"}
	require.NoError(t, complete.Validate())

	cases := []struct {
		name    string
		profile Profile
	}{
		{"missing name", Profile{SIN: "046454286", Address: "123 rue Principale"}},
		{"missing address", Profile{Name: "Garderie", SIN: "046454286"}},
		{"missing sin", Profile{Name: "Garderie", Address: "123 rue Principale"}},
		{"sin fails luhn", Profile{Name: "Garderie", SIN: "123456789", Address: "123 rue Principale"}},
		{"empty", Profile{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.profile.Validate()
			require.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestProfileFormattedSIN(t *testing.T) {
	p := Profile{SIN: "046 454 286"}
	require.Equal(t, "046-454-286", p.FormattedSIN())
}

func TestProfileFullAddress(t *testing.T) {
	p := Profile{Address: "123 rue Principale", City: "Québec", Region: "QC", Postal: "G1A 1A1"}
	require.Equal(t, "123 rue Principale, Québec, QC, G1A 1A1", p.FullAddress())
	require.Equal(t, "123 rue Principale", Profile{Address: "123 rue Principale"}.FullAddress())
}
