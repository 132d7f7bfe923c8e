package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/slips"
)

// capturePDF returns a fixed payload and records the HTML it was given.
type capturePDF struct {
	html string
	out  []byte
	err  error
}

func (c *capturePDF) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	c.html = html
	if c.err != nil {
		return nil, c.err
	}
	if c.out == nil {
		return []byte("%PDF-1.7 stub"), nil
	}
	return c.out, nil
}

func sampleSlip() *slips.TaxSlip {
	return &slips.TaxSlip{
		ID:            "3b8f9f2e-6a7c-4e21-9d2f-0c5a1e9b7d61",
		SlipNumber:    "RL24-2025-000007",
		PersonID:      7,
		FamilyID:      3,
		TaxYear:       2025,
		SlipType:      slips.TypeOriginal,
		Status:        slips.StatusGenerated,
		DaysOfCare:    212,
		TotalPaid:     decimal.RequireFromString("4890.50"),
		NonQualifying: decimal.RequireFromString("120.00"),
		Qualifying:    decimal.RequireFromString("4770.50"),
		ProviderSIN:   "046-454-286",
		RecipientSIN:  "046-454-286",
		RecipientName: "Marie Tremblay",
		ChildName:     "Léa Tremblay",
	}
}

func sampleProfile() provider.Profile {
	return provider.Profile{
		Name:    "Garderie Soleil",
		SIN:     "046454286",
		Address: "10 rue des Érables",
		City:    "Québec",
		Region:  "QC",
		Postal:  "G1A 1A1",
	}
}

func TestRenderSlipMapsBoxes(t *testing.T) {
	client := &capturePDF{}
	r, err := NewRenderer(client)
	require.NoError(t, err)
	r.WithNow(func() time.Time { return time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC) })

	pdf, err := r.RenderSlip(context.Background(), sampleSlip(), sampleProfile())
	require.NoError(t, err)
	require.NotEmpty(t, pdf)

	for _, want := range []string{
		"RL24-2025-000007",
		"Relevé original",
		"212",
		"4890.50",
		"120.00",
		"4770.50",
		"046-454-286",
		"Garderie Soleil",
		"10 rue des Érables, Québec, QC, G1A 1A1",
		"Marie Tremblay",
		"Léa Tremblay",
		"2026-01-20",
	} {
		require.True(t, strings.Contains(client.html, want), "rendered HTML missing %q", want)
	}
}

func TestRenderSlipAmendedLabel(t *testing.T) {
	client := &capturePDF{}
	r, err := NewRenderer(client)
	require.NoError(t, err)

	slip := sampleSlip()
	slip.SlipType = slips.TypeAmended
	_, err = r.RenderSlip(context.Background(), slip, sampleProfile())
	require.NoError(t, err)
	require.Contains(t, client.html, "Relevé modifié")
}

func TestSlipFileName(t *testing.T) {
	slip := sampleSlip()
	require.Equal(t, "RL24_2025_3.pdf", SlipFileName(slip, false))
	require.Equal(t, "RL24_2025_3_7.pdf", SlipFileName(slip, true))
}

func TestArchiveFileName(t *testing.T) {
	at := time.Date(2026, 1, 20, 10, 30, 45, 0, time.UTC)
	require.Equal(t, "RL24_Batch_20260120_103045_12documents.zip", ArchiveFileName(at, 12))
}
