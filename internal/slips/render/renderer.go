// Package render produces RL-24 slip PDFs and batch archives.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/slips"
	"github.com/aurora-cpe/aurora-cpe/web"
)

// PDFClient converts HTML to PDF bytes.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// slipView is the template view model for one slip document.
type slipView struct {
	SlipNumber      string
	TaxYear         int
	BoxA            string
	BoxB            string
	BoxC            string
	BoxD            string
	BoxE            string
	BoxH            string
	ProviderName    string
	ProviderAddress string
	RecipientName   string
	RecipientSIN    string
	ChildName       string
	GeneratedAt     string
}

// Renderer turns a computed slip into a single-page PDF document.
type Renderer struct {
	tpl    *template.Template
	client PDFClient
	now    func() time.Time
}

// NewRenderer parses the embedded RL-24 template and wires the PDF client.
func NewRenderer(client PDFClient) (*Renderer, error) {
	if client == nil {
		return nil, fmt.Errorf("render: pdf client required")
	}
	tpl, err := template.New("rl24_slip.html").ParseFS(web.Templates, "templates/slips/rl24_slip.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tpl: tpl, client: client, now: time.Now}, nil
}

// WithNow overrides the clock for deterministic tests.
func (r *Renderer) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// RenderSlip maps the slip boxes onto the fixed layout and converts it to PDF.
func (r *Renderer) RenderSlip(ctx context.Context, slip *slips.TaxSlip, prof provider.Profile) ([]byte, error) {
	if r == nil || r.tpl == nil || r.client == nil {
		return nil, fmt.Errorf("render: renderer not initialised")
	}
	if slip == nil {
		return nil, fmt.Errorf("render: slip required")
	}
	view := slipView{
		SlipNumber:      slip.SlipNumber,
		TaxYear:         slip.TaxYear,
		BoxA:            slip.SlipType.BoxALabel(),
		BoxB:            strconv.Itoa(slip.DaysOfCare),
		BoxC:            formatAmount(slip.TotalPaid),
		BoxD:            formatAmount(slip.NonQualifying),
		BoxE:            formatAmount(slip.Qualifying),
		BoxH:            slip.ProviderSIN,
		ProviderName:    prof.Name,
		ProviderAddress: prof.FullAddress(),
		RecipientName:   slip.RecipientName,
		RecipientSIN:    slip.RecipientSIN,
		ChildName:       slip.ChildName,
		GeneratedAt:     r.now().Format("2006-01-02"),
	}
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, view); err != nil {
		return nil, fmt.Errorf("render: execute template: %w", err)
	}
	pdf, err := r.client.RenderHTML(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("render: pdf conversion: %w", err)
	}
	return pdf, nil
}

// SlipFileName builds the canonical single-slip file name
// RL24_{taxYear}_{familyID}[_{personID}].pdf.
func SlipFileName(slip *slips.TaxSlip, includePerson bool) string {
	if includePerson {
		return fmt.Sprintf("RL24_%d_%d_%d.pdf", slip.TaxYear, slip.FamilyID, slip.PersonID)
	}
	return fmt.Sprintf("RL24_%d_%d.pdf", slip.TaxYear, slip.FamilyID)
}

// ArchiveFileName builds the batch archive name
// RL24_Batch_{timestamp}_{count}documents.zip.
func ArchiveFileName(at time.Time, count int) string {
	return fmt.Sprintf("RL24_Batch_%s_%ddocuments.zip", at.Format("20060102_150405"), count)
}

func formatAmount(v decimal.Decimal) string {
	return v.StringFixed(2)
}
