package exports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Sage 50 date layouts. The importer is configured per site, so the layout
// is an option rather than a constant.
const (
	Sage50DateMDY = "01/02/2006"
	Sage50DateDMY = "02/01/2006"
	Sage50DateISO = "2006-01-02"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ValidSage50DateLayout reports whether the layout is one the Sage 50
// importer understands. The empty string selects the MDY default.
func ValidSage50DateLayout(layout string) bool {
	switch layout {
	case "", Sage50DateMDY, Sage50DateDMY, Sage50DateISO:
		return true
	}
	return false
}

// Sage50Options tunes the CSV output for a specific Sage 50 installation.
type Sage50Options struct {
	DateLayout string
	IncludeBOM bool
}

// Sage50Encoder writes the transaction list as a Sage 50 general journal CSV.
type Sage50Encoder struct {
	opts Sage50Options
}

func NewSage50Encoder(opts Sage50Options) *Sage50Encoder {
	if opts.DateLayout == "" {
		opts.DateLayout = Sage50DateMDY
	}
	return &Sage50Encoder{opts: opts}
}

// Sage50CustomerCode derives the stable synthetic customer code Sage 50
// keys families by.
func Sage50CustomerCode(familyID int64) string {
	return fmt.Sprintf("FAM-%06d", familyID)
}

var sage50Methods = map[string]string{
	"cash":          "Cash",
	"cheque":        "Cheque",
	"check":         "Cheque",
	"credit_card":   "Credit Card",
	"debit_card":    "Debit Card",
	"interac":       "Debit Card",
	"etransfer":     "Transfer",
	"e-transfer":    "Transfer",
	"bank_transfer": "Transfer",
}

func sage50Method(raw string) string {
	if raw == "" {
		return ""
	}
	if mapped, ok := sage50Methods[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return "Other"
}

func (e *Sage50Encoder) Encode(txns []Transaction) ([]byte, error) {
	buf := &bytes.Buffer{}
	if e.opts.IncludeBOM {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(buf)
	w.UseCRLF = true

	header := []string{"Date", "Customer Code", "Customer Name", "Reference", "Type", "Payment Method", "Amount"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("sage50: write header: %w", err)
	}
	for _, txn := range txns {
		row := []string{
			txn.Date.Format(e.opts.DateLayout),
			Sage50CustomerCode(txn.FamilyID),
			sanitizeCSV(txn.FamilyName),
			sanitizeCSV(txn.Reference),
			string(txn.Kind),
			sage50Method(txn.Method),
			formatAmount(txn.Amount),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("sage50: write row %s: %w", txn.Reference, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("sage50: flush: %w", err)
	}
	return buf.Bytes(), nil
}
