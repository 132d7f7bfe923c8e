package exports

import (
	"bytes"
	"fmt"
	"strings"
)

// QuickBooks account names used on the transaction and split sides. The IIF
// importer matches these against the chart of accounts by name.
type QuickBooksOptions struct {
	ReceivablesAccount string
	IncomeAccount      string
	DepositAccount     string
}

func (o *QuickBooksOptions) applyDefaults() {
	if o.ReceivablesAccount == "" {
		o.ReceivablesAccount = "Accounts Receivable"
	}
	if o.IncomeAccount == "" {
		o.IncomeAccount = "Childcare Income"
	}
	if o.DepositAccount == "" {
		o.DepositAccount = "Undeposited Funds"
	}
}

// QuickBooksEncoder writes the transaction list as a QuickBooks IIF batch.
// Every transaction becomes a TRNS line, one SPL line carrying the negated
// amount, and an ENDTRNS terminator, all CRLF-ended.
type QuickBooksEncoder struct {
	opts QuickBooksOptions
}

func NewQuickBooksEncoder(opts QuickBooksOptions) *QuickBooksEncoder {
	opts.applyDefaults()
	return &QuickBooksEncoder{opts: opts}
}

var quickBooksMethods = map[string]string{
	"cash":          "Cash",
	"cheque":        "Check",
	"check":         "Check",
	"credit_card":   "Credit Card",
	"debit_card":    "Debit Card",
	"interac":       "Debit Card",
	"etransfer":     "E-Transfer",
	"e-transfer":    "E-Transfer",
	"bank_transfer": "Transfer",
}

func quickBooksMethod(raw string) string {
	if raw == "" {
		return ""
	}
	if mapped, ok := quickBooksMethods[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return "Other"
}

// quickBooksName is the party name on the TRNS line. QuickBooks has no
// customer-code concept, so the family display name carries identity with a
// padded fallback when the name is empty.
func quickBooksName(txn Transaction) string {
	name := strings.TrimSpace(txn.FamilyName)
	if name == "" {
		return fmt.Sprintf("Family-%06d", txn.FamilyID)
	}
	return sanitizeIIF(name)
}

// iifDate formats M/D/YY with no leading zeros, the only layout the IIF
// importer accepts.
func iifDate(txn Transaction) string {
	return fmt.Sprintf("%d/%d/%02d", txn.Date.Month(), txn.Date.Day(), txn.Date.Year()%100)
}

func (e *QuickBooksEncoder) Encode(txns []Transaction) ([]byte, error) {
	buf := &bytes.Buffer{}
	writeIIFLine(buf, "!TRNS", "TRNSTYPE", "DATE", "ACCNT", "NAME", "AMOUNT", "DOCNUM", "MEMO", "PAYMETH")
	writeIIFLine(buf, "!SPL", "TRNSTYPE", "DATE", "ACCNT", "NAME", "AMOUNT", "DOCNUM", "MEMO", "PAYMETH")
	writeIIFLine(buf, "!ENDTRNS")

	for _, txn := range txns {
		trnsType, trnsAccount, splAccount := e.accountsFor(txn)
		amount := formatAmount(txn.Amount)
		negated := formatAmount(txn.Amount.Neg())
		name := quickBooksName(txn)
		method := quickBooksMethod(txn.Method)

		writeIIFLine(buf, "TRNS", trnsType, iifDate(txn), trnsAccount, name, amount, sanitizeIIF(txn.Reference), sanitizeIIF(txn.Memo), method)
		writeIIFLine(buf, "SPL", trnsType, iifDate(txn), splAccount, name, negated, sanitizeIIF(txn.Reference), sanitizeIIF(txn.Memo), method)
		writeIIFLine(buf, "ENDTRNS")
	}
	return buf.Bytes(), nil
}

func (e *QuickBooksEncoder) accountsFor(txn Transaction) (trnsType, trnsAccount, splAccount string) {
	if txn.Kind == KindPayment {
		return "PAYMENT", e.opts.DepositAccount, e.opts.ReceivablesAccount
	}
	return "INVOICE", e.opts.ReceivablesAccount, e.opts.IncomeAccount
}

func writeIIFLine(buf *bytes.Buffer, fields ...string) {
	buf.WriteString(strings.Join(fields, "\t"))
	buf.WriteString("\r\n")
}
