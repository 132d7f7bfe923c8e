package exports

import "strings"

// iifSpacer collapses every tab and newline variant to a single space. IIF
// delimits fields with tabs and records with CRLF and has no quoting, so
// these characters can never survive inside a field.
var iifSpacer = strings.NewReplacer(
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
	"\t", " ",
)

// sanitizeCSV strips ASCII control characters but keeps tabs and newlines,
// which the CSV writer protects by quoting the field.
func sanitizeCSV(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// sanitizeIIF replaces tabs and newlines with single spaces and drops the
// remaining control characters.
func sanitizeIIF(s string) string {
	s = iifSpacer.Replace(s)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
