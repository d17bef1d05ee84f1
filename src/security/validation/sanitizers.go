package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Export cells are shown back to operators and may be reopened in a spreadsheet,
// so they lose all markup.
var cellPolicy = bluemonday.StrictPolicy()

// CleanCell turns a free-text cell (a ticker, for instance) into a single line of
// plain text that is safe to store and to export again.
func CleanCell(s string) string {
	s = singleLine(s)
	if s == "" {
		return s
	}
	return guardFormula(stripMarkup(s))
}

// singleLine drops control characters and collapses runs of whitespace.
func singleLine(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// stripMarkup removes tags. Entities the policy escaped are restored unless that
// would bring markup back, so names like "M&T" survive unchanged.
func stripMarkup(s string) string {
	sanitized := strings.TrimSpace(cellPolicy.Sanitize(s))
	plain := html.UnescapeString(sanitized)
	if strings.ContainsAny(plain, "<>") {
		return sanitized
	}
	return plain
}

// guardFormula makes a leading formula character literal for spreadsheet apps.
func guardFormula(s string) string {
	if hasFormulaPrefix(s) {
		return "'" + s
	}
	return s
}
