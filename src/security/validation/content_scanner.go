package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/username/dividendlog/backend/src/logger"
)

// CellLocation names the cell a broker export value came from.
type CellLocation struct {
	BrokerID int
	Row      int
	Field    string
}

type cellRule struct {
	problem string
	match   func(string) bool
}

var markupInCell = regexp.MustCompile(
	`(?i)<\s*(script|iframe|object|embed|applet|style|link|svg)|\bon(error|load|focus|mouseover)\s*=|(javascript|vbscript)\s*:|data\s*:\s*text/html`,
)

// Rules applied to free-text cells, in reporting order.
var cellRules = []cellRule{
	{problem: "markup or script content", match: markupInCell.MatchString},
	{problem: "spreadsheet formula prefix", match: hasFormulaPrefix},
}

func hasFormulaPrefix(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.ContainsRune("=+-@", rune(s[0]))
}

func preview(s string) string {
	const max = 50
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// ScanCell reports the first rule a free-text cell breaks. The caller still keeps
// the cleaned value; the error only drives a row warning.
func ScanCell(value string, loc CellLocation) error {
	for _, rule := range cellRules {
		if !rule.match(value) {
			continue
		}
		logger.L.Warn("Suspicious content in broker export cell",
			"brokerID", loc.BrokerID,
			"row", loc.Row,
			"field", loc.Field,
			"problem", rule.problem,
			"contentPreview", preview(value))
		return fmt.Errorf("%w: %s in field '%s'", ErrValidationFailed, rule.problem, loc.Field)
	}
	return nil
}
