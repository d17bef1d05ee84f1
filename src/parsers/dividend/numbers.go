package dividend

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	strayNumericChars = regexp.MustCompile(`[^0-9.\-]`)
	errEmptyNumber    = errors.New("no digits")
)

// parseNumber normalizes a broker amount: thousands separator removed, decimal
// separator mapped to '.', then anything that is not a digit, dot or minus dropped.
func parseNumber(value, decimalSep, thousandsSep string) (decimal.Decimal, error) {
	if thousandsSep != "" {
		value = strings.ReplaceAll(value, thousandsSep, "")
	}
	if decimalSep != "." {
		value = strings.ReplaceAll(value, decimalSep, ".")
	}
	value = strayNumericChars.ReplaceAllString(value, "")
	if value == "" {
		return decimal.Zero, errEmptyNumber
	}
	return decimal.NewFromString(value)
}
