package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	ISINLength         = 12
	CurrencyCodeLength = 3
	MaxTickerLength    = 32
)

var (
	isinRegex = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
)

// NormalizeCode trims and upper-cases an instrument or currency code.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateISIN checks an already normalized ISIN. Broker exports are not always
// clean, so callers report the result as a warning and keep the row.
func ValidateISIN(isin string) error {
	if utf8.RuneCountInString(isin) != ISINLength {
		return fmt.Errorf("%w: ISIN length is not %d characters: %s", ErrValidationFailed, ISINLength, isin)
	}
	if !isinRegex.MatchString(isin) {
		return fmt.Errorf("%w: ISIN format may be invalid: %s", ErrValidationFailed, isin)
	}
	return nil
}

// ValidateCurrencyCode checks an already normalized currency code.
func ValidateCurrencyCode(code string) error {
	if utf8.RuneCountInString(code) != CurrencyCodeLength {
		return fmt.Errorf("%w: Currency code length is not %d characters: %s", ErrValidationFailed, CurrencyCodeLength, code)
	}
	return nil
}

// Warning strips the sentinel prefix so the message can be shown to an operator.
func Warning(err error) string {
	return strings.TrimPrefix(err.Error(), ErrValidationFailed.Error()+": ")
}
