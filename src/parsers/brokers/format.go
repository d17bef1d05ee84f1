// Package brokers is the read-only registry of per-broker CSV export formats.
package brokers

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/username/dividendlog/backend/src/models"
)

var (
	ErrNotFound      = errors.New("broker format not found")
	ErrInvalidConfig = errors.New("invalid broker format configuration")
)

// Dialect describes how a broker writes its CSV files.
type Dialect struct {
	Delimiter      string `yaml:"delimiter" json:"delimiter"`
	Quote          string `yaml:"quote" json:"quote"`
	Escape         string `yaml:"escape" json:"escape"`
	SkipHeaderRows int    `yaml:"skip_header_rows" json:"skip_header_rows"`
	Encoding       string `yaml:"encoding" json:"encoding"`
}

// FormatConfig is the immutable description of one broker's dividend export.
// ColumnMapping maps canonical field names to the broker's column headers.
type FormatConfig struct {
	BrokerID           int               `yaml:"broker_id" json:"broker_id"`
	Name               string            `yaml:"name" json:"name"`
	Dialect            Dialect           `yaml:"csv_format" json:"csv_format"`
	DateFormat         string            `yaml:"date_format" json:"date_format"`
	DecimalSeparator   string            `yaml:"decimal_separator" json:"decimal_separator"`
	ThousandsSeparator string            `yaml:"thousand_separator" json:"thousand_separator"`
	ColumnMapping      map[string]string `yaml:"column_mapping" json:"column_mapping"`
	RequiredFields     []string          `yaml:"required_columns" json:"required_columns"`
}

// DelimiterRune returns the field separator.
func (c FormatConfig) DelimiterRune() rune { return firstRune(c.Dialect.Delimiter) }

// QuoteRune returns the enclosure character, or 0 when fields are never quoted.
func (c FormatConfig) QuoteRune() rune { return firstRune(c.Dialect.Quote) }

// EscapeRune returns the escape character, or 0 when none is configured.
func (c FormatConfig) EscapeRune() rune { return firstRune(c.Dialect.Escape) }

// Validate checks the configuration invariants.
func (c FormatConfig) Validate() error {
	if c.BrokerID <= 0 {
		return fmt.Errorf("%w: broker id must be positive, got %d", ErrInvalidConfig, c.BrokerID)
	}
	if utf8.RuneCountInString(c.Dialect.Delimiter) != 1 {
		return fmt.Errorf("%w: broker %d: delimiter must be a single character, got %q", ErrInvalidConfig, c.BrokerID, c.Dialect.Delimiter)
	}
	if utf8.RuneCountInString(c.Dialect.Quote) > 1 {
		return fmt.Errorf("%w: broker %d: quote must be at most one character, got %q", ErrInvalidConfig, c.BrokerID, c.Dialect.Quote)
	}
	if utf8.RuneCountInString(c.Dialect.Escape) > 1 {
		return fmt.Errorf("%w: broker %d: escape must be at most one character, got %q", ErrInvalidConfig, c.BrokerID, c.Dialect.Escape)
	}
	if c.Dialect.Quote != "" && c.Dialect.Quote == c.Dialect.Delimiter {
		return fmt.Errorf("%w: broker %d: quote and delimiter must differ", ErrInvalidConfig, c.BrokerID)
	}
	if c.Dialect.SkipHeaderRows < 0 {
		return fmt.Errorf("%w: broker %d: skip_header_rows cannot be negative", ErrInvalidConfig, c.BrokerID)
	}
	if strings.TrimSpace(c.DateFormat) == "" {
		return fmt.Errorf("%w: broker %d: date_format is required", ErrInvalidConfig, c.BrokerID)
	}
	if c.DecimalSeparator == "" {
		return fmt.Errorf("%w: broker %d: decimal_separator is required", ErrInvalidConfig, c.BrokerID)
	}
	if c.DecimalSeparator == c.ThousandsSeparator {
		return fmt.Errorf("%w: broker %d: decimal and thousands separators must differ", ErrInvalidConfig, c.BrokerID)
	}
	for field := range c.ColumnMapping {
		if !models.IsCanonicalField(field) {
			return fmt.Errorf("%w: broker %d: unknown field %q in column_mapping", ErrInvalidConfig, c.BrokerID, field)
		}
	}
	for _, field := range c.RequiredFields {
		if _, ok := c.ColumnMapping[field]; !ok {
			return fmt.Errorf("%w: broker %d: required field %q is not mapped", ErrInvalidConfig, c.BrokerID, field)
		}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate registry state.
func (c FormatConfig) clone() FormatConfig {
	out := c
	out.ColumnMapping = make(map[string]string, len(c.ColumnMapping))
	for k, v := range c.ColumnMapping {
		out.ColumnMapping[k] = v
	}
	out.RequiredFields = append([]string(nil), c.RequiredFields...)
	return out
}

func firstRune(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
