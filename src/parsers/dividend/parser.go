// Package dividend turns broker dividend exports into canonical records.
package dividend

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/models"
	"github.com/username/dividendlog/backend/src/parsers/brokers"
	"github.com/username/dividendlog/backend/src/parsers/csvdialect"
	"github.com/username/dividendlog/backend/src/processors"
	"github.com/username/dividendlog/backend/src/security/validation"
)

var (
	ErrMissingHeader          = errors.New("could not read header row")
	ErrMissingRequiredColumns = errors.New("missing required columns")
)

// RowReader yields one record of cells per call and io.EOF at the end.
type RowReader interface {
	Read() ([]string, error)
}

// Result is the outcome of parsing one file. Errors name rows that were
// dropped; Warnings name rows that were kept but look suspicious.
type Result struct {
	Records   []models.DividendRecord
	Errors    []string
	Warnings  []string
	TotalRows int
}

// Parser maps rows onto canonical dividend records using a broker's FormatConfig.
type Parser struct {
	processor processors.DividendProcessor
}

func NewParser(processor processors.DividendProcessor) *Parser {
	return &Parser{processor: processor}
}

// ParseCSV decodes r with the broker's charset and dialect.
func (p *Parser) ParseCSV(r io.Reader, cfg brokers.FormatConfig) (*Result, error) {
	decoded, err := csvdialect.NewDecodingReader(r, cfg.Dialect.Encoding)
	if err != nil {
		return nil, err
	}
	rows := csvdialect.NewReader(decoded, cfg.DelimiterRune(), cfg.QuoteRune(), cfg.EscapeRune())
	return p.ParseRows(rows, cfg)
}

// ParseRows runs the row pipeline over any record source. Header problems abort
// the parse; problems in a data row are reported and the row is skipped.
func (p *Parser) ParseRows(rows RowReader, cfg brokers.FormatConfig) (*Result, error) {
	for i := 0; i < cfg.Dialect.SkipHeaderRows; i++ {
		if _, err := rows.Read(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
		}
	}

	header, err := rows.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	columns, err := mapColumns(header, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{Records: []models.DividendRecord{}, Errors: []string{}, Warnings: []string{}}
	rowNumber := cfg.Dialect.SkipHeaderRows + 2

	for ; ; rowNumber++ {
		row, err := rows.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", rowNumber, err))
			break
		}
		if csvdialect.IsBlank(row) {
			continue
		}
		res.TotalRows++

		rec, warnings, err := p.parseRow(row, columns, cfg, rowNumber)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", rowNumber, err))
			continue
		}
		res.Warnings = append(res.Warnings, warnings...)
		res.Records = append(res.Records, rec)
	}

	logger.L.Debug("Parsed dividend rows",
		"brokerID", cfg.BrokerID,
		"totalRows", res.TotalRows,
		"records", len(res.Records),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings))
	return res, nil
}

// mapColumns finds each mapped field's column in the header row.
func mapColumns(header []string, cfg brokers.FormatConfig) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	columns := make(map[string]int, len(cfg.ColumnMapping))
	for _, field := range models.CanonicalFields {
		source, mapped := cfg.ColumnMapping[field]
		if !mapped {
			continue
		}
		if i, ok := positions[strings.TrimSpace(source)]; ok {
			columns[field] = i
		}
	}

	var missing []string
	for _, field := range cfg.RequiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredColumns, strings.Join(missing, ", "))
	}
	return columns, nil
}

func (p *Parser) parseRow(row []string, columns map[string]int, cfg brokers.FormatConfig, rowNumber int) (models.DividendRecord, []string, error) {
	rec := models.DividendRecord{BrokerID: cfg.BrokerID, SourceRow: rowNumber}
	var warnings []string
	warn := func(msg string) {
		warnings = append(warnings, fmt.Sprintf("Row %d: %s", rowNumber, msg))
	}

	for _, field := range models.CanonicalFields {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}

		switch field {
		case models.FieldPaymentDate:
			date, err := parseDate(value, cfg.DateFormat)
			if err != nil {
				return rec, nil, fmt.Errorf("Invalid date format (expected %s): %s", cfg.DateFormat, value)
			}
			rec.PaymentDate = date

		case models.FieldISIN:
			rec.ISIN = validation.NormalizeCode(value)
			if err := validation.ValidateISIN(rec.ISIN); err != nil {
				warn(validation.Warning(err))
			}

		case models.FieldCurrencyLocal:
			rec.CurrencyLocal = validation.NormalizeCode(value)
			if err := validation.ValidateCurrencyCode(rec.CurrencyLocal); err != nil {
				warn(validation.Warning(err))
			}

		case models.FieldTicker:
			loc := validation.CellLocation{BrokerID: cfg.BrokerID, Row: rowNumber, Field: field}
			if err := validation.ScanCell(value, loc); err != nil {
				warn(fmt.Sprintf("ticker was sanitized: %s", value))
			}
			rec.Ticker = validation.CleanCell(value)
			if err := validation.ValidateStringMaxLength(rec.Ticker, validation.MaxTickerLength, "ticker"); err != nil {
				warn(validation.Warning(err))
			}

		default:
			n, err := parseNumber(value, cfg.DecimalSeparator, cfg.ThousandsSeparator)
			if err != nil {
				return rec, nil, fmt.Errorf("Invalid numeric value for %s: %s", field, value)
			}
			setAmount(&rec, field, n)
		}
	}

	var missing []string
	if rec.PaymentDate == "" {
		missing = append(missing, models.FieldPaymentDate)
	}
	if rec.ISIN == "" {
		missing = append(missing, models.FieldISIN)
	}
	if rec.SharesHeld.IsZero() {
		missing = append(missing, models.FieldSharesHeld)
	}
	if len(missing) > 0 {
		return rec, nil, fmt.Errorf("Missing required data in row: %s", strings.Join(missing, ", "))
	}

	if incomplete := p.processor.Enrich(&rec); len(incomplete) > 0 {
		warn("Incomplete data - missing: " + strings.Join(incomplete, ", "))
	}
	return rec, warnings, nil
}

func setAmount(rec *models.DividendRecord, field string, n decimal.Decimal) {
	v := decimal.NewNullDecimal(n)
	switch field {
	case models.FieldSharesHeld:
		rec.SharesHeld = n
	case models.FieldDividendAmountLocal:
		rec.DividendAmountLocal = v
	case models.FieldTaxAmountLocal:
		rec.TaxAmountLocal = v
	case models.FieldDividendAmountSEK:
		rec.DividendAmountSEK = v
	case models.FieldTaxAmountSEK:
		rec.TaxAmountSEK = v
	case models.FieldNetDividendSEK:
		rec.NetDividendSEK = v
	case models.FieldExchangeRateUsed:
		rec.ExchangeRateUsed = v
	case models.FieldTaxRatePercent:
		rec.TaxRatePercent = v
	}
}
