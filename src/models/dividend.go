package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field keys. Broker column mappings, incomplete-field lists and
// diagnostics all use these names.
const (
	FieldPaymentDate         = "payment_date"
	FieldISIN                = "isin"
	FieldTicker              = "ticker"
	FieldSharesHeld          = "shares_held"
	FieldDividendAmountLocal = "dividend_amount_local"
	FieldTaxAmountLocal      = "tax_amount_local"
	FieldCurrencyLocal       = "currency_local"
	FieldDividendAmountSEK   = "dividend_amount_sek"
	FieldTaxAmountSEK        = "tax_amount_sek"
	FieldNetDividendSEK      = "net_dividend_sek"
	FieldExchangeRateUsed    = "exchange_rate_used"
	FieldTaxRatePercent      = "tax_rate_percent"
)

// CanonicalFields is the fixed order in which mapped fields are read from a row.
var CanonicalFields = []string{
	FieldPaymentDate,
	FieldISIN,
	FieldTicker,
	FieldSharesHeld,
	FieldDividendAmountLocal,
	FieldTaxAmountLocal,
	FieldCurrencyLocal,
	FieldDividendAmountSEK,
	FieldTaxAmountSEK,
	FieldNetDividendSEK,
	FieldExchangeRateUsed,
	FieldTaxRatePercent,
}

// IsCanonicalField reports whether name is one of CanonicalFields.
func IsCanonicalField(name string) bool {
	for _, f := range CanonicalFields {
		if f == name {
			return true
		}
	}
	return false
}

// DividendRecord is the broker-independent representation of one dividend payment.
// Amounts suffixed SEK are in the settlement currency.
type DividendRecord struct {
	BrokerID            int                 `json:"broker_id"`
	PaymentDate         string              `json:"payment_date"` // YYYY-MM-DD
	ISIN                string              `json:"isin"`
	Ticker              string              `json:"ticker,omitempty"`
	SharesHeld          decimal.Decimal     `json:"shares_held"`
	DividendAmountLocal decimal.NullDecimal `json:"dividend_amount_local"`
	TaxAmountLocal      decimal.NullDecimal `json:"tax_amount_local"`
	CurrencyLocal       string              `json:"currency_local,omitempty"`
	DividendAmountSEK   decimal.NullDecimal `json:"dividend_amount_sek"`
	TaxAmountSEK        decimal.NullDecimal `json:"tax_amount_sek"`
	NetDividendSEK      decimal.NullDecimal `json:"net_dividend_sek"`
	ExchangeRateUsed    decimal.NullDecimal `json:"exchange_rate_used"`
	TaxRatePercent      decimal.NullDecimal `json:"tax_rate_percent"`
	IsComplete          bool                `json:"is_complete"`
	IncompleteFields    []string            `json:"incomplete_fields,omitempty"`
	SourceRow           int                 `json:"source_row"` // 1-based line in the uploaded file
}

// Candidate returns the identity tuple used for duplicate detection.
func (r DividendRecord) Candidate() DuplicateCandidate {
	return DuplicateCandidate{
		ISIN:        r.ISIN,
		PaymentDate: r.PaymentDate,
		BrokerID:    r.BrokerID,
		SharesHeld:  r.SharesHeld,
	}
}

// SharesTolerance is the maximum difference at which two share counts are equal.
var SharesTolerance = decimal.RequireFromString("0.0001")

// DuplicateCandidate identifies a dividend payment in the historical store.
type DuplicateCandidate struct {
	ISIN        string          `json:"isin"`
	PaymentDate string          `json:"payment_date"`
	BrokerID    int             `json:"broker_id"`
	SharesHeld  decimal.Decimal `json:"shares_held"`
}

// Matches compares ISIN, date and broker exactly and shares within SharesTolerance.
func (c DuplicateCandidate) Matches(other DuplicateCandidate) bool {
	return c.ISIN == other.ISIN &&
		c.PaymentDate == other.PaymentDate &&
		c.BrokerID == other.BrokerID &&
		c.SharesHeld.Sub(other.SharesHeld).Abs().LessThan(SharesTolerance)
}

// ImportBatch is the parsed result of one upload. It is staged for preview and
// consumed once by Commit.
type ImportBatch struct {
	ID             string           `json:"batch_id"`
	BrokerID       int              `json:"broker_id"`
	FileName       string           `json:"filename"`
	StoredFilePath string           `json:"-"`
	Records        []DividendRecord `json:"dividends"`
	Errors         []string         `json:"errors"`
	Warnings       []string         `json:"warnings"`
	TotalRows      int              `json:"total_rows"`
	StagedAt       time.Time        `json:"staged_at"`
}

// StageSummary is returned to the operator after an upload has been parsed.
type StageSummary struct {
	BatchID     string           `json:"batch_id"`
	BrokerID    int              `json:"broker_id"`
	BrokerName  string           `json:"broker_name"`
	FileName    string           `json:"filename"`
	TotalRows   int              `json:"total_rows"`
	ValidRows   int              `json:"valid_rows"`
	Errors      []string         `json:"errors"`
	Warnings    []string         `json:"warnings"`
	PreviewData []DividendRecord `json:"preview_data"`
}

// PreviewPage is one page of the staged records.
type PreviewPage struct {
	Dividends  []DividendRecord `json:"dividends"`
	TotalRows  int              `json:"total_rows"`
	Errors     []string         `json:"errors"`
	Warnings   []string         `json:"warnings"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}

// CommitResult reports the outcome of a commit attempt. Duplicates is set when the
// commit was blocked waiting for operator confirmation; Errors when it was rolled back.
type CommitResult struct {
	Imported       int                  `json:"imported"`
	Skipped        int                  `json:"skipped"`
	TotalProcessed int                  `json:"total_processed"`
	Errors         []string             `json:"errors,omitempty"`
	Duplicates     []DuplicateCandidate `json:"duplicates,omitempty"`
}

// ImportHistoryEntry is written alongside a successful commit.
type ImportHistoryEntry struct {
	BatchID      string `json:"batch_id"`
	BrokerID     int    `json:"broker_id"`
	FileName     string `json:"filename"`
	TotalRows    int    `json:"total_rows"`
	Imported     int    `json:"imported"`
	Skipped      int    `json:"skipped"`
	WarningCount int    `json:"warning_count"`
}

// BrokerInfo is the operator-facing view of a registered broker format.
type BrokerInfo struct {
	ID   int    `json:"broker_id"`
	Name string `json:"broker_name"`
}
