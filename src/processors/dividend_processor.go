package processors

import (
	"github.com/shopspring/decimal"

	"github.com/username/dividendlog/backend/src/models"
)

var hundred = decimal.NewFromInt(100)

// dividendProcessorImpl implements the DividendProcessor interface.
type dividendProcessorImpl struct{}

// NewDividendProcessor creates a new instance of DividendProcessor.
func NewDividendProcessor() DividendProcessor {
	return &dividendProcessorImpl{}
}

// Enrich fills the derived amounts and sets the completeness flags. It returns
// the names of the settlement fields that are still missing.
func (p *dividendProcessorImpl) Enrich(rec *models.DividendRecord) []string {
	p.DeriveFields(rec)
	missing := p.MissingSettlementFields(*rec)
	rec.IsComplete = len(missing) == 0
	rec.IncompleteFields = missing
	return missing
}

// DeriveFields computes values the file did not supply. Each value is derived
// only when its inputs are present and it is not already set.
func (p *dividendProcessorImpl) DeriveFields(rec *models.DividendRecord) {
	gross := rec.DividendAmountLocal
	tax := rec.TaxAmountLocal

	// 1. Withholding tax rate in percent.
	if !rec.TaxRatePercent.Valid && gross.Valid && tax.Valid && gross.Decimal.IsPositive() {
		rec.TaxRatePercent = decimal.NewNullDecimal(tax.Decimal.Div(gross.Decimal).Mul(hundred))
	}

	// 2. Net settlement amount.
	if !rec.NetDividendSEK.Valid && rec.DividendAmountSEK.Valid && rec.TaxAmountSEK.Valid {
		rec.NetDividendSEK = decimal.NewNullDecimal(rec.DividendAmountSEK.Decimal.Sub(rec.TaxAmountSEK.Decimal))
	}

	// 3. Implied exchange rate.
	if !rec.ExchangeRateUsed.Valid && gross.Valid && rec.DividendAmountSEK.Valid && gross.Decimal.IsPositive() {
		rec.ExchangeRateUsed = decimal.NewNullDecimal(rec.DividendAmountSEK.Decimal.Div(gross.Decimal))
	}
}

// MissingSettlementFields lists, in a fixed order, the settlement fields that
// make a record incomplete. A non-positive gross settlement counts as missing.
func (p *dividendProcessorImpl) MissingSettlementFields(rec models.DividendRecord) []string {
	var missing []string
	if !rec.DividendAmountSEK.Valid || !rec.DividendAmountSEK.Decimal.IsPositive() {
		missing = append(missing, models.FieldDividendAmountSEK)
	}
	if !rec.TaxAmountSEK.Valid {
		missing = append(missing, models.FieldTaxAmountSEK)
	}
	if !rec.NetDividendSEK.Valid {
		missing = append(missing, models.FieldNetDividendSEK)
	}
	return missing
}
