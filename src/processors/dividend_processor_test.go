package processors

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/dividendlog/backend/src/models"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestEnrich_CompleteRecord(t *testing.T) {
	rec := models.DividendRecord{
		DividendAmountLocal: nd("25.00"),
		TaxAmountLocal:      nd("3.75"),
		DividendAmountSEK:   nd("270.00"),
		TaxAmountSEK:        nd("40.50"),
	}

	missing := NewDividendProcessor().Enrich(&rec)

	assert.Empty(t, missing)
	assert.True(t, rec.IsComplete)
	assert.Empty(t, rec.IncompleteFields)
	require.True(t, rec.TaxRatePercent.Valid)
	assert.True(t, rec.TaxRatePercent.Decimal.Equal(decimal.NewFromInt(15)), rec.TaxRatePercent.Decimal.String())
	assert.True(t, rec.NetDividendSEK.Decimal.Equal(decimal.RequireFromString("229.50")))
	assert.True(t, rec.ExchangeRateUsed.Decimal.Equal(decimal.RequireFromString("10.8")))
}

func TestEnrich_MissingSettlement(t *testing.T) {
	rec := models.DividendRecord{
		DividendAmountLocal: nd("25.00"),
		TaxAmountLocal:      nd("3.75"),
	}

	missing := NewDividendProcessor().Enrich(&rec)

	expected := []string{models.FieldDividendAmountSEK, models.FieldTaxAmountSEK, models.FieldNetDividendSEK}
	assert.Equal(t, expected, missing)
	assert.Equal(t, expected, rec.IncompleteFields)
	assert.False(t, rec.IsComplete)
	assert.False(t, rec.ExchangeRateUsed.Valid)
	assert.True(t, rec.TaxRatePercent.Valid)
}

func TestDeriveFields_KeepsSuppliedValues(t *testing.T) {
	rec := models.DividendRecord{
		DividendAmountLocal: nd("10"),
		DividendAmountSEK:   nd("100"),
		TaxAmountSEK:        nd("15"),
		NetDividendSEK:      nd("80"),
		ExchangeRateUsed:    nd("9.95"),
	}

	NewDividendProcessor().DeriveFields(&rec)

	assert.True(t, rec.NetDividendSEK.Decimal.Equal(decimal.NewFromInt(80)))
	assert.True(t, rec.ExchangeRateUsed.Decimal.Equal(decimal.RequireFromString("9.95")))
	assert.False(t, rec.TaxRatePercent.Valid, "tax local absent")
}

func TestDeriveFields_ZeroGrossSkipsRatios(t *testing.T) {
	rec := models.DividendRecord{
		DividendAmountLocal: nd("0"),
		TaxAmountLocal:      nd("0"),
		DividendAmountSEK:   nd("0"),
		TaxAmountSEK:        nd("0"),
	}

	p := NewDividendProcessor()
	p.DeriveFields(&rec)

	assert.False(t, rec.TaxRatePercent.Valid)
	assert.False(t, rec.ExchangeRateUsed.Valid)
	assert.True(t, rec.NetDividendSEK.Valid)
	assert.Equal(t, []string{models.FieldDividendAmountSEK}, p.MissingSettlementFields(rec))
}

func TestDeriveFields_RoundTripWithinTolerance(t *testing.T) {
	rec := models.DividendRecord{
		DividendAmountLocal: nd("33.33"),
		TaxAmountLocal:      nd("4.9995"),
		DividendAmountSEK:   nd("351.7"),
		TaxAmountSEK:        nd("52.755"),
	}
	NewDividendProcessor().DeriveFields(&rec)

	rate, _ := rec.TaxRatePercent.Decimal.Float64()
	assert.InDelta(t, 4.9995/33.33*100, rate, 1e-6)
	net, _ := rec.NetDividendSEK.Decimal.Float64()
	assert.InDelta(t, 351.7-52.755, net, 1e-6)
	fx, _ := rec.ExchangeRateUsed.Decimal.Float64()
	assert.InDelta(t, 351.7/33.33, fx, 1e-6)
}
