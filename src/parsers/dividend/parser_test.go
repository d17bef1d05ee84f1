package dividend

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/username/dividendlog/backend/src/models"
	"github.com/username/dividendlog/backend/src/parsers/brokers"
	"github.com/username/dividendlog/backend/src/processors"
)

func newTestParser() *Parser {
	return NewParser(processors.NewDividendProcessor())
}

// simpleConfig maps a compact eight-column layout: date, ISIN, shares, gross,
// tax, currency, gross SEK, tax SEK.
func simpleConfig() brokers.FormatConfig {
	return brokers.FormatConfig{
		BrokerID:         1,
		Name:             "Test",
		Dialect:          brokers.Dialect{Delimiter: ",", Quote: `"`, Escape: `\`},
		DateFormat:       "Y-m-d",
		DecimalSeparator: ".",
		ColumnMapping: map[string]string{
			models.FieldPaymentDate:         "Date",
			models.FieldISIN:                "ISIN",
			models.FieldSharesHeld:          "Shares",
			models.FieldDividendAmountLocal: "Gross",
			models.FieldTaxAmountLocal:      "Tax",
			models.FieldCurrencyLocal:       "Currency",
			models.FieldDividendAmountSEK:   "GrossSEK",
			models.FieldTaxAmountSEK:        "TaxSEK",
		},
		RequiredFields: []string{models.FieldPaymentDate, models.FieldISIN, models.FieldSharesHeld},
	}
}

const simpleHeader = "Date,ISIN,Shares,Gross,Tax,Currency,GrossSEK,TaxSEK\n"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected %s, got null", want)
	assert.True(t, got.Decimal.Equal(dec(want)), "expected %s, got %s", want, got.Decimal)
}

func TestParseCSV_CompleteRow(t *testing.T) {
	input := simpleHeader + `"2024-03-15","US0378331005",100,"25.00","3.75","USD","270.00","40.50"` + "\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.TotalRows)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "2024-03-15", rec.PaymentDate)
	assert.Equal(t, "US0378331005", rec.ISIN)
	assert.True(t, rec.SharesHeld.Equal(dec("100")))
	assert.Equal(t, "USD", rec.CurrencyLocal)
	assertDecimal(t, "15", rec.TaxRatePercent)
	assertDecimal(t, "229.50", rec.NetDividendSEK)
	assertDecimal(t, "10.8", rec.ExchangeRateUsed)
	assert.True(t, rec.IsComplete)
	assert.Empty(t, rec.IncompleteFields)
	assert.Equal(t, 2, rec.SourceRow)
	assert.Equal(t, 1, rec.BrokerID)
}

func TestParseCSV_SettlementColumnsUnmapped(t *testing.T) {
	cfg := simpleConfig()
	delete(cfg.ColumnMapping, models.FieldDividendAmountSEK)
	delete(cfg.ColumnMapping, models.FieldTaxAmountSEK)
	input := simpleHeader + `"2024-03-15","US0378331005",100,"25.00","3.75","USD","270.00","40.50"` + "\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), cfg)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.False(t, rec.IsComplete)
	assert.Equal(t, []string{"dividend_amount_sek", "tax_amount_sek", "net_dividend_sek"}, rec.IncompleteFields)
	assert.Equal(t, []string{"Row 2: Incomplete data - missing: dividend_amount_sek, tax_amount_sek, net_dividend_sek"}, res.Warnings)
}

func TestParseCSV_InvalidDate(t *testing.T) {
	input := simpleHeader + `"not-a-date","US0378331005",100,"25.00","3.75","USD","270.00","40.50"` + "\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)

	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.TotalRows)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Row 2: Invalid date format"), res.Errors[0])
	assert.Contains(t, res.Errors[0], "not-a-date")
}

func TestParseCSV_ShortISINIsWarning(t *testing.T) {
	input := simpleHeader + "2024-03-15,us037833100,10,1,0,USD,10,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "US037833100", res.Records[0].ISIN)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"Row 2: ISIN length is not 12 characters: US037833100"}, res.Warnings)
}

func TestParseCSV_MissingRequiredData(t *testing.T) {
	input := simpleHeader +
		"2024-03-15,US0378331005,10,1,0,USD,10,0\n" +
		"2024-03-15,,10,1,0,USD,10,0\n" +
		",US0378331005,,1,0,USD,10,0\n" +
		"2024-03-16,US0378331005,0,1,0,USD,10,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)

	assert.Len(t, res.Records, 1)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, []string{
		"Row 3: Missing required data in row: isin",
		"Row 4: Missing required data in row: payment_date, shares_held",
		"Row 5: Missing required data in row: shares_held",
	}, res.Errors)
}

func TestParseCSV_InvalidNumber(t *testing.T) {
	input := simpleHeader + "2024-03-15,US0378331005,abc,1,0,USD,10,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, []string{"Row 2: Invalid numeric value for shares_held: abc"}, res.Errors)
}

func TestParseCSV_BlankRowsSkipped(t *testing.T) {
	input := simpleHeader +
		"2024-03-15,US0378331005,10,1,0,USD,10,0\n" +
		"\n" +
		",,,,,,,\n" +
		"bad,US0378331005,10,1,0,USD,10,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRows)
	assert.Len(t, res.Records, 1)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Row 5: "), res.Errors[0])
}

func TestParseCSV_Deterministic(t *testing.T) {
	input := simpleHeader +
		"2024-03-15,US03783310,10,1,0,EURO,,\n" +
		"2024-13-15,US0378331005,10,1,0,USD,10,0\n" +
		"2024-03-17,SE0000108656,5,2,0.3,SEK,2,0.3\n"

	p := newTestParser()
	first, err := p.ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)
	second, err := p.ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{
		"Row 2: ISIN length is not 12 characters: US03783310",
		"Row 2: Currency code length is not 3 characters: EURO",
		"Row 2: Incomplete data - missing: dividend_amount_sek, tax_amount_sek, net_dividend_sek",
	}, first.Warnings)
}

func TestParseCSV_MissingRequiredColumn(t *testing.T) {
	input := "Date,Shares,Gross\n2024-03-15,10,1\n"

	_, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.ErrorIs(t, err, ErrMissingRequiredColumns)
	assert.Contains(t, err.Error(), "isin")
}

func TestParseCSV_EmptyFile(t *testing.T) {
	_, err := newTestParser().ParseCSV(strings.NewReader(""), simpleConfig())
	assert.ErrorIs(t, err, ErrMissingHeader)

	cfg := simpleConfig()
	cfg.Dialect.SkipHeaderRows = 3
	_, err = newTestParser().ParseCSV(strings.NewReader("only one line\n"), cfg)
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestParseCSV_HeaderWithBOMAndPadding(t *testing.T) {
	input := "\xEF\xBB\xBF Date , ISIN ,Shares,Gross,Tax,Currency,GrossSEK,TaxSEK\n2024-03-15,US0378331005,10,1,0,USD,10,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), simpleConfig())
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
}

func TestParseCSV_UnsafeTicker(t *testing.T) {
	cfg := simpleConfig()
	cfg.ColumnMapping[models.FieldTicker] = "Ticker"
	input := "Date,ISIN,Ticker,Shares,Gross,Tax,Currency,GrossSEK,TaxSEK\n" +
		"2024-03-15,US0378331005,<script>x</script>AAPL,10,1,0,USD,10,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), cfg)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "AAPL", res.Records[0].Ticker)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "Row 2: ticker was sanitized"))
}

func TestParseCSV_Broker2Dialect(t *testing.T) {
	cfg, err := brokers.DefaultRegistry().GetFormatConfig(2)
	require.NoError(t, err)

	input := "Utdelningar 2024\n" +
		"Ex-Date;ISIN Code;Ticker;Quantity;Gross Amount;Withholding Tax;Currency;Gross SEK;Tax SEK;Net Amount SEK;Exchange Rate\n" +
		"15/03/2024;SE0000108656;ERIC B;1 000;2,50;0,75;SEK;2 500,00;750,00;1 750,00;1,0\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), cfg)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, 2, rec.BrokerID)
	assert.Equal(t, 3, rec.SourceRow)
	assert.Equal(t, "2024-03-15", rec.PaymentDate)
	assert.Equal(t, "ERIC B", rec.Ticker)
	assert.True(t, rec.SharesHeld.Equal(dec("1000")))
	assertDecimal(t, "2.5", rec.DividendAmountLocal)
	assertDecimal(t, "2500", rec.DividendAmountSEK)
	assertDecimal(t, "1750", rec.NetDividendSEK)
	assertDecimal(t, "1", rec.ExchangeRateUsed)
	assertDecimal(t, "30", rec.TaxRatePercent)
	assert.True(t, rec.IsComplete)
}

func TestParseCSV_Broker3SkipsTwoRowsAndThousands(t *testing.T) {
	cfg, err := brokers.DefaultRegistry().GetFormatConfig(3)
	require.NoError(t, err)

	input := "Account statement\n" +
		"Generated 2024-04-01\n" +
		"Date,ISIN,Symbol,Shares,Amount,Tax,Curr,Amount SEK,Tax SEK,Net SEK,Rate\n" +
		`03/15/2024,US0378331005,AAPL,"1,200",288.00,43.20,USD,"3,110.40",466.56,,` + "\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), cfg)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, 4, rec.SourceRow)
	assert.True(t, rec.SharesHeld.Equal(dec("1200")))
	assertDecimal(t, "3110.40", rec.DividendAmountSEK)
	assertDecimal(t, "2643.84", rec.NetDividendSEK)
	assertDecimal(t, "10.8", rec.ExchangeRateUsed)
}

func TestParseCSV_Broker4Tabs(t *testing.T) {
	cfg, err := brokers.DefaultRegistry().GetFormatConfig(4)
	require.NoError(t, err)

	input := "export\n" +
		"PaymentDate\tISIN\tSymbol\tSharesHeld\tDividendLocal\tTaxLocal\tCurrency\tDividendSEK\tTaxSEK\tNetSEK\tFXRate\n" +
		"2024-06-01\tDE0007164600\tSAP\t20\t44.00\t11.60\tEUR\t501.60\t132.24\t369.36\t11.4\n"

	res, err := newTestParser().ParseCSV(strings.NewReader(input), cfg)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "DE0007164600", res.Records[0].ISIN)
	assertDecimal(t, "369.36", res.Records[0].NetDividendSEK)
	assertDecimal(t, "11.4", res.Records[0].ExchangeRateUsed)
}

func TestParseXLSX(t *testing.T) {
	cfg, err := brokers.DefaultRegistry().GetFormatConfig(1)
	require.NoError(t, err)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Dividend report"},
		{"Payment Date", "ISIN", "Symbol", "Shares", "Dividend Amount", "Tax Amount", "Currency", "Dividend SEK", "Tax SEK", "Net SEK", "FX Rate"},
		{"2024-03-15", "US0378331005", "AAPL", "100", "25.00", "3.75", "USD", "270.00", "40.50", "", ""},
		{"2024-03-15", "", "MSFT", "10", "7.50", "1.12", "USD", "81.00", "12.10", "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := newTestParser().ParseXLSX(bytes.NewReader(buf.Bytes()), cfg)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 3, res.Records[0].SourceRow)
	assertDecimal(t, "229.50", res.Records[0].NetDividendSEK)
	assert.Equal(t, []string{"Row 4: Missing required data in row: isin"}, res.Errors)
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := newTestParser().ParseXLSX(strings.NewReader("a,b,c"), simpleConfig())
	assert.Error(t, err)
}

func TestDateLayout(t *testing.T) {
	tests := []struct {
		format, value, want string
	}{
		{"Y-m-d", "2024-03-15", "2024-03-15"},
		{"d/m/Y", "15/03/2024", "2024-03-15"},
		{"m/d/Y", "3/5/2024", "2024-03-05"},
		{"d-m-Y", "01-12-2023", "2023-12-01"},
		{"d.m.y", "01.12.23", "2023-12-01"},
		{"j M Y", "5 Mar 2024", "2024-03-05"},
		{"02/01/2006", "15/03/2024", "2024-03-15"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := parseDate(tt.value, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseDate("2024-02-30", "Y-m-d")
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		value, dec, thou, want string
	}{
		{"1,234.50", ".", ",", "1234.5"},
		{"1 234,50", ",", " ", "1234.5"},
		{"1.234,50", ",", ".", "1234.5"},
		{"$ 25.00", ".", "", "25"},
		{"-3.75", ".", "", "-3.75"},
		{"1 000 SEK", ".", "", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseNumber(tt.value, tt.dec, tt.thou)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), got.String())
		})
	}

	_, err := parseNumber("n/a", ".", "")
	assert.Error(t, err)
	_, err = parseNumber("1.2.3", ".", "")
	assert.Error(t, err)
}
