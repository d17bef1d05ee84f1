package brokers

import "github.com/username/dividendlog/backend/src/models"

var defaultRequired = []string{
	models.FieldPaymentDate,
	models.FieldISIN,
	models.FieldSharesHeld,
	models.FieldDividendAmountLocal,
}

// DefaultFormats are the built-in broker export formats.
func DefaultFormats() []FormatConfig {
	return []FormatConfig{
		{
			BrokerID:           1,
			Name:               "Broker 1",
			Dialect:            Dialect{Delimiter: ",", Quote: `"`, Escape: `\`, SkipHeaderRows: 1, Encoding: "UTF-8"},
			DateFormat:         "Y-m-d",
			DecimalSeparator:   ".",
			ThousandsSeparator: "",
			ColumnMapping: map[string]string{
				models.FieldPaymentDate:         "Payment Date",
				models.FieldISIN:                "ISIN",
				models.FieldTicker:              "Symbol",
				models.FieldSharesHeld:          "Shares",
				models.FieldDividendAmountLocal: "Dividend Amount",
				models.FieldTaxAmountLocal:      "Tax Amount",
				models.FieldCurrencyLocal:       "Currency",
				models.FieldDividendAmountSEK:   "Dividend SEK",
				models.FieldTaxAmountSEK:        "Tax SEK",
				models.FieldNetDividendSEK:      "Net SEK",
				models.FieldExchangeRateUsed:    "FX Rate",
			},
			RequiredFields: defaultRequired,
		},
		{
			BrokerID:           2,
			Name:               "Broker 2",
			Dialect:            Dialect{Delimiter: ";", Quote: `"`, Escape: `\`, SkipHeaderRows: 1, Encoding: "UTF-8"},
			DateFormat:         "d/m/Y",
			DecimalSeparator:   ",",
			ThousandsSeparator: " ",
			ColumnMapping: map[string]string{
				models.FieldPaymentDate:         "Ex-Date",
				models.FieldISIN:                "ISIN Code",
				models.FieldTicker:              "Ticker",
				models.FieldSharesHeld:          "Quantity",
				models.FieldDividendAmountLocal: "Gross Amount",
				models.FieldTaxAmountLocal:      "Withholding Tax",
				models.FieldCurrencyLocal:       "Currency",
				models.FieldDividendAmountSEK:   "Gross SEK",
				models.FieldTaxAmountSEK:        "Tax SEK",
				models.FieldNetDividendSEK:      "Net Amount SEK",
				models.FieldExchangeRateUsed:    "Exchange Rate",
			},
			RequiredFields: defaultRequired,
		},
		{
			BrokerID:           3,
			Name:               "Broker 3",
			Dialect:            Dialect{Delimiter: ",", Quote: `"`, Escape: `\`, SkipHeaderRows: 2, Encoding: "UTF-8"},
			DateFormat:         "m/d/Y",
			DecimalSeparator:   ".",
			ThousandsSeparator: ",",
			ColumnMapping: map[string]string{
				models.FieldPaymentDate:         "Date",
				models.FieldISIN:                "ISIN",
				models.FieldTicker:              "Symbol",
				models.FieldSharesHeld:          "Shares",
				models.FieldDividendAmountLocal: "Amount",
				models.FieldTaxAmountLocal:      "Tax",
				models.FieldCurrencyLocal:       "Curr",
				models.FieldDividendAmountSEK:   "Amount SEK",
				models.FieldTaxAmountSEK:        "Tax SEK",
				models.FieldNetDividendSEK:      "Net SEK",
				models.FieldExchangeRateUsed:    "Rate",
			},
			RequiredFields: defaultRequired,
		},
		{
			BrokerID:           4,
			Name:               "Broker 4",
			Dialect:            Dialect{Delimiter: "\t", Quote: `"`, Escape: `\`, SkipHeaderRows: 1, Encoding: "UTF-8"},
			DateFormat:         "Y-m-d",
			DecimalSeparator:   ".",
			ThousandsSeparator: "",
			ColumnMapping: map[string]string{
				models.FieldPaymentDate:         "PaymentDate",
				models.FieldISIN:                "ISIN",
				models.FieldTicker:              "Symbol",
				models.FieldSharesHeld:          "SharesHeld",
				models.FieldDividendAmountLocal: "DividendLocal",
				models.FieldTaxAmountLocal:      "TaxLocal",
				models.FieldCurrencyLocal:       "Currency",
				models.FieldDividendAmountSEK:   "DividendSEK",
				models.FieldTaxAmountSEK:        "TaxSEK",
				models.FieldNetDividendSEK:      "NetSEK",
				models.FieldExchangeRateUsed:    "FXRate",
			},
			RequiredFields: defaultRequired,
		},
		{
			BrokerID:           5,
			Name:               "Broker 5",
			Dialect:            Dialect{Delimiter: ",", Quote: `"`, Escape: `\`, SkipHeaderRows: 1, Encoding: "UTF-8"},
			DateFormat:         "d-m-Y",
			DecimalSeparator:   ".",
			ThousandsSeparator: "",
			ColumnMapping: map[string]string{
				models.FieldPaymentDate:         "Payment_Date",
				models.FieldISIN:                "ISIN_Code",
				models.FieldTicker:              "Ticker_Symbol",
				models.FieldSharesHeld:          "Shares_Quantity",
				models.FieldDividendAmountLocal: "Dividend_Amount_Local",
				models.FieldTaxAmountLocal:      "Tax_Amount_Local",
				models.FieldCurrencyLocal:       "Local_Currency",
				models.FieldDividendAmountSEK:   "Dividend_Amount_SEK",
				models.FieldTaxAmountSEK:        "Tax_Amount_SEK",
				models.FieldNetDividendSEK:      "Net_Dividend_SEK",
				models.FieldExchangeRateUsed:    "Exchange_Rate",
			},
			RequiredFields: defaultRequired,
		},
	}
}

// DefaultRegistry returns a registry holding DefaultFormats.
func DefaultRegistry() *StaticRegistry {
	r, err := NewStaticRegistry(DefaultFormats()...)
	if err != nil {
		panic("built-in broker formats are invalid: " + err.Error())
	}
	return r
}
