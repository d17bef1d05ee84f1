package brokers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/dividendlog/backend/src/models"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	list := r.List()
	require.Len(t, list, 5)
	for i, c := range list {
		assert.Equal(t, i+1, c.BrokerID)
	}

	b2, err := r.GetFormatConfig(2)
	require.NoError(t, err)
	assert.Equal(t, ';', b2.DelimiterRune())
	assert.Equal(t, ",", b2.DecimalSeparator)
	assert.Equal(t, " ", b2.ThousandsSeparator)
	assert.Equal(t, "d/m/Y", b2.DateFormat)

	b3, err := r.GetFormatConfig(3)
	require.NoError(t, err)
	assert.Equal(t, 2, b3.Dialect.SkipHeaderRows)

	b4, err := r.GetFormatConfig(4)
	require.NoError(t, err)
	assert.Equal(t, '\t', b4.DelimiterRune())
}

func TestGetFormatConfig_UnknownBroker(t *testing.T) {
	_, err := DefaultRegistry().GetFormatConfig(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetFormatConfig_ReturnsCopy(t *testing.T) {
	r := DefaultRegistry()
	c, err := r.GetFormatConfig(1)
	require.NoError(t, err)

	c.ColumnMapping[models.FieldISIN] = "changed"
	c.RequiredFields[0] = "changed"

	again, err := r.GetFormatConfig(1)
	require.NoError(t, err)
	assert.Equal(t, "ISIN", again.ColumnMapping[models.FieldISIN])
	assert.Equal(t, models.FieldPaymentDate, again.RequiredFields[0])
}

func TestNewStaticRegistry_Rejects(t *testing.T) {
	valid := DefaultFormats()[0]

	tests := []struct {
		name   string
		mutate func(c *FormatConfig)
	}{
		{"required field not mapped", func(c *FormatConfig) {
			c.ColumnMapping = map[string]string{models.FieldISIN: "ISIN"}
		}},
		{"unknown mapping key", func(c *FormatConfig) {
			c.ColumnMapping = map[string]string{"dividend_type_id": "Type"}
			c.RequiredFields = nil
		}},
		{"multi-character delimiter", func(c *FormatConfig) { c.Dialect.Delimiter = ";;" }},
		{"empty delimiter", func(c *FormatConfig) { c.Dialect.Delimiter = "" }},
		{"quote equals delimiter", func(c *FormatConfig) { c.Dialect.Quote = "," }},
		{"negative skip", func(c *FormatConfig) { c.Dialect.SkipHeaderRows = -1 }},
		{"missing date format", func(c *FormatConfig) { c.DateFormat = " " }},
		{"same separators", func(c *FormatConfig) { c.ThousandsSeparator = "." }},
		{"zero broker id", func(c *FormatConfig) { c.BrokerID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid.clone()
			tt.mutate(&c)
			_, err := NewStaticRegistry(c)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := NewStaticRegistry(valid, valid)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile(t *testing.T) {
	yamlDoc := `
brokers:
  - broker_id: 7
    name: Nordnet
    csv_format:
      delimiter: ";"
      quote: '"'
      escape: '\'
      skip_header_rows: 0
      encoding: windows-1252
    date_format: Y-m-d
    decimal_separator: ","
    thousand_separator: " "
    column_mapping:
      payment_date: Betalningsdag
      isin: ISIN
      shares_held: Antal
      dividend_amount_local: Belopp
    required_columns: [payment_date, isin, shares_held]
`
	path := filepath.Join(t.TempDir(), "brokers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)

	c, err := r.GetFormatConfig(7)
	require.NoError(t, err)
	assert.Equal(t, "Nordnet", c.Name)
	assert.Equal(t, "windows-1252", c.Dialect.Encoding)
	assert.Equal(t, '\\', c.EscapeRune())
	assert.Equal(t, "Betalningsdag", c.ColumnMapping[models.FieldPaymentDate])
	assert.Equal(t, []string{"payment_date", "isin", "shares_held"}, c.RequiredFields)
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := Parse([]byte("brokers: []\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("brokers: [not-a-map\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
