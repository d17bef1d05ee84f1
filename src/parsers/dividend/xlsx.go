package dividend

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/username/dividendlog/backend/src/parsers/brokers"
)

// sheetRows replays the rows of a worksheet through the RowReader interface.
type sheetRows struct {
	rows [][]string
	next int
}

func (s *sheetRows) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

// ParseXLSX reads the first worksheet of a workbook. The dialect's delimiter,
// quote and charset do not apply; header skipping and column mapping do.
func (p *Parser) ParseXLSX(r io.Reader, cfg brokers.FormatConfig) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: no sheets found in Excel file", ErrMissingHeader)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return p.ParseRows(&sheetRows{rows: rows}, cfg)
}
