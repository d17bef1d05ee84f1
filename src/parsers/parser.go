package parsers

import (
	"fmt"
	"io"

	"github.com/username/dividendlog/backend/src/parsers/brokers"
	"github.com/username/dividendlog/backend/src/parsers/dividend"
	"github.com/username/dividendlog/backend/src/processors"
	"github.com/username/dividendlog/backend/src/security/validation"
)

// Parser reads one uploaded file into dividend records.
type Parser interface {
	Parse(r io.Reader, cfg brokers.FormatConfig) (*dividend.Result, error)
}

type csvParser struct{ p *dividend.Parser }

func (c csvParser) Parse(r io.Reader, cfg brokers.FormatConfig) (*dividend.Result, error) {
	return c.p.ParseCSV(r, cfg)
}

type xlsxParser struct{ p *dividend.Parser }

func (x xlsxParser) Parse(r io.Reader, cfg brokers.FormatConfig) (*dividend.Result, error) {
	return x.p.ParseXLSX(r, cfg)
}

// GetParser returns the parser for a file extension such as "csv" or "xlsx".
func GetParser(ext string) (Parser, error) {
	p := dividend.NewParser(processors.NewDividendProcessor())
	switch ext {
	case validation.ExtCSV:
		return csvParser{p: p}, nil
	case validation.ExtXLSX:
		return xlsxParser{p: p}, nil
	default:
		return nil, fmt.Errorf("no parser available for file type: %s", ext)
	}
}
