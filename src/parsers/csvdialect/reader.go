// Package csvdialect reads delimited text files whose quote and escape
// characters are configurable per broker.
package csvdialect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// Reader splits its input into records. A zero Quote disables quoting and a
// zero Escape disables escaping.
type Reader struct {
	Comma  rune
	Quote  rune
	Escape rune

	r      *bufio.Reader
	record int
}

func NewReader(r io.Reader, comma, quote, escape rune) *Reader {
	return &Reader{Comma: comma, Quote: quote, Escape: escape, r: bufio.NewReader(r)}
}

// Record returns the 1-based index of the last record returned by Read.
func (r *Reader) Record() int { return r.record }

// Read returns the next record. Inside a quoted field a doubled quote and an
// escaped quote both yield one literal quote, and line breaks are kept.
// Read returns io.EOF when no input remains.
func (r *Reader) Read() ([]string, error) {
	var (
		fields     []string
		field      strings.Builder
		inQuotes   bool
		fieldStart = true
		sawInput   bool
	)

	finish := func() []string {
		return append(fields, field.String())
	}

	for {
		ch, _, err := r.r.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if inQuotes {
				return nil, fmt.Errorf("record %d: %w", r.record+1, ErrUnterminatedQuote)
			}
			if !sawInput {
				return nil, io.EOF
			}
			r.record++
			return finish(), nil
		}
		sawInput = true

		if inQuotes {
			switch {
			case r.Escape != 0 && r.Escape != r.Quote && ch == r.Escape:
				if r.peekIs(r.Quote) {
					r.r.ReadRune()
					field.WriteRune(r.Quote)
				} else {
					field.WriteRune(ch)
				}
			case ch == r.Quote:
				if r.peekIs(r.Quote) {
					r.r.ReadRune()
					field.WriteRune(r.Quote)
				} else {
					inQuotes = false
				}
			default:
				field.WriteRune(ch)
			}
			continue
		}

		switch {
		case ch == r.Comma:
			fields = append(fields, field.String())
			field.Reset()
			fieldStart = true
			continue
		case r.Quote != 0 && ch == r.Quote && fieldStart:
			inQuotes = true
		case ch == '\r':
			if r.peekIs('\n') {
				r.r.ReadRune()
			}
			r.record++
			return finish(), nil
		case ch == '\n':
			r.record++
			return finish(), nil
		default:
			field.WriteRune(ch)
		}
		fieldStart = false
	}
}

func (r *Reader) peekIs(want rune) bool {
	next, _, err := r.r.ReadRune()
	if err != nil {
		return false
	}
	r.r.UnreadRune()
	return next == want
}

// IsBlank reports whether every cell of the record is empty after trimming.
func IsBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// NewDecodingReader converts input in the named charset to UTF-8 and drops a
// leading byte order mark. An empty name means UTF-8.
func NewDecodingReader(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", charset, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
