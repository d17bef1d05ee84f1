package dividend

import (
	"strings"
	"time"
)

// dateLayout converts a broker date format to a Go time layout. Broker formats
// use single-letter tokens (Y, m, d, ...); a format that already contains the
// Go reference year is used as given.
func dateLayout(format string) string {
	if strings.Contains(format, "2006") {
		return format
	}
	var b strings.Builder
	escaped := false
	for _, r := range format {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case 'Y':
			b.WriteString("2006")
		case 'y':
			b.WriteString("06")
		case 'm', 'n':
			b.WriteString("1")
		case 'd', 'j':
			b.WriteString("2")
		case 'M':
			b.WriteString("Jan")
		case 'F':
			b.WriteString("January")
		case 'D':
			b.WriteString("Mon")
		case 'l':
			b.WriteString("Monday")
		case 'H', 'G':
			b.WriteString("15")
		case 'i':
			b.WriteString("04")
		case 's':
			b.WriteString("05")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseDate returns the date in YYYY-MM-DD form.
func parseDate(value, format string) (string, error) {
	t, err := time.Parse(dateLayout(format), value)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
