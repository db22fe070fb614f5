// Package fetcher downloads webhook responses and decodes them into
// opportunity records, whether the body is JSON in one of several shapes or
// raw CSV text.
package fetcher

import (
	"strings"

	"github.com/sells-group/bidscout/internal/model"
)

// ParseOpportunityCSV converts delimited text whose first line is a header
// row into one record per data row, in input order. Empty and "null" cells,
// and cells missing from short rows, become model.Unknown. Fewer than two
// non-blank lines yields no records. It never fails.
func ParseOpportunityCSV(text string) []model.Opportunity {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		return []model.Opportunity{}
	}

	headers := strings.Split(lines[0], ",")
	for i, h := range headers {
		headers[i] = stripQuotes(strings.TrimSpace(h))
	}

	out := make([]model.Opportunity, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := SplitCSVLine(line)
		rec := make(model.Opportunity, len(headers))
		for i, h := range headers {
			if i >= len(fields) {
				rec[h] = model.Unknown
				continue
			}
			rec[h] = normalizeField(fields[i])
		}
		out = append(out, rec)
	}
	return out
}

// SplitCSVLine splits one data row on commas that are outside double
// quotes. Quote characters are not kept; a doubled quote inside a quoted
// field produces one literal quote.
func SplitCSVLine(line string) []string {
	var (
		fields  []string
		cur     strings.Builder
		inQuote bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"' && inQuote && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteRune('"')
			i++
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	return append(fields, cur.String())
}

// normalizeField trims a raw cell and maps empty or "null" to model.Unknown.
func normalizeField(raw string) any {
	v := stripQuotes(strings.TrimSpace(raw))
	if model.IsUnknown(v) {
		return model.Unknown
	}
	return v
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
