package fetcher

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/bidscout/internal/model"
)

// Format identifies how a webhook body was decoded.
type Format string

const (
	FormatEmpty Format = "empty"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatText  Format = "text"
)

// ExtractionPaths are tried in order for the opportunity array. An empty
// path means the document root.
var ExtractionPaths = []string{
	"",
	"opportunities",
	"matches",
	"results",
	"data",
	"data.opportunities",
	"opportunitiesData",
}

// Decoded is the tolerant reading of a webhook response body.
type Decoded struct {
	// Opportunities holds the object elements of the first non-empty array
	// found. Non-object elements are skipped.
	Opportunities []model.Opportunity
	// Found is false when no candidate array exists at all, which callers
	// report differently from an empty result.
	Found bool
	// Format records how the body was interpreted.
	Format Format
	// Path is the extraction path that matched, "" for the root.
	Path string
	// Message carries a top-level "message" string from a JSON body.
	Message string
}

// DecodeResponse reads a webhook body. JSON bodies are searched for an
// opportunity array; other bodies that look like CSV are parsed as CSV.
// Empty or malformed input yields zero opportunities rather than an error.
func DecodeResponse(contentType string, body []byte) Decoded {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Decoded{Format: FormatEmpty}
	}

	if gjson.ValidBytes(trimmed) {
		return ExtractOpportunities(trimmed)
	}

	if strings.Contains(contentType, "json") {
		// Declared JSON but unparseable: degrade to nothing.
		return Decoded{Format: FormatText}
	}

	text := string(trimmed)
	firstLine, _, _ := strings.Cut(text, "\n")
	if strings.Contains(firstLine, ",") {
		ops := ParseOpportunityCSV(text)
		return Decoded{Opportunities: ops, Found: true, Format: FormatCSV}
	}
	return Decoded{Format: FormatText, Message: strings.TrimSpace(firstLine)}
}

// ExtractOpportunities applies ExtractionPaths to a JSON document and
// returns the first non-empty array. If only empty arrays are present the
// result is Found with no records.
func ExtractOpportunities(doc []byte) Decoded {
	root := gjson.ParseBytes(doc)
	out := Decoded{Format: FormatJSON}
	if root.IsObject() {
		if msg := root.Get("message"); msg.Type == gjson.String {
			out.Message = msg.String()
		}
	}

	for _, path := range ExtractionPaths {
		res := root
		if path != "" {
			if !root.IsObject() {
				continue
			}
			res = root.Get(path)
		}
		if !res.IsArray() {
			continue
		}
		elems := res.Array()
		if !out.Found {
			out.Found = true
			out.Path = path
		}
		if len(elems) == 0 {
			continue
		}
		ops := make([]model.Opportunity, 0, len(elems))
		for _, e := range elems {
			if !e.IsObject() {
				continue
			}
			if m, ok := e.Value().(map[string]any); ok {
				ops = append(ops, model.Opportunity(m))
			}
		}
		if len(ops) == 0 {
			continue
		}
		out.Opportunities = ops
		out.Path = path
		return out
	}
	return out
}
