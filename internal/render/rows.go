// Package render turns a search session into terminal tables, export files
// and an HTML fragment.
package render

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/bidscout/internal/filter"
	"github.com/sells-group/bidscout/internal/model"
)

// Row is the flattened, display-ready view of one opportunity. Unknown
// fields are empty strings.
type Row struct {
	Index              int      `csv:"index"`
	Title              string   `csv:"title"`
	SolicitationNumber string   `csv:"solicitation_number"`
	Agency             string   `csv:"agency"`
	Type               string   `csv:"type"`
	NAICS              string   `csv:"naics"`
	PSC                string   `csv:"psc"`
	SetAside           string   `csv:"set_aside"`
	PostedDate         string   `csv:"posted_date"`
	ResponseDeadline   string   `csv:"response_deadline"`
	AwardAmount        string   `csv:"award_amount"`
	Zip                string   `csv:"zip"`
	Link               string   `csv:"link"`
	Description        string   `csv:"-"`
	MatchScore         string   `csv:"-"`
	DaysUntilDue       string   `csv:"-"`
	Amount             *float64 `csv:"-"`
}

// Rows flattens opportunities through schema.
func Rows(ops []model.Opportunity, schema model.Schema) []Row {
	schema = schema.Complete()
	out := make([]Row, len(ops))
	for i, op := range ops {
		r := Row{
			Index:              i + 1,
			Title:              text(op, schema.Title),
			SolicitationNumber: text(op, schema.SolicitationNumber),
			Agency:             text(op, schema.Agency),
			Type:               text(op, schema.Type),
			NAICS:              list(op, schema.NAICS),
			PSC:                text(op, schema.PSC),
			SetAside:           text(op, schema.SetAside),
			PostedDate:         text(op, schema.PostedDate),
			ResponseDeadline:   text(op, schema.ResponseDeadline),
			AwardAmount:        text(op, schema.AwardAmount),
			Zip:                text(op, schema.Zip),
			Link:               text(op, schema.Link),
			Description:        text(op, schema.Description),
			MatchScore:         text(op, schema.MatchScore),
			DaysUntilDue:       text(op, schema.DaysUntilDue),
		}
		if v, ok := op.NumberOf(schema.AwardAmount...); ok {
			r.Amount = &v
		}
		out[i] = r
	}
	return out
}

func text(op model.Opportunity, keys []string) string {
	s, _ := op.TextOf(keys...)
	return s
}

// list reads a field that may be a JSON array of codes.
func list(op model.Opportunity, keys []string) string {
	key, ok := op.Lookup(keys...)
	if !ok {
		return ""
	}
	items, isList := op[key].([]any)
	if !isList {
		return text(op, []string{key})
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := (model.Opportunity{"v": item}).Text("v"); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

var printer = message.NewPrinter(language.English)

// Money formats an amount as whole dollars with thousands separators.
func Money(v float64) string {
	return printer.Sprintf("$%d", int64(math.Round(v)))
}

// DaysLeft returns whole days from now until the row's deadline. ok is
// false when the deadline is unknown or unparseable.
func (r Row) DaysLeft(now time.Time) (int, bool) {
	due, ok := filter.ParseDeadline(r.ResponseDeadline)
	if !ok {
		return 0, false
	}
	return int(math.Floor(due.Sub(now).Hours() / 24)), true
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
