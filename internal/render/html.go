package render

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bidscout/internal/search"
)

var resultsTmpl = template.Must(template.New("results").Parse(`<div class="results">
  <p class="summary">{{.Message}}</p>
{{- range .Items}}
  <div class="opportunity">
    <strong>{{.Index}}. {{.Title}}</strong>
    {{- if .Score}}
    <span class="score">Score: {{.Score}}</span>
    {{- end}}
    {{- if .Meta}}
    <div class="meta">{{.Meta}}</div>
    {{- end}}
    {{- if .Description}}
    <div class="description">{{.Description}}</div>
    {{- end}}
    {{- if .Link}}
    <a href="{{.Link}}" rel="noopener noreferrer" target="_blank">View listing</a>
    {{- end}}
  </div>
{{- end}}
</div>
`))

type htmlItem struct {
	Index       int
	Title       string
	Score       string
	Meta        string
	Description template.HTML
	Link        string
}

// HTML writes the snapshot as an HTML fragment. Descriptions arrive as
// upstream HTML and are sanitized; everything else is escaped.
func HTML(w io.Writer, snap search.Snapshot, now time.Time) error {
	policy := bluemonday.UGCPolicy()
	rows := Rows(snap.Opportunities, snap.Schema)

	items := make([]htmlItem, len(rows))
	for i, r := range rows {
		title := r.Title
		if title == "" {
			title = "Untitled Opportunity"
		}
		items[i] = htmlItem{
			Index:       r.Index,
			Title:       title,
			Score:       r.MatchScore,
			Meta:        meta(r, now),
			Description: template.HTML(policy.Sanitize(r.Description)), //nolint:gosec // bluemonday output
			Link:        r.Link,
		}
	}

	err := resultsTmpl.Execute(w, struct {
		Message string
		Items   []htmlItem
	}{Message: Message(snap), Items: items})
	return eris.Wrap(err, "render: execute html template")
}

func meta(r Row, now time.Time) string {
	var parts []string
	if r.SolicitationNumber != "" {
		parts = append(parts, "ID: "+r.SolicitationNumber)
	}
	switch d, ok := r.DaysLeft(now); {
	case r.DaysUntilDue != "":
		parts = append(parts, r.DaysUntilDue+" days remaining")
	case ok && d >= 0:
		parts = append(parts, fmt.Sprintf("%d days remaining", d))
	}
	if r.Amount != nil {
		parts = append(parts, Money(*r.Amount))
	}
	return strings.Join(parts, " | ")
}
