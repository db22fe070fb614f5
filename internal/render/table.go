package render

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/bidscout/internal/model"
)

const titleWidth = 60

// Table writes the opportunities as a terminal table.
func Table(w io.Writer, rows []Row, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Solicitation", "NAICS", "Set-Aside", "Deadline", "Days", "Value", "Zip"})

	for _, r := range rows {
		days := "-"
		if d, ok := r.DaysLeft(now); ok {
			days = strconv.Itoa(d)
		}
		value := "-"
		if r.Amount != nil {
			value = Money(*r.Amount)
		}
		t.AppendRow(table.Row{
			r.Index,
			truncate(orDash(r.Title), titleWidth),
			orDash(r.SolicitationNumber),
			orDash(r.NAICS),
			orDash(r.SetAside),
			orDash(r.ResponseDeadline),
			days,
			value,
			orDash(r.Zip),
		})
	}
	t.Render()
}

// HistoryTable writes a user's saved searches, newest first.
func HistoryTable(w io.Writer, entries []model.HistoryEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Label", "Results", "Saved"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.ID, e.Label, len(e.Opportunities), e.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	t.Render()
}
