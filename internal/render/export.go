package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bidscout/internal/search"
)

// Format names an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatHTML  Format = "html"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatCSV, FormatXLSX, FormatHTML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", eris.Errorf("render: unknown format %q (want table, json, csv, xlsx or html)", s)
}

// Write renders the snapshot in the given format.
func Write(w io.Writer, f Format, snap search.Snapshot, now time.Time) error {
	rows := Rows(snap.Opportunities, snap.Schema)
	switch f {
	case FormatTable, "":
		if _, err := fmt.Fprintln(w, Message(snap)); err != nil {
			return eris.Wrap(err, "render: write message")
		}
		if len(rows) > 0 {
			Table(w, rows, now)
		}
		return nil
	case FormatJSON:
		return JSON(w, snap)
	case FormatCSV:
		return CSV(w, rows)
	case FormatXLSX:
		return XLSX(w, rows)
	case FormatHTML:
		return HTML(w, snap, now)
	}
	return eris.Errorf("render: unknown format %q", f)
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "render: encode json")
}

// CSV writes rows with a header line.
func CSV(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "render: marshal csv")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "render: write csv")
}

var xlsxHeader = []string{
	"#", "Title", "Solicitation Number", "Agency", "Type", "NAICS", "PSC", "Set-Aside",
	"Posted", "Response Deadline", "Award Amount", "Zip", "Link",
}

// XLSX writes rows as a single-sheet workbook. Known award amounts are
// stored as numbers.
func XLSX(w io.Writer, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Opportunities")
	if err != nil {
		return eris.Wrap(err, "render: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Index)
		for _, s := range []string{r.Title, r.SolicitationNumber, r.Agency, r.Type, r.NAICS, r.PSC, r.SetAside, r.PostedDate, r.ResponseDeadline} {
			row.AddCell().SetString(s)
		}
		amount := row.AddCell()
		if r.Amount != nil {
			amount.SetFloat(*r.Amount)
		} else {
			amount.SetString(r.AwardAmount)
		}
		row.AddCell().SetString(r.Zip)
		row.AddCell().SetString(r.Link)
	}

	return eris.Wrap(f.Write(w), "render: write xlsx")
}
