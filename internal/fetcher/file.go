package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bidscout/internal/model"
)

// maxFileBytes caps a local export read into memory.
const maxFileBytes = 64 << 20

// FileOptions configures LoadFile.
type FileOptions struct {
	// Sheet selects an XLSX sheet by name; the first sheet is used when empty.
	Sheet string
}

// LoadFile reads opportunities from a saved webhook response or export:
// .csv, .json, .xlsx, or a .zip holding one of those.
func LoadFile(path string, opts FileOptions) ([]model.Opportunity, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	return decodeFile(filepath.Base(path), data, opts)
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "file: open")
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "file: read")
	}
	if len(data) > maxFileBytes {
		return nil, eris.Errorf("file: %s exceeds %d bytes", path, maxFileBytes)
	}
	return data, nil
}

func decodeFile(name string, data []byte, opts FileOptions) ([]model.Opportunity, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ParseOpportunityCSV(string(data)), nil
	case ".json":
		return DecodeResponse("application/json", data).Opportunities, nil
	case ".xlsx":
		return ReadOpportunityXLSX(data, opts.Sheet)
	case ".zip":
		return decodeZIP(data, opts)
	}
	return nil, eris.Errorf("file: unsupported format %q", filepath.Ext(name))
}

// decodeZIP decodes the first supported entry of an archive.
func decodeZIP(data []byte, opts FileOptions) ([]model.Opportunity, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".csv", ".json", ".xlsx":
		default:
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "zip: open entry %s", f.Name)
		}
		entry, err := io.ReadAll(io.LimitReader(rc, maxFileBytes))
		rc.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrapf(err, "zip: read entry %s", f.Name)
		}
		return decodeFile(f.Name, entry, opts)
	}
	return nil, eris.New("zip: no csv, json or xlsx entry in archive")
}

// ReadOpportunityXLSX reads a spreadsheet export. The first row is the
// header; cells follow the same unknown rules as the CSV parser.
func ReadOpportunityXLSX(data []byte, sheetName string) ([]model.Opportunity, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}

	var sheet *xlsx.Sheet
	switch {
	case sheetName != "":
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
		}
		sheet = s
	case len(f.Sheets) > 0:
		sheet = f.Sheets[0]
	default:
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	out := make([]model.Opportunity, 0, len(sheet.Rows))
	var headers []string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = strings.TrimSpace(cell.String())
		}
		if headers == nil {
			headers = cells
			continue
		}
		if blankRow(cells) {
			continue
		}

		op := make(model.Opportunity, len(headers))
		for i, h := range headers {
			var v string
			if i < len(cells) {
				v = cells[i]
			}
			op[h] = normalizeField(v)
		}
		out = append(out, op)
	}
	return out, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
