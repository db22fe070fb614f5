package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bidscout/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := s.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadFile_CSV(t *testing.T) {
	path := writeFile(t, "dataset.csv", "title,awardAmount\nRoof,150000\nHVAC,\n")
	ops, err := LoadFile(path, FileOptions{})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, model.Unknown, ops[1]["awardAmount"])
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "response.json", `{"matches":[{"title":"Roof"}]}`)
	ops, err := LoadFile(path, FileOptions{})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "Roof", ops[0]["title"])
}

func TestLoadFile_MalformedJSONIsEmpty(t *testing.T) {
	path := writeFile(t, "broken.json", `{"matches":`)
	ops, err := LoadFile(path, FileOptions{})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestLoadFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, "Opportunities", [][]string{
		{"title", "typeOfSetAside", "awardAmount"},
		{"Roof", "SBA", "150000"},
		{"", "", ""},
		{"HVAC", "null"},
	})

	ops, err := LoadFile(path, FileOptions{})
	require.NoError(t, err)
	require.Len(t, ops, 2, "blank rows are skipped")
	assert.Equal(t, "SBA", ops[0]["typeOfSetAside"])
	assert.Equal(t, model.Unknown, ops[1]["typeOfSetAside"])
	assert.Equal(t, model.Unknown, ops[1]["awardAmount"])
}

func TestLoadFile_XLSXSheetByName(t *testing.T) {
	path := createTestXLSX(t, "Matches", [][]string{{"title"}, {"Roof"}})

	ops, err := LoadFile(path, FileOptions{Sheet: "Matches"})
	require.NoError(t, err)
	assert.Len(t, ops, 1)

	_, err = LoadFile(path, FileOptions{Sheet: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestLoadFile_ZIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	readme, err := zw.Create("README.md")
	require.NoError(t, err)
	_, err = readme.Write([]byte("export"))
	require.NoError(t, err)

	w, err := zw.Create("export/opportunities.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("title,naicsCodes\nRoof,238220\nPaint,238320\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	ops, err := LoadFile(path, FileOptions{})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "Paint", ops[1]["title"])
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"), FileOptions{})
	require.Error(t, err)

	_, err = LoadFile(writeFile(t, "data.parquet", "x"), FileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, err = LoadFile(writeFile(t, "bad.zip", "not a zip"), FileOptions{})
	require.Error(t, err)
}
