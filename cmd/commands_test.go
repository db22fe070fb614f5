//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/search"
	"github.com/sells-group/bidscout/internal/store"
)

const cliSearchBody = `{"opportunities":[
	{"title":"Roof Repair","solicitationNumber":"A-1","naicsCodes":"238220","typeOfSetAside":"SBA","responseDeadline":"2099-04-01","awardAmount":null},
	{"title":"Roof Coating","solicitationNumber":"B-2","naicsCodes":"238220","typeOfSetAside":"8A","responseDeadline":"2099-04-01","awardAmount":90000}
]}`

const cliDatasetBody = `title,solicitationNumber,naicsCodes,typeOfSetAside,responseDeadline,awardAmount
Roof Repair,A-1,238220,SBA,2099-04-01,120000
Paving,C-3,237310,NONE,2099-04-01,80000
`

func newCLIUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, cliSearchBody)
	})
	mux.HandleFunc("GET /dataset", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, cliDatasetBody)
	})
	mux.HandleFunc("POST /reveal", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"awardAmount":125000,"placeOfPerformanceZip":"92101"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeCLIConfig writes a config.yaml pointing at upstream and returns the
// directory and database path.
func writeCLIConfig(t *testing.T, upstream string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "cli.db")
	content := fmt.Sprintf(`
store:
  driver: sqlite
  database_url: %s
webhook:
  search_url: %s/search
  dataset_url: %s/dataset
  reveal_url: %s/reveal
log:
  level: error
  format: console
`, dsn, upstream, upstream, upstream)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir, dsn
}

// runCLI executes the root command from dir. Flag values persist between
// runs of the same command, so each test sets the flags it relies on.
func runCLI(t *testing.T, dir string, args ...string) error {
	t.Helper()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(origDir) //nolint:errcheck

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func readSnapshot(t *testing.T, path string) search.Snapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap search.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func openStore(t *testing.T, dsn string) store.Store {
	t.Helper()
	st, err := store.NewSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestSearchCommand_EndToEnd(t *testing.T) {
	upstream := newCLIUpstream(t)
	dir, dsn := writeCLIConfig(t, upstream.URL)
	out := filepath.Join(dir, "results.json")

	err := runCLI(t, dir, "search", "--email", "Jane.Doe@example.com", "--reveal", "--format", "json", "-o", out)
	require.NoError(t, err)

	snap := readSnapshot(t, out)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 2, snap.Total)
	require.Len(t, snap.Opportunities, 1)
	assert.Equal(t, "Roof Repair", snap.Opportunities[0]["title"])
	assert.InDelta(t, 125000, snap.Opportunities[0]["awardAmount"], 0.001)
	assert.Equal(t, "92101", snap.Opportunities[0]["placeOfPerformanceZip"])

	st := openStore(t, dsn)
	ctx := context.Background()

	prefs, err := st.LoadPreferences(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, "238220", prefs.NAICSFilter)
	assert.Equal(t, "Jane.Doe", prefs.UserName)

	entries, err := st.ListHistory(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	shown := filepath.Join(dir, "shown.json")
	require.NoError(t, runCLI(t, dir, "history", "show", entries[0].ID, "--email", "jane.doe@example.com", "--format", "json", "-o", shown))
	assert.Equal(t, entries[0].ID, readSnapshot(t, shown).HistoryID)

	err = runCLI(t, dir, "history", "show", entries[0].ID, "--email", "someone@else.com", "--format", "json", "-o", shown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no saved search")

	require.NoError(t, runCLI(t, dir, "history", "clear", "--email", "jane.doe@example.com"))
	entries, err = st.ListHistory(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSearchCommand_ValidationError(t *testing.T) {
	upstream := newCLIUpstream(t)
	dir, _ := writeCLIConfig(t, upstream.URL)

	err := runCLI(t, dir, "search", "--email", "not-an-email", "--format", "json", "-o", filepath.Join(dir, "x.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid email")
}

func TestDatasetCommand_FiltersLocally(t *testing.T) {
	upstream := newCLIUpstream(t)
	dir, _ := writeCLIConfig(t, upstream.URL)
	out := filepath.Join(dir, "dataset.json")

	form := filepath.Join(dir, "form.yaml")
	require.NoError(t, os.WriteFile(form, []byte("user_email: ops@example.com\nnaics_filter: \"237310\"\nset_asides: [NONE]\n"), 0o644))

	require.NoError(t, runCLI(t, dir, "dataset", "--form", form, "--format", "json", "-o", out))

	snap := readSnapshot(t, out)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, "Paving", snap.Opportunities[0]["title"])
}

func TestFilterCommand_LocalFile(t *testing.T) {
	dir, _ := writeCLIConfig(t, "http://127.0.0.1:1")
	in := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(in, []byte(cliDatasetBody), 0o644))
	out := filepath.Join(dir, "filtered.csv")

	require.NoError(t, runCLI(t, dir, "filter", in, "--naics", "238220", "--format", "csv", "-o", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Roof Repair")
	assert.NotContains(t, string(data), "Paving")
}

func TestFormFlags_Apply(t *testing.T) {
	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	var ff formFlags
	cmd := &cobra.Command{Use: "x"}
	ff.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--email", "a@b.co",
		"--naics", "236220, 238220",
		"--set-asides", "NONE,8A",
		"--min-days", "3",
		"--rankings", "Effort,value,feasibility,location,special",
	}))

	f, err := ff.form(cmd)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", f.UserEmail)
	assert.Equal(t, "236220, 238220", f.NAICS)
	assert.Equal(t, []string{"NONE", "8A"}, f.SetAsides)
	assert.Equal(t, 3, f.MinDays)
	assert.Equal(t, "92019", f.CompanyZip, "unset flags keep defaults")
	assert.Equal(t, 50000, f.MinValue)
	assert.Equal(t, model.PriorityEffort, f.Rankings[0])
}

func TestFormFlags_FormFileThenFlags(t *testing.T) {
	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	path := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte("company_zip: \"10001\"\nmin_value: 75000\n"), 0o644))

	var ff formFlags
	cmd := &cobra.Command{Use: "x"}
	ff.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--form", path, "--min-value", "1"}))

	f, err := ff.form(cmd)
	require.NoError(t, err)
	assert.Equal(t, "10001", f.CompanyZip)
	assert.Equal(t, 1, f.MinValue)
	assert.Equal(t, "238220", f.NAICS)
}

func TestLoadPrevious(t *testing.T) {
	st := openStore(t, filepath.Join(t.TempDir(), "prev.db"))
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	f := search.NewForm(search.Defaults())
	require.NoError(t, loadPrevious(ctx, st, "a@b.co", &f))
	assert.Equal(t, "238220", f.NAICS, "nothing saved leaves the form alone")

	require.NoError(t, st.SavePreferences(ctx, "a@b.co", model.SearchRequest{
		UserEmail:   "a@b.co",
		NAICSFilter: "236220",
		PSCFilter:   "Z2",
	}))
	require.NoError(t, loadPrevious(ctx, st, "A@B.co ", &f))
	assert.Equal(t, "236220", f.NAICS)
	assert.Equal(t, "Z2", f.PSC)

	assert.Error(t, loadPrevious(ctx, st, "", &f))
}
