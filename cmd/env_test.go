//go:build !integration

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidscout/internal/config"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/render"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	_, statErr := os.Stat(filepath.Join(tmpDir, "bidscout.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "mysql"},
	}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	cfg = &config.Config{
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")},
		History: config.HistoryConfig{MaxEntries: 0},
	}

	env, err := initEnv(context.Background(), "history")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.max_entries")
}

func TestInitEnv_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "env.db")},
		History: config.HistoryConfig{MaxEntries: 10},
		Webhook: config.WebhookConfig{MaxAttempts: 1},
	}

	env, err := initEnv(context.Background(), "search")
	require.NoError(t, err)
	defer env.Close()

	require.NoError(t, env.Store.Ping(context.Background()))
	assert.NotNil(t, env.Client)
	assert.NotNil(t, env.Service)
}

func TestNewWebhookClient_UsesConfiguredURLs(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"opportunities":[{"title":"Roof"}]}`)
	}))
	defer srv.Close()

	client := newWebhookClient(config.WebhookConfig{
		SearchURL:   srv.URL,
		TimeoutSecs: 5,
		MaxAttempts: 1,
		UserAgent:   "bidscout-test",
		Breaker:     config.BreakerConfig{FailureThreshold: 5, ResetTimeoutSecs: 30},
	})

	res, err := client.Search(context.Background(), model.SearchRequest{UserEmail: "a@b.co"})
	require.NoError(t, err)
	assert.Len(t, res.Opportunities, 1)
	assert.Equal(t, "bidscout-test", gotUA)
}

func TestSearchDefaults(t *testing.T) {
	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	cfg = nil
	assert.Equal(t, "92019", searchDefaults().CompanyZip)

	cfg = &config.Config{Search: config.SearchConfig{CompanyZip: "10001", NAICS: "236220"}}
	assert.Equal(t, "10001", searchDefaults().CompanyZip)
}

func TestOutputFlags_Open(t *testing.T) {
	of := outputFlags{format: "xlsx"}
	_, _, _, err := of.open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output is required")

	of = outputFlags{format: "yaml"}
	_, _, _, err = of.open()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	of = outputFlags{format: "csv", output: path}
	format, w, closeFn, err := of.open()
	require.NoError(t, err)
	assert.Equal(t, render.FormatCSV, format)
	_, err = io.WriteString(w, "x")
	require.NoError(t, err)
	require.NoError(t, closeFn())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
