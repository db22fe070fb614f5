package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/resilience"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base := []Option{
		WithFetcher(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second})),
		WithSearchURL(srv.URL + "/search"),
		WithDatasetURL(srv.URL + "/dataset"),
		WithRevealURL(srv.URL + "/reveal"),
	}
	return NewClient(append(base, opts...)...), srv
}

func TestSearch_PostsPayloadAndDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "SEARCH_1_abc", got["search_id"])
		assert.Equal(t, "238220", got["naics_filter"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matches":[{"title":"Roof"},{"title":"HVAC"}]}`)) //nolint:errcheck
	})

	res, err := c.Search(context.Background(), model.SearchRequest{SearchID: "SEARCH_1_abc", NAICSFilter: "238220"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.True(t, res.Found)
	assert.Equal(t, "matches", res.Path)
	require.Len(t, res.Opportunities, 2)
	assert.Equal(t, "HVAC", res.Opportunities[1]["title"])
}

func TestSearch_PerCallURL(t *testing.T) {
	var hit atomic.Bool
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custom", r.URL.Path)
		hit.Store(true)
		w.Write([]byte(`Accepted`)) //nolint:errcheck
	})

	res, err := c.Search(context.Background(), model.SearchRequest{}, WithURL(srv.URL+"/custom"))
	require.NoError(t, err)
	assert.True(t, hit.Load())
	assert.Equal(t, fetcher.FormatText, res.Format)
	assert.Empty(t, res.Opportunities)
}

func TestSearch_NoURL(t *testing.T) {
	c := NewClient()
	_, err := c.Search(context.Background(), model.SearchRequest{})
	require.ErrorIs(t, err, ErrNoURL)
}

func TestSearch_FailureIsOpaqueMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Search(context.Background(), model.SearchRequest{})
	require.Error(t, err)
	assert.Equal(t, "HTTP error! status: 500", Message(err))
}

func TestSearch_MalformedBodyIsZeroOpportunities(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matches": [`)) //nolint:errcheck
	})

	res, err := c.Search(context.Background(), model.SearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Opportunities)
	assert.False(t, res.Found)
}

func TestSearch_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithBreakers(resilience.NewBreakers(resilience.NewBreakerConfig(2, 60))))

	for range 2 {
		_, err := c.Search(context.Background(), model.SearchRequest{})
		require.Error(t, err)
	}
	_, err := c.Search(context.Background(), model.SearchRequest{})
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())

	_, err = c.Dataset(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, resilience.ErrCircuitOpen, "breakers are per endpoint")
}

func TestDataset_CSV(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("title,awardAmount\nRoof,150000\nHVAC,null\n")) //nolint:errcheck
	})

	res, err := c.Dataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fetcher.FormatCSV, res.Format)
	require.Len(t, res.Opportunities, 2)
	assert.Equal(t, model.Unknown, res.Opportunities[1]["awardAmount"])
}

func TestReveal(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare object", `{"awardAmount":250000,"placeOfPerformanceZip":"92019"}`},
		{"wrapped array", `{"results":[{"awardAmount":250000,"placeOfPerformanceZip":"92019"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var got model.RevealRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, "W912-25-R-0001", got.SolicitationNumber)
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body)) //nolint:errcheck
			})

			op, err := c.Reveal(context.Background(), model.RevealRequest{SolicitationNumber: "W912-25-R-0001"})
			require.NoError(t, err)
			amount, ok := op.Number("awardAmount")
			require.True(t, ok)
			assert.InDelta(t, 250000, amount, 0.01)
			assert.Equal(t, "92019", op["placeOfPerformanceZip"])
		})
	}
}

func TestReveal_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`)) //nolint:errcheck
	})
	_, err := c.Reveal(context.Background(), model.RevealRequest{SolicitationNumber: "X"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, fetcher.ErrRateLimited.Error(), Message(fetcher.ErrRateLimited))
}
