package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bidscout/internal/resilience"
)

// maxBodyBytes is the default cap on a webhook response body.
const maxBodyBytes = 32 << 20

// ErrRateLimited is returned when the local request counter for a host is
// exhausted. Nothing is sent upstream in that case.
var ErrRateLimited = eris.New("too many requests, please wait before searching again")

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxAttempts is the total number of tries for transient failures.
	// 1 (the default) means a failed call surfaces immediately.
	MaxAttempts int
	// RequestsPerMinute caps outgoing requests per host; 0 disables the cap.
	RequestsPerMinute int
	// Retry overrides backoff timing; MaxAttempts still wins when set.
	Retry *resilience.RetryConfig
	// MaxBodyBytes rejects larger response bodies; 0 means 32 MiB.
	MaxBodyBytes int64
}

// Response is a fully read HTTP response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// HTTPFetcher implements Fetcher using net/http with a per-host request
// counter and optional retries.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "bidscout/1.0"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = maxBodyBytes
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the request counter for the URL's host, or nil when
// no cap is configured.
func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.RequestsPerMinute <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		every := time.Minute / time.Duration(f.opts.RequestsPerMinute)
		lim = rate.NewLimiter(rate.Every(every), f.opts.RequestsPerMinute)
		f.limiters[host] = lim
	}
	return lim
}

// Get fetches rawURL.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil)
}

// PostJSON posts payload as a JSON body to rawURL.
func (f *HTTPFetcher) PostJSON(ctx context.Context, rawURL string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: marshal payload")
	}
	return f.do(ctx, http.MethodPost, rawURL, body)
}

func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	if lim := f.limiterFor(rawURL); lim != nil && !lim.Allow() {
		zap.L().Warn("fetcher: local request limit reached",
			zap.String("url", redact(rawURL)),
			zap.Int("per_minute", f.opts.RequestsPerMinute),
		)
		return nil, ErrRateLimited
	}

	cfg := resilience.DefaultRetryConfig()
	if f.opts.Retry != nil {
		cfg = *f.opts.Retry
	}
	cfg.MaxAttempts = f.opts.MaxAttempts
	cfg.OnRetry = resilience.RetryLogger("webhook", method+" "+redact(rawURL))

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return f.once(ctx, method, rawURL, body)
	})
}

func (f *HTTPFetcher) once(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.5")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: %s request", method)
	}
	defer resp.Body.Close() //nolint:errcheck

	limit := f.opts.MaxBodyBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: read body"), resp.StatusCode)
	}
	if int64(len(data)) > limit {
		return nil, eris.Errorf("fetcher: response body exceeds %d bytes", limit)
	}

	zap.L().Debug("fetcher: response",
		zap.String("method", method),
		zap.String("url", redact(rawURL)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("HTTP error! status: %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// redact strips the query string, which for hosted webhooks may carry keys.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
