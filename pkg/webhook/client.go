// Package webhook provides a client for the workflow-automation webhooks
// (Make.com, n8n) that run SAM.gov opportunity searches on our behalf.
package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/resilience"
)

// Endpoint names, also used as circuit breaker keys.
const (
	EndpointSearch  = "search"
	EndpointDataset = "dataset"
	EndpointReveal  = "reveal"
)

// ErrNoURL is returned when neither the call nor the client names a URL.
var ErrNoURL = eris.New("webhook: no URL configured")

// ErrNotFound is returned by Reveal when the webhook has nothing for the
// requested opportunity.
var ErrNotFound = eris.New("webhook: opportunity not found")

// Client defines the webhook operations.
type Client interface {
	// Search posts the search payload and decodes whatever comes back.
	Search(ctx context.Context, req model.SearchRequest, opts ...CallOption) (*Result, error)
	// Dataset fetches the unfiltered opportunity dataset, usually CSV.
	Dataset(ctx context.Context, opts ...CallOption) (*Result, error)
	// Reveal asks the enrichment webhook for the fields the listing omitted
	// (award amount, place-of-performance zip) for one opportunity.
	Reveal(ctx context.Context, req model.RevealRequest, opts ...CallOption) (model.Opportunity, error)
}

// Result is a decoded webhook response.
type Result struct {
	fetcher.Decoded
	Status  int
	Elapsed time.Duration
}

// Option configures the client.
type Option func(*httpClient)

// WithFetcher sets the HTTP transport.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *httpClient) { c.fetch = f }
}

// WithBreakers sets the circuit breakers shared by the endpoints.
func WithBreakers(b *resilience.Breakers) Option {
	return func(c *httpClient) { c.breakers = b }
}

// WithSearchURL sets the default search webhook.
func WithSearchURL(u string) Option {
	return func(c *httpClient) { c.urls[EndpointSearch] = u }
}

// WithDatasetURL sets the default dataset webhook.
func WithDatasetURL(u string) Option {
	return func(c *httpClient) { c.urls[EndpointDataset] = u }
}

// WithRevealURL sets the default enrichment webhook.
func WithRevealURL(u string) Option {
	return func(c *httpClient) { c.urls[EndpointReveal] = u }
}

// CallOption adjusts a single call.
type CallOption func(*callOpts)

type callOpts struct {
	url string
}

// WithURL sends this call to u instead of the configured webhook. The form
// lets users paste their own scenario URL.
func WithURL(u string) CallOption {
	return func(o *callOpts) { o.url = strings.TrimSpace(u) }
}

type httpClient struct {
	fetch    fetcher.Fetcher
	breakers *resilience.Breakers
	urls     map[string]string
}

// NewClient creates a webhook client.
func NewClient(opts ...Option) Client {
	c := &httpClient{urls: make(map[string]string)}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetch == nil {
		c.fetch = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if c.breakers == nil {
		c.breakers = resilience.NewBreakers(resilience.NewBreakerConfig(0, 0))
	}
	return c
}

func (c *httpClient) target(endpoint string, opts []CallOption) (string, error) {
	var o callOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.url != "" {
		return o.url, nil
	}
	if u := c.urls[endpoint]; u != "" {
		return u, nil
	}
	return "", eris.Wrapf(ErrNoURL, "webhook: %s", endpoint)
}

func (c *httpClient) call(ctx context.Context, endpoint, url string, send func(context.Context) (*fetcher.Response, error)) (*Result, error) {
	start := time.Now()
	resp, err := resilience.ExecuteVal(ctx, c.breakers.Get(endpoint), send)
	if err != nil {
		zap.L().Error("webhook: call failed",
			zap.String("endpoint", endpoint),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "webhook: %s", endpoint)
	}

	res := &Result{
		Decoded: fetcher.DecodeResponse(resp.ContentType, resp.Body),
		Status:  resp.Status,
		Elapsed: time.Since(start),
	}
	zap.L().Info("webhook: response decoded",
		zap.String("endpoint", endpoint),
		zap.String("format", string(res.Format)),
		zap.String("path", res.Path),
		zap.Bool("found", res.Found),
		zap.Int("opportunities", len(res.Opportunities)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (c *httpClient) Search(ctx context.Context, req model.SearchRequest, opts ...CallOption) (*Result, error) {
	url, err := c.target(EndpointSearch, opts)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, EndpointSearch, url, func(ctx context.Context) (*fetcher.Response, error) {
		return c.fetch.PostJSON(ctx, url, req)
	})
}

func (c *httpClient) Dataset(ctx context.Context, opts ...CallOption) (*Result, error) {
	url, err := c.target(EndpointDataset, opts)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, EndpointDataset, url, func(ctx context.Context) (*fetcher.Response, error) {
		return c.fetch.Get(ctx, url)
	})
}

func (c *httpClient) Reveal(ctx context.Context, req model.RevealRequest, opts ...CallOption) (model.Opportunity, error) {
	url, err := c.target(EndpointReveal, opts)
	if err != nil {
		return nil, err
	}

	var body []byte
	res, err := c.call(ctx, EndpointReveal, url, func(ctx context.Context) (*fetcher.Response, error) {
		resp, err := c.fetch.PostJSON(ctx, url, req)
		if err == nil {
			body = resp.Body
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if len(res.Opportunities) > 0 {
		return res.Opportunities[0], nil
	}

	// The enrichment scenario usually answers with a bare object rather
	// than an array.
	if doc := gjson.ParseBytes(body); doc.IsObject() {
		if m, ok := doc.Value().(map[string]any); ok && len(m) > 0 {
			return model.Opportunity(m), nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "webhook: reveal %s", req.SolicitationNumber)
}

// Message returns the text shown to a user for a failed call: the innermost
// cause, without the wrapping context.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if cause := eris.Cause(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}
