package fetcher

import (
	"context"
)

// Fetcher defines the HTTP operations the webhook client needs.
type Fetcher interface {
	// Get fetches the URL and returns the fully read response.
	Get(ctx context.Context, url string) (*Response, error)

	// PostJSON posts payload as JSON and returns the fully read response.
	PostJSON(ctx context.Context, url string, payload any) (*Response, error)
}

var _ Fetcher = (*HTTPFetcher)(nil)
