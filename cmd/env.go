package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidscout/internal/config"
	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/resilience"
	"github.com/sells-group/bidscout/internal/search"
	"github.com/sells-group/bidscout/internal/store"
	"github.com/sells-group/bidscout/pkg/webhook"
)

// appEnv holds the dependencies shared by the commands.
type appEnv struct {
	Store   store.Store
	Client  webhook.Client
	Service *search.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv validates config for mode and opens the store and webhook client.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := newWebhookClient(cfg.Webhook)
	svc := search.NewService(client, st, search.WithHistoryLimit(cfg.History.MaxEntries))

	return &appEnv{Store: st, Client: client, Service: svc}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "bidscout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newWebhookClient(wc config.WebhookConfig) webhook.Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         wc.UserAgent,
		Timeout:           time.Duration(wc.TimeoutSecs) * time.Second,
		MaxAttempts:       wc.MaxAttempts,
		RequestsPerMinute: wc.SearchesPerMinute,
	})
	breakers := resilience.NewBreakers(resilience.NewBreakerConfig(
		wc.Breaker.FailureThreshold,
		wc.Breaker.ResetTimeoutSecs,
	))
	return webhook.NewClient(
		webhook.WithFetcher(f),
		webhook.WithBreakers(breakers),
		webhook.WithSearchURL(wc.SearchURL),
		webhook.WithDatasetURL(wc.DatasetURL),
		webhook.WithRevealURL(wc.RevealURL),
	)
}

// searchDefaults returns the configured form defaults, falling back to the
// built-in ones when config left them empty.
func searchDefaults() config.SearchConfig {
	if cfg == nil || cfg.Search.CompanyZip == "" {
		return search.Defaults()
	}
	return cfg.Search
}
