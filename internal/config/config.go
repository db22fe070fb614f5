package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Webhook WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the preferences and history backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional Postgres pool sizing.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// WebhookConfig configures the external workflow-automation webhooks.
type WebhookConfig struct {
	SearchURL         string        `yaml:"search_url" mapstructure:"search_url"`
	DatasetURL        string        `yaml:"dataset_url" mapstructure:"dataset_url"`
	RevealURL         string        `yaml:"reveal_url" mapstructure:"reveal_url"`
	TimeoutSecs       int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	SearchesPerMinute int           `yaml:"searches_per_minute" mapstructure:"searches_per_minute"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Breaker           BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// BreakerConfig configures the webhook circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// HistoryConfig configures the per-user search history.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// SearchConfig holds the form defaults applied on reset and for new users.
type SearchConfig struct {
	CompanyZip      string   `yaml:"company_zip" mapstructure:"company_zip"`
	SetAsides       []string `yaml:"set_asides" mapstructure:"set_asides"`
	NAICS           string   `yaml:"naics" mapstructure:"naics"`
	PSC             string   `yaml:"psc" mapstructure:"psc"`
	MaxDistance     int      `yaml:"max_distance" mapstructure:"max_distance"`
	MinValue        int      `yaml:"min_value" mapstructure:"min_value"`
	BidComfortDays  int      `yaml:"bid_comfort_days" mapstructure:"bid_comfort_days"`
	MinDays         int      `yaml:"min_days" mapstructure:"min_days"`
	IncludeAwarded  bool     `yaml:"include_awarded" mapstructure:"include_awarded"`
	RequireLocation bool     `yaml:"require_location" mapstructure:"require_location"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxSessions    int      `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BIDSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bidscout.db")
	v.SetDefault("webhook.timeout_secs", 120)
	v.SetDefault("webhook.max_attempts", 1)
	v.SetDefault("webhook.searches_per_minute", 6)
	v.SetDefault("webhook.user_agent", "bidscout/1.0")
	v.SetDefault("webhook.breaker.failure_threshold", 5)
	v.SetDefault("webhook.breaker.reset_timeout_secs", 30)
	v.SetDefault("history.max_entries", 10)
	v.SetDefault("search.company_zip", "92019")
	v.SetDefault("search.set_asides", []string{"NONE", "SBA"})
	v.SetDefault("search.naics", "238220")
	v.SetDefault("search.psc", "")
	v.SetDefault("search.max_distance", 200)
	v.SetDefault("search.min_value", 50000)
	v.SetDefault("search.bid_comfort_days", 14)
	v.SetDefault("search.min_days", 7)
	v.SetDefault("search.include_awarded", false)
	v.SetDefault("search.require_location", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_sessions", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks that the fields a command mode depends on are usable.
// Modes: "search", "dataset", "serve", "history".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.History.MaxEntries < 1 || c.History.MaxEntries > 100 {
		errs = append(errs, "history.max_entries must be between 1 and 100")
	}

	switch mode {
	case "search":
		if c.Webhook.MaxAttempts < 1 {
			errs = append(errs, "webhook.max_attempts must be >= 1")
		}
	case "dataset":
		if c.Webhook.DatasetURL == "" {
			errs = append(errs, "webhook.dataset_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "history":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
