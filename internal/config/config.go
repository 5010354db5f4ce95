// Package config defines the fillbook configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FILLBOOK_* environment variables.
type Config struct {
	Venue     VenueConfig     `toml:"venue"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	// LogFile, if set, receives a rotated copy of the JSON log.
	LogFile string `toml:"log_file"`
}

// VenueConfig identifies the trading venue, the account and the one
// instrument fillbook tracks.
type VenueConfig struct {
	BaseURL        string   `toml:"base_url"`
	WSURL          string   `toml:"ws_url"`
	Account        string   `toml:"account"`
	Venue          string   `toml:"venue"`
	Stock          string   `toml:"stock"`
	APIKey         string   `toml:"api_key"`
	PollInterval   duration `toml:"poll_interval"`
	RequestTimeout duration `toml:"request_timeout"`
	// OrderRate caps order submissions per second; zero disables the cap.
	OrderRate int `toml:"order_rate"`
}

// ReconcileConfig tunes the reconciliation loop and the stale-order reaper.
type ReconcileConfig struct {
	Interval        duration `toml:"interval"`
	ReaperEnabled   bool     `toml:"reaper_enabled"`
	ReapThreshold   duration `toml:"reap_threshold"`
	ReapInterval    duration `toml:"reap_interval"`
	QuoteStaleAfter duration `toml:"quote_stale_after"`
	FillStaleAfter  duration `toml:"fill_stale_after"`
	// SpreadLimit bounds the spread and trade series kept in memory.
	SpreadLimit int `toml:"spread_limit"`
}

// PostgresConfig holds the snapshot sink connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	TradeTTL     duration `toml:"trade_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the periodic ledger and spread archive.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			BaseURL:        "https://api.stockfighter.io/ob/api",
			WSURL:          "wss://api.stockfighter.io/ob/api/ws",
			PollInterval:   duration{3 * time.Second},
			RequestTimeout: duration{10 * time.Second},
			OrderRate:      5,
		},
		Reconcile: ReconcileConfig{
			Interval:        duration{500 * time.Millisecond},
			ReaperEnabled:   false,
			ReapThreshold:   duration{30 * time.Second},
			ReapInterval:    duration{5 * time.Second},
			QuoteStaleAfter: duration{30 * time.Second},
			SpreadLimit:     10_000,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "fillbook",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			TradeTTL:     duration{10 * time.Minute},
			StreamMaxLen: 10_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "fillbook-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Interval: duration{15 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   50,
		},
		Notify: NotifyConfig{
			Events: []string{"feed_stale", "order_rejected", "order_reaped"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ReadOnly reports whether order submission is disabled.
func (c *Config) ReadOnly() bool {
	return strings.ToLower(c.Mode) == "monitor"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venue
	for _, f := range []struct{ name, value string }{
		{"base_url", c.Venue.BaseURL},
		{"ws_url", c.Venue.WSURL},
		{"account", c.Venue.Account},
		{"venue", c.Venue.Venue},
		{"stock", c.Venue.Stock},
		{"api_key", c.Venue.APIKey},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, "venue: "+f.name+" must not be empty")
		}
	}
	if c.Venue.PollInterval.Duration <= 0 {
		errs = append(errs, "venue: poll_interval must be > 0")
	}
	if c.Venue.RequestTimeout.Duration <= 0 {
		errs = append(errs, "venue: request_timeout must be > 0")
	}
	if c.Venue.OrderRate < 0 {
		errs = append(errs, "venue: order_rate must be >= 0")
	}

	// Reconcile
	if c.Reconcile.Interval.Duration <= 0 {
		errs = append(errs, "reconcile: interval must be > 0")
	}
	if c.Reconcile.ReaperEnabled {
		if c.Reconcile.ReapThreshold.Duration <= 0 {
			errs = append(errs, "reconcile: reap_threshold must be > 0 when the reaper is enabled")
		}
		if c.Reconcile.ReapInterval.Duration <= 0 {
			errs = append(errs, "reconcile: reap_interval must be > 0 when the reaper is enabled")
		}
	}
	if c.Reconcile.QuoteStaleAfter.Duration < 0 || c.Reconcile.FillStaleAfter.Duration < 0 {
		errs = append(errs, "reconcile: stale_after values must be >= 0")
	}
	if c.Reconcile.SpreadLimit < 1 {
		errs = append(errs, "reconcile: spread_limit must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if c.Reconcile.ReaperEnabled && !c.Redis.Enabled {
		errs = append(errs, "reconcile: the reaper needs redis for its lock")
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archive is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
