package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FILLBOOK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FILLBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Venue ──
	setStr(&cfg.Venue.BaseURL, "FILLBOOK_VENUE_BASE_URL")
	setStr(&cfg.Venue.WSURL, "FILLBOOK_VENUE_WS_URL")
	setStr(&cfg.Venue.Account, "FILLBOOK_VENUE_ACCOUNT")
	setStr(&cfg.Venue.Venue, "FILLBOOK_VENUE_VENUE")
	setStr(&cfg.Venue.Stock, "FILLBOOK_VENUE_STOCK")
	setStr(&cfg.Venue.APIKey, "FILLBOOK_VENUE_API_KEY")
	setDuration(&cfg.Venue.PollInterval, "FILLBOOK_VENUE_POLL_INTERVAL")
	setDuration(&cfg.Venue.RequestTimeout, "FILLBOOK_VENUE_REQUEST_TIMEOUT")
	setInt(&cfg.Venue.OrderRate, "FILLBOOK_VENUE_ORDER_RATE")

	// ── Reconcile ──
	setDuration(&cfg.Reconcile.Interval, "FILLBOOK_RECONCILE_INTERVAL")
	setBool(&cfg.Reconcile.ReaperEnabled, "FILLBOOK_RECONCILE_REAPER_ENABLED")
	setDuration(&cfg.Reconcile.ReapThreshold, "FILLBOOK_RECONCILE_REAP_THRESHOLD")
	setDuration(&cfg.Reconcile.ReapInterval, "FILLBOOK_RECONCILE_REAP_INTERVAL")
	setDuration(&cfg.Reconcile.QuoteStaleAfter, "FILLBOOK_RECONCILE_QUOTE_STALE_AFTER")
	setDuration(&cfg.Reconcile.FillStaleAfter, "FILLBOOK_RECONCILE_FILL_STALE_AFTER")
	setInt(&cfg.Reconcile.SpreadLimit, "FILLBOOK_RECONCILE_SPREAD_LIMIT")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "FILLBOOK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "FILLBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "FILLBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FILLBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FILLBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FILLBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FILLBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FILLBOOK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FILLBOOK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FILLBOOK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FILLBOOK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FILLBOOK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FILLBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FILLBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FILLBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FILLBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FILLBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FILLBOOK_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.TradeTTL, "FILLBOOK_REDIS_TRADE_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "FILLBOOK_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FILLBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FILLBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "FILLBOOK_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "FILLBOOK_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "FILLBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FILLBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FILLBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FILLBOOK_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FILLBOOK_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "FILLBOOK_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FILLBOOK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FILLBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FILLBOOK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "FILLBOOK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "FILLBOOK_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FILLBOOK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FILLBOOK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FILLBOOK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FILLBOOK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FILLBOOK_MODE")
	setStr(&cfg.LogLevel, "FILLBOOK_LOG_LEVEL")
	setStr(&cfg.LogFile, "FILLBOOK_LOG_FILE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
