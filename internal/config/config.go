// Package config defines the top-level configuration for the trading
// bot service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated
// from a TOML file and then optionally overridden by CRYPTOBOT_*
// environment variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Signals  SignalsConfig  `toml:"signals"`
	Store    StoreConfig    `toml:"store"`
	Ledger   LedgerConfig   `toml:"ledger"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Symbol   string         `toml:"symbol"`
	LogLevel string         `toml:"log_level"`
}

// MarketConfig selects and tunes the market data source.
type MarketConfig struct {
	// Live enables the Binance-backed source; when false (or when live
	// calls fail) prices come from the deterministic simulator.
	Live          bool   `toml:"live"`
	BinanceKey    string `toml:"binance_key"`
	BinanceSecret string `toml:"binance_secret"`
	// SimSeed seeds the simulator's price walk. Zero means seed from
	// the clock.
	SimSeed int64 `toml:"sim_seed"`
}

// SignalsConfig tunes prediction generation and sentiment analysis.
type SignalsConfig struct {
	CryptoPanicURL   string   `toml:"cryptopanic_url"`
	CryptoPanicToken string   `toml:"cryptopanic_token"`
	Currency         string   `toml:"currency"`
	SentimentTTL     duration `toml:"sentiment_ttl"`
	MaxPredictions   int      `toml:"max_predictions"`
	GenerateInterval duration `toml:"generate_interval"`
	VerifyInterval   duration `toml:"verify_interval"`
}

// StoreConfig selects the key-value store backend.
type StoreConfig struct {
	// Backend is one of "memory", "redis", "postgres".
	Backend  string         `toml:"backend"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// LedgerConfig holds the paper ledger parameters.
type LedgerConfig struct {
	InitialBalance float64 `toml:"initial_balance"`
	FeeRate        float64 `toml:"fee_rate"`
	MaxTrades      int     `toml:"max_trades"`
}

// S3Config holds S3-compatible object storage parameters for the
// history archiver. When disabled, pruned history is dropped.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. An empty APIKey disables
// authentication.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML
// decoder can parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip
// encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			Live: false,
		},
		Signals: SignalsConfig{
			CryptoPanicURL:   "https://cryptopanic.com/api/v1",
			Currency:         "BTC",
			SentimentTTL:     duration{30 * time.Minute},
			MaxPredictions:   500,
			GenerateInterval: duration{5 * time.Minute},
			VerifyInterval:   duration{time.Minute},
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:       "localhost:6379",
				PoolSize:   20,
				MaxRetries: 3,
				KeyPrefix:  "cryptobot:",
			},
			Postgres: PostgresConfig{
				Host:         "localhost",
				Port:         5432,
				Database:     "cryptobot",
				User:         "postgres",
				SSLMode:      "disable",
				PoolMaxConns: 10,
				PoolMinConns: 2,
			},
		},
		Ledger: LedgerConfig{
			InitialBalance: 10000,
			FeeRate:        0.001,
			MaxTrades:      200,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "cryptobot-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"bot_started", "bot_stopped", "error"},
		},
		Symbol:   "BTCUSDT",
		LogLevel: "info",
	}
}

// validBackends enumerates the accepted values for StoreConfig.Backend.
var validBackends = map[string]bool{
	"memory":   true,
	"redis":    true,
	"postgres": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Symbol == "" {
		errs = append(errs, "symbol must not be empty")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market
	if c.Market.Live {
		bk := c.Market.BinanceKey != ""
		bs := c.Market.BinanceSecret != ""
		if bk != bs {
			errs = append(errs, "market: binance_key and binance_secret must be set together")
		}
	}

	// Signals
	if c.Signals.CryptoPanicURL == "" {
		errs = append(errs, "signals: cryptopanic_url must not be empty")
	}
	if c.Signals.Currency == "" {
		errs = append(errs, "signals: currency must not be empty")
	}
	if c.Signals.SentimentTTL.Duration <= 0 {
		errs = append(errs, "signals: sentiment_ttl must be positive")
	}
	if c.Signals.MaxPredictions < 1 {
		errs = append(errs, "signals: max_predictions must be >= 1")
	}
	if c.Signals.GenerateInterval.Duration <= 0 {
		errs = append(errs, "signals: generate_interval must be positive")
	}
	if c.Signals.VerifyInterval.Duration <= 0 {
		errs = append(errs, "signals: verify_interval must be positive")
	}

	// Store
	backend := strings.ToLower(c.Store.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: memory, redis, postgres)", c.Store.Backend))
	}
	if backend == "redis" {
		if c.Store.Redis.Addr == "" {
			errs = append(errs, "store.redis: addr must not be empty")
		}
		if c.Store.Redis.PoolSize < 1 {
			errs = append(errs, "store.redis: pool_size must be >= 1")
		}
	}
	if backend == "postgres" && strings.TrimSpace(c.Store.Postgres.DSN) == "" {
		if c.Store.Postgres.Host == "" {
			errs = append(errs, "store.postgres: host must not be empty (or set store.postgres.dsn)")
		}
		if c.Store.Postgres.Port <= 0 || c.Store.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("store.postgres: port must be 1-65535, got %d", c.Store.Postgres.Port))
		}
		if c.Store.Postgres.Database == "" {
			errs = append(errs, "store.postgres: database must not be empty")
		}
	}
	if backend == "postgres" {
		if c.Store.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "store.postgres: pool_max_conns must be >= 1")
		}
		if c.Store.Postgres.PoolMinConns < 0 {
			errs = append(errs, "store.postgres: pool_min_conns must be >= 0")
		}
		if c.Store.Postgres.PoolMinConns > c.Store.Postgres.PoolMaxConns {
			errs = append(errs, "store.postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Ledger
	if c.Ledger.InitialBalance <= 0 {
		errs = append(errs, "ledger: initial_balance must be > 0")
	}
	if c.Ledger.FeeRate < 0 || c.Ledger.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("ledger: fee_rate must be in [0,1), got %v", c.Ledger.FeeRate))
	}
	if c.Ledger.MaxTrades < 1 {
		errs = append(errs, "ledger: max_trades must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — Telegram credentials come in pairs.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
