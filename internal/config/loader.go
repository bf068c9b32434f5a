package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of
// the built-in defaults, applies CRYPTOBOT_* environment variable
// overrides, and returns the final Config. The returned Config has
// NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CRYPTOBOT_* environment variables
// and overwrites the corresponding Config fields when a variable is
// set (i.e. not empty). This lets operators inject secrets at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setBool(&cfg.Market.Live, "CRYPTOBOT_MARKET_LIVE")
	setStr(&cfg.Market.BinanceKey, "CRYPTOBOT_MARKET_BINANCE_KEY")
	setStr(&cfg.Market.BinanceSecret, "CRYPTOBOT_MARKET_BINANCE_SECRET")
	setInt64(&cfg.Market.SimSeed, "CRYPTOBOT_MARKET_SIM_SEED")

	// ── Signals ──
	setStr(&cfg.Signals.CryptoPanicURL, "CRYPTOBOT_SIGNALS_CRYPTOPANIC_URL")
	setStr(&cfg.Signals.CryptoPanicToken, "CRYPTOBOT_SIGNALS_CRYPTOPANIC_TOKEN")
	setStr(&cfg.Signals.Currency, "CRYPTOBOT_SIGNALS_CURRENCY")
	setDuration(&cfg.Signals.SentimentTTL, "CRYPTOBOT_SIGNALS_SENTIMENT_TTL")
	setInt(&cfg.Signals.MaxPredictions, "CRYPTOBOT_SIGNALS_MAX_PREDICTIONS")
	setDuration(&cfg.Signals.GenerateInterval, "CRYPTOBOT_SIGNALS_GENERATE_INTERVAL")
	setDuration(&cfg.Signals.VerifyInterval, "CRYPTOBOT_SIGNALS_VERIFY_INTERVAL")

	// ── Store ──
	setStr(&cfg.Store.Backend, "CRYPTOBOT_STORE_BACKEND")
	setStr(&cfg.Store.Redis.Addr, "CRYPTOBOT_STORE_REDIS_ADDR")
	setStr(&cfg.Store.Redis.Password, "CRYPTOBOT_STORE_REDIS_PASSWORD")
	setInt(&cfg.Store.Redis.DB, "CRYPTOBOT_STORE_REDIS_DB")
	setInt(&cfg.Store.Redis.PoolSize, "CRYPTOBOT_STORE_REDIS_POOL_SIZE")
	setInt(&cfg.Store.Redis.MaxRetries, "CRYPTOBOT_STORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Store.Redis.TLSEnabled, "CRYPTOBOT_STORE_REDIS_TLS_ENABLED")
	setStr(&cfg.Store.Redis.KeyPrefix, "CRYPTOBOT_STORE_REDIS_KEY_PREFIX")
	setStr(&cfg.Store.Postgres.DSN, "CRYPTOBOT_STORE_POSTGRES_DSN")
	setStr(&cfg.Store.Postgres.Host, "CRYPTOBOT_STORE_POSTGRES_HOST")
	setInt(&cfg.Store.Postgres.Port, "CRYPTOBOT_STORE_POSTGRES_PORT")
	setStr(&cfg.Store.Postgres.Database, "CRYPTOBOT_STORE_POSTGRES_DATABASE")
	setStr(&cfg.Store.Postgres.User, "CRYPTOBOT_STORE_POSTGRES_USER")
	setStr(&cfg.Store.Postgres.Password, "CRYPTOBOT_STORE_POSTGRES_PASSWORD")
	setStr(&cfg.Store.Postgres.SSLMode, "CRYPTOBOT_STORE_POSTGRES_SSL_MODE")
	setInt(&cfg.Store.Postgres.PoolMaxConns, "CRYPTOBOT_STORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Store.Postgres.PoolMinConns, "CRYPTOBOT_STORE_POSTGRES_POOL_MIN_CONNS")

	// ── Ledger ──
	setFloat64(&cfg.Ledger.InitialBalance, "CRYPTOBOT_LEDGER_INITIAL_BALANCE")
	setFloat64(&cfg.Ledger.FeeRate, "CRYPTOBOT_LEDGER_FEE_RATE")
	setInt(&cfg.Ledger.MaxTrades, "CRYPTOBOT_LEDGER_MAX_TRADES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CRYPTOBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CRYPTOBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CRYPTOBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "CRYPTOBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CRYPTOBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CRYPTOBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CRYPTOBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CRYPTOBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CRYPTOBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CRYPTOBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CRYPTOBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CRYPTOBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CRYPTOBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CRYPTOBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CRYPTOBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CRYPTOBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Symbol, "CRYPTOBOT_SYMBOL")
	setStr(&cfg.LogLevel, "CRYPTOBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
