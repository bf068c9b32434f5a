package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/intellidex/cryptobot/internal/blob/s3"
	"github.com/intellidex/cryptobot/internal/config"
	"github.com/intellidex/cryptobot/internal/domain"
	"github.com/intellidex/cryptobot/internal/kv"
	"github.com/intellidex/cryptobot/internal/ledger"
	"github.com/intellidex/cryptobot/internal/manager"
	"github.com/intellidex/cryptobot/internal/marketdata"
	"github.com/intellidex/cryptobot/internal/notify"
	"github.com/intellidex/cryptobot/internal/platform/cryptopanic"
	"github.com/intellidex/cryptobot/internal/server/ws"
	"github.com/intellidex/cryptobot/internal/signal"
	"github.com/intellidex/cryptobot/internal/strategy"
)

// Dependencies bundles every component the application lifecycle needs.
// It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Store      domain.KVStore
	Market     domain.MarketSource
	Archiver   domain.Archiver   // nil unless S3 is enabled
	BlobReader domain.BlobReader // nil unless S3 is enabled

	Notifier *notify.Notifier
	Ledger   *ledger.Ledger
	Signals  *signal.Aggregator
	Manager  *manager.Manager
	Hub      *ws.Hub
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Bot state store ---
	switch cfg.Store.Backend {
	case "memory":
		deps.Store = kv.NewMemory()

	case "redis":
		rdb, err := kv.NewRedis(ctx, kv.RedisConfig{
			Addr:       cfg.Store.Redis.Addr,
			Password:   cfg.Store.Redis.Password,
			DB:         cfg.Store.Redis.DB,
			PoolSize:   cfg.Store.Redis.PoolSize,
			MaxRetries: cfg.Store.Redis.MaxRetries,
			TLSEnabled: cfg.Store.Redis.TLSEnabled,
			KeyPrefix:  cfg.Store.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Store = rdb

	case "postgres":
		pg, err := kv.NewPostgres(ctx, kv.PostgresConfig{
			DSN:      cfg.Store.Postgres.DSN,
			Host:     cfg.Store.Postgres.Host,
			Port:     cfg.Store.Postgres.Port,
			Database: cfg.Store.Postgres.Database,
			User:     cfg.Store.Postgres.User,
			Password: cfg.Store.Postgres.Password,
			SSLMode:  cfg.Store.Postgres.SSLMode,
			MaxConns: cfg.Store.Postgres.PoolMaxConns,
			MinConns: cfg.Store.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		deps.Store = pg

	default:
		return nil, nil, fmt.Errorf("wire: unsupported store backend %q", cfg.Store.Backend)
	}

	// --- Market data ---
	sim := marketdata.NewSimulator(cfg.Market.SimSeed)
	if cfg.Market.Live {
		binance := marketdata.NewBinance(cfg.Market.BinanceKey, cfg.Market.BinanceSecret)
		deps.Market = marketdata.NewFallback(binance, sim, logger)
	} else {
		deps.Market = sim
	}

	// --- S3 archive storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), logger)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Paper trading ledger ---
	led, err := ledger.New(ctx, deps.Market, deps.Store, deps.Archiver, logger, ledger.Config{
		InitialBalance: cfg.Ledger.InitialBalance,
		FeeRate:        cfg.Ledger.FeeRate,
		MaxTrades:      cfg.Ledger.MaxTrades,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	deps.Ledger = led

	// --- Signal aggregator ---
	news := cryptopanic.New(cryptopanic.Config{
		BaseURL:   cfg.Signals.CryptoPanicURL,
		AuthToken: cfg.Signals.CryptoPanicToken,
		Timeout:   10 * time.Second,
	})
	agg, err := signal.New(ctx, deps.Market, news, deps.Store, deps.Archiver, logger, signal.Config{
		Currency:       cfg.Signals.Currency,
		SentimentTTL:   cfg.Signals.SentimentTTL.Duration,
		MaxPredictions: cfg.Signals.MaxPredictions,
		Seed:           cfg.Market.SimSeed,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: signals: %w", err)
	}
	deps.Signals = agg

	// --- Trading bots ---
	newDeps := func(botName string) strategy.Deps {
		return strategy.Deps{
			Market:  deps.Market,
			Signals: agg,
			Exec:    led.Tagged(botName),
			Store:   deps.Store,
			Sched:   strategy.TickerScheduler{},
			Logger:  logger,
		}
	}

	grid, err := strategy.NewGridBot(ctx, newDeps(strategy.GridBotName))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: grid bot: %w", err)
	}
	trend, err := strategy.NewTrendBot(ctx, newDeps(strategy.TrendBotName))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: trend bot: %w", err)
	}
	swing, err := strategy.NewSwingBot(ctx, newDeps(strategy.SwingBotName))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: swing bot: %w", err)
	}

	deps.Manager = manager.New(grid, trend, swing, deps.Notifier, logger)
	deps.Hub = ws.NewHub(logger)

	return deps, cleanup, nil
}
