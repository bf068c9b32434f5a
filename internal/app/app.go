// Package app provides the top-level application lifecycle for the
// trading bot service. It wires together all dependencies (state store,
// market data, signals, ledger, bots, notifications, archive storage)
// and runs the background jobs and the HTTP/WebSocket server until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intellidex/cryptobot/internal/config"
	"github.com/intellidex/cryptobot/internal/server"
	"github.com/intellidex/cryptobot/internal/server/handler"
	"github.com/intellidex/cryptobot/internal/server/ws"
)

// botStatusEvery is how often bot status frames are pushed to
// WebSocket clients.
const botStatusEvery = 5 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// background jobs and the HTTP server, and blocks until the context is
// cancelled. Call Close afterwards to release resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("symbol", a.cfg.Symbol),
		slog.String("store_backend", a.cfg.Store.Backend),
		slog.Bool("live_market", a.cfg.Market.Live),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub.
	g.Go(func() error {
		if err := deps.Hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	a.startJobs(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// startJobs launches the periodic background work: prediction
// generation, accuracy verification, mark-to-market refresh, and the
// WebSocket push feeds.
func (a *App) startJobs(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	symbol := a.cfg.Symbol

	// Prediction generation.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Signals.GenerateInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				preds, err := deps.Signals.Generate(ctx, symbol)
				if err != nil {
					a.logger.WarnContext(ctx, "prediction generation failed", slog.Any("error", err))
					continue
				}
				deps.Hub.Broadcast(ws.ChannelPredictions, "predictions", preds)
			}
		}
	})

	// Prediction verification and unrealized PnL refresh.
	g.Go(func() error {
		lastSeen := time.Now()
		ticker := time.NewTicker(a.cfg.Signals.VerifyInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n, err := deps.Signals.VerifyAccuracy(ctx); err != nil {
					a.logger.WarnContext(ctx, "prediction verification failed", slog.Any("error", err))
				} else if n > 0 {
					a.logger.DebugContext(ctx, "predictions verified", slog.Int("count", n))
				}

				// Announce fills recorded since the last pass.
				recent := deps.Ledger.TradeHistory(50)
				for i := len(recent) - 1; i >= 0; i-- {
					t := recent[i]
					if !t.Timestamp.After(lastSeen) {
						continue
					}
					lastSeen = t.Timestamp
					deps.Notifier.TradeExecuted(ctx, t)
				}

				if err := deps.Ledger.UpdateUnrealizedPnL(ctx); err != nil {
					a.logger.WarnContext(ctx, "unrealized pnl refresh failed", slog.Any("error", err))
					continue
				}
				deps.Hub.Broadcast(ws.ChannelAccount, "account", map[string]any{
					"balance":        deps.Ledger.Balance(),
					"portfolioValue": deps.Ledger.PortfolioValue(ctx),
					"positions":      deps.Ledger.Positions(),
				})
			}
		}
	})

	// Live ticker feed into the hub.
	g.Go(func() error {
		cancel, err := deps.Market.Subscribe(symbol, func(sym string, price float64) {
			deps.Hub.Broadcast(ws.ChannelTicker, "ticker", map[string]any{
				"symbol": sym,
				"price":  price,
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
		})
		if err != nil {
			return fmt.Errorf("app: subscribe ticker: %w", err)
		}
		defer cancel()

		<-ctx.Done()
		return ctx.Err()
	})

	// Bot status feed.
	g.Go(func() error {
		ticker := time.NewTicker(botStatusEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				deps.Hub.Broadcast(ws.ChannelBots, "bots", deps.Manager.StatusAll())
			}
		}
	})
}

// startHTTPServer adds the HTTP server goroutines to the given errgroup.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Bots:    handler.NewBotsHandler(deps.Manager, a.cfg.Symbol, a.logger),
		Account: handler.NewAccountHandler(deps.Ledger, a.logger),
		Signals: handler.NewSignalsHandler(deps.Signals, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchivesHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, deps.Hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Close tears down all resources in reverse registration order. It is
// safe to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
