package marketdata

import (
	"context"
	"log/slog"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// fetchTimeout bounds every upstream call so bot polling loops never
// stall on a slow data source.
const fetchTimeout = 3 * time.Second

// Fallback serves data from a primary source and degrades to the
// simulator whenever the primary fails or times out. Its methods never
// return an error for price, stats or candle reads: the simulator
// always answers.
type Fallback struct {
	primary domain.MarketSource
	sim     *Simulator
	logger  *slog.Logger
}

var _ domain.MarketSource = (*Fallback)(nil)

// NewFallback wraps primary with the given simulator.
func NewFallback(primary domain.MarketSource, sim *Simulator, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		sim:     sim,
		logger:  logger.With(slog.String("component", "marketdata")),
	}
}

// CurrentPrice returns the live price, or a simulated one when the
// primary fails.
func (f *Fallback) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	price, err := f.primary.CurrentPrice(fctx, symbol)
	if err == nil {
		return price, nil
	}
	f.logger.Debug("price fallback to simulator",
		slog.String("symbol", symbol), slog.Any("error", err))
	return f.sim.CurrentPrice(ctx, symbol)
}

// Stats24h returns live 24h stats, or simulated ones.
func (f *Fallback) Stats24h(ctx context.Context, symbol string) (domain.TickerStats, error) {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	stats, err := f.primary.Stats24h(fctx, symbol)
	if err == nil {
		return stats, nil
	}
	f.logger.Debug("stats fallback to simulator",
		slog.String("symbol", symbol), slog.Any("error", err))
	return f.sim.Stats24h(ctx, symbol)
}

// Candles returns live klines, or simulated ones.
func (f *Fallback) Candles(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Candle, error) {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	candles, err := f.primary.Candles(fctx, symbol, interval, limit)
	if err == nil {
		return candles, nil
	}
	f.logger.Debug("candles fallback to simulator",
		slog.String("symbol", symbol), slog.Any("error", err))
	return f.sim.Candles(ctx, symbol, interval, limit)
}

// Subscribe prefers the primary stream and falls back to simulated
// ticks when the stream cannot be established.
func (f *Fallback) Subscribe(symbol string, fn domain.TickerFunc) (domain.CancelFunc, error) {
	cancel, err := f.primary.Subscribe(symbol, fn)
	if err == nil {
		return cancel, nil
	}
	f.logger.Warn("subscribe fallback to simulator",
		slog.String("symbol", symbol), slog.Any("error", err))
	return f.sim.Subscribe(symbol, fn)
}
