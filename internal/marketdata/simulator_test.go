package marketdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellidex/cryptobot/internal/domain"
)

func TestSimulatorDeterministicWithSeed(t *testing.T) {
	ctx := context.Background()
	a := NewSimulator(42)
	b := NewSimulator(42)

	for i := 0; i < 50; i++ {
		pa, err := a.CurrentPrice(ctx, "BTCUSDT")
		require.NoError(t, err)
		pb, err := b.CurrentPrice(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestSimulatorWalkStaysBounded(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(7)

	base := BasePrices["ETHUSDT"]
	prev := base
	for i := 0; i < 1000; i++ {
		price, err := sim.CurrentPrice(ctx, "ETHUSDT")
		require.NoError(t, err)

		assert.GreaterOrEqual(t, price, base*0.5)
		assert.LessOrEqual(t, price, base*1.5)

		// Per-tick drift is limited.
		drift := (price - prev) / prev
		assert.LessOrEqual(t, drift, maxTickDrift+1e-9)
		assert.GreaterOrEqual(t, drift, -maxTickDrift-1e-9)
		prev = price
	}
}

func TestSimulatorUnknownSymbolStillAnswers(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1)

	price, err := sim.CurrentPrice(ctx, "DOGEUSDT")
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)
}

func TestSimulatorCandles(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(3)

	candles, err := sim.Candles(ctx, "BTCUSDT", domain.Interval1h, 24)
	require.NoError(t, err)
	require.Len(t, candles, 24)

	for i, c := range candles {
		assert.GreaterOrEqual(t, c.High, c.Low, "candle %d", i)
		assert.GreaterOrEqual(t, c.High, c.Close, "candle %d", i)
		assert.LessOrEqual(t, c.Low, c.Open, "candle %d", i)
		if i > 0 {
			assert.True(t, c.OpenTime.After(candles[i-1].OpenTime))
		}
	}
}

func TestSimulatorStats24h(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(9)

	stats, err := sim.Stats24h(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", stats.Symbol)
	assert.Greater(t, stats.LastPrice, 0.0)
	assert.GreaterOrEqual(t, stats.HighPrice, stats.LastPrice)
	assert.LessOrEqual(t, stats.LowPrice, stats.LastPrice)
}

type failingSource struct{}

func (failingSource) CurrentPrice(context.Context, string) (float64, error) {
	return 0, errors.New("connection refused")
}

func (failingSource) Stats24h(context.Context, string) (domain.TickerStats, error) {
	return domain.TickerStats{}, errors.New("connection refused")
}

func (failingSource) Candles(context.Context, string, domain.Interval, int) ([]domain.Candle, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Subscribe(string, domain.TickerFunc) (domain.CancelFunc, error) {
	return nil, errors.New("connection refused")
}

func TestFallbackAbsorbsPrimaryFailures(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fb := NewFallback(failingSource{}, NewSimulator(5), logger)

	price, err := fb.CurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)

	stats, err := fb.Stats24h(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Greater(t, stats.LastPrice, 0.0)

	candles, err := fb.Candles(ctx, "BTCUSDT", domain.Interval1h, 10)
	require.NoError(t, err)
	assert.Len(t, candles, 10)
}
