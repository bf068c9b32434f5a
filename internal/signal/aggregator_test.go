package signal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellidex/cryptobot/internal/domain"
	"github.com/intellidex/cryptobot/internal/kv"
)

type stubMarket struct {
	price   float64
	candles []domain.Candle
}

func (m *stubMarket) CurrentPrice(context.Context, string) (float64, error) {
	return m.price, nil
}

func (m *stubMarket) Stats24h(context.Context, string) (domain.TickerStats, error) {
	return domain.TickerStats{LastPrice: m.price}, nil
}

func (m *stubMarket) Candles(context.Context, string, domain.Interval, int) ([]domain.Candle, error) {
	return m.candles, nil
}

func (m *stubMarket) Subscribe(string, domain.TickerFunc) (domain.CancelFunc, error) {
	return func() {}, nil
}

type stubNews struct {
	headlines []domain.Headline
	err       error
	calls     int
}

func (n *stubNews) Headlines(context.Context, string) ([]domain.Headline, error) {
	n.calls++
	return n.headlines, n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waveCandles builds a gently oscillating series so indicators like
// RSI see both gains and losses.
func waveCandles(n int, price float64) []domain.Candle {
	candles := make([]domain.Candle, n)
	start := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := range candles {
		open := start.Add(time.Duration(i) * time.Hour)
		c := price * (1 + 0.002*float64(i%7-3))
		candles[i] = domain.Candle{
			OpenTime:  open,
			Open:      c * 0.999,
			High:      c * 1.002,
			Low:       c * 0.997,
			Close:     c,
			Volume:    100,
			CloseTime: open.Add(time.Hour),
		}
	}
	return candles
}

func newTestAggregator(t *testing.T, market *stubMarket, news *stubNews) *Aggregator {
	t.Helper()
	a, err := New(context.Background(), market, news, kv.NewMemory(), nil,
		testLogger(), Config{Seed: 1})
	require.NoError(t, err)
	return a
}

func TestGenerateCoversEveryHorizon(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000, candles: waveCandles(100, 50000)}
	a := newTestAggregator(t, market, &stubNews{})

	preds, err := a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, preds, len(domain.Horizons))

	seen := make(map[string]bool)
	for _, p := range preds {
		seen[p.Horizon] = true
		assert.Equal(t, "BTCUSDT", p.Symbol)
		assert.Equal(t, 50000.0, p.PriceAtCreation)
		assert.GreaterOrEqual(t, p.Confidence, 45.0)
		assert.LessOrEqual(t, p.Confidence, 95.0)
		assert.True(t, p.TargetTime.After(p.CreatedAt))
		if p.PredictedPrice >= p.PriceAtCreation {
			assert.Equal(t, domain.DirectionUp, p.Direction)
		} else {
			assert.Equal(t, domain.DirectionDown, p.Direction)
		}
	}
	assert.Len(t, seen, len(domain.Horizons))
}

func TestPredictionForReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000, candles: waveCandles(100, 50000)}
	a := newTestAggregator(t, market, &stubNews{})

	_, err := a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)
	market.price = 51000
	_, err = a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)

	p, ok := a.PredictionFor("BTCUSDT", 60)
	require.True(t, ok)
	assert.Equal(t, 51000.0, p.PriceAtCreation)

	_, ok = a.PredictionFor("ETHUSDT", 60)
	assert.False(t, ok)
}

func TestVerifyAccuracy(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000, candles: waveCandles(100, 50000)}
	a := newTestAggregator(t, market, &stubNews{})

	base := time.Now()
	a.now = func() time.Time { return base }

	_, err := a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)

	// Nothing due yet.
	n, err := a.VerifyAccuracy(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// One hour later the 15m and 1h predictions are due.
	market.price = 50500
	a.now = func() time.Time { return base.Add(time.Hour) }
	n, err = a.VerifyAccuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, p := range a.Predictions("BTCUSDT") {
		if p.HorizonMinutes > 60 {
			assert.False(t, p.Verified())
			continue
		}
		require.True(t, p.Verified())
		assert.Equal(t, 50500.0, *p.ActualPrice)
		assert.Greater(t, *p.Accuracy, 0.0)
		wantCorrect := p.Direction == domain.DirectionUp
		assert.Equal(t, wantCorrect, *p.DirectionCorrect)
	}

	// Verification is idempotent.
	n, err = a.VerifyAccuracy(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPerformanceMetrics(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000, candles: waveCandles(100, 50000)}
	a := newTestAggregator(t, market, &stubNews{})

	base := time.Now()
	a.now = func() time.Time { return base }
	_, err := a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)

	a.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	_, err = a.VerifyAccuracy(ctx)
	require.NoError(t, err)

	metrics := a.PerformanceMetrics()
	assert.Equal(t, len(domain.Horizons), metrics.TotalVerified)
	assert.Greater(t, metrics.AvgAccuracy, 0.0)
	assert.Len(t, metrics.ByHorizon, len(domain.Horizons))
}

func TestPredictionHistoryCap(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000, candles: waveCandles(100, 50000)}
	a, err := New(ctx, market, &stubNews{}, kv.NewMemory(), nil,
		testLogger(), Config{Seed: 1, MaxPredictions: 10})
	require.NoError(t, err)

	_, err = a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)
	_, err = a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)

	assert.Len(t, a.Predictions("BTCUSDT"), 10)
}

func TestSentimentScoreKeywords(t *testing.T) {
	assert.Positive(t, ScoreHeadline("Bitcoin surge continues as rally gains momentum"))
	assert.Negative(t, ScoreHeadline("Exchange hack triggers crash and selloff"))
	assert.Zero(t, ScoreHeadline("Bitcoin price unchanged on Tuesday"))

	// Scores are clamped.
	extreme := ScoreHeadline("surge rally bullish gain soar breakout record adoption")
	assert.LessOrEqual(t, extreme, 1.0)
}

func TestAggregateScoreWeighsRecentHeadlinesMore(t *testing.T) {
	now := time.Now()
	headlines := []domain.Headline{
		{Score: 1.0, PublishedAt: now},
		{Score: -1.0, PublishedAt: now.Add(-24 * time.Hour)},
	}
	// The fresh bullish headline dominates the day-old bearish one.
	assert.Positive(t, AggregateScore(headlines, now))
}

func TestSentimentCacheTTL(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000}
	news := &stubNews{headlines: []domain.Headline{
		{Title: "Bitcoin rally continues", PublishedAt: time.Now()},
	}}
	a := newTestAggregator(t, market, news)

	base := time.Now()
	a.now = func() time.Time { return base }

	a.SentimentScore(ctx)
	a.SentimentScore(ctx)
	assert.Equal(t, 1, news.calls, "second read within TTL hits the cache")

	a.now = func() time.Time { return base.Add(31 * time.Minute) }
	a.SentimentScore(ctx)
	assert.Equal(t, 2, news.calls, "stale cache refetches")
}

func TestSentimentFallbackOnNewsFailure(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000}
	news := &stubNews{err: errors.New("api down")}
	a := newTestAggregator(t, market, news)

	analysis := a.Analysis(ctx)
	assert.NotEmpty(t, analysis.Headlines)
	assert.GreaterOrEqual(t, analysis.Score, -1.0)
	assert.LessOrEqual(t, analysis.Score, 1.0)
}

func TestLabelThresholds(t *testing.T) {
	assert.Equal(t, domain.SentimentBullish, LabelFor(0.31))
	assert.Equal(t, domain.SentimentBearish, LabelFor(-0.31))
	assert.Equal(t, domain.SentimentNeutral, LabelFor(0.3))
	assert.Equal(t, domain.SentimentNeutral, LabelFor(-0.3))
	assert.Equal(t, domain.SentimentNeutral, LabelFor(0))
}

func TestPredictionsPersistAcrossRestart(t *testing.T) {
	ctx := context.Background()
	market := &stubMarket{price: 50000, candles: waveCandles(100, 50000)}
	store := kv.NewMemory()

	a, err := New(ctx, market, &stubNews{}, store, nil, testLogger(), Config{Seed: 1})
	require.NoError(t, err)
	_, err = a.Generate(ctx, "BTCUSDT")
	require.NoError(t, err)

	restored, err := New(ctx, market, &stubNews{}, store, nil, testLogger(), Config{Seed: 1})
	require.NoError(t, err)
	assert.Len(t, restored.Predictions("BTCUSDT"), len(domain.Horizons))
}
