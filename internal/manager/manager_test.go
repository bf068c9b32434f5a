package manager

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellidex/cryptobot/internal/domain"
	"github.com/intellidex/cryptobot/internal/kv"
	"github.com/intellidex/cryptobot/internal/notify"
	"github.com/intellidex/cryptobot/internal/strategy"
)

type fakeMarket struct{ price float64 }

func (m *fakeMarket) CurrentPrice(context.Context, string) (float64, error) { return m.price, nil }

func (m *fakeMarket) Stats24h(_ context.Context, symbol string) (domain.TickerStats, error) {
	return domain.TickerStats{Symbol: symbol, LastPrice: m.price}, nil
}

func (m *fakeMarket) Candles(context.Context, string, domain.Interval, int) ([]domain.Candle, error) {
	return nil, nil
}

func (m *fakeMarket) Subscribe(string, domain.TickerFunc) (domain.CancelFunc, error) {
	return func() {}, nil
}

// fakeSignals scripts every horizon pointing the same way, which
// makes the trend and swing bots eager and the grid bot reluctant.
type fakeSignals struct {
	dir        domain.Direction
	confidence float64
	sentiment  float64
}

func (s *fakeSignals) Predictions(symbol string) []domain.Prediction {
	out := make([]domain.Prediction, 0, len(domain.Horizons))
	for _, h := range domain.Horizons {
		p, _ := s.PredictionFor(symbol, h.Minutes)
		out = append(out, p)
	}
	return out
}

func (s *fakeSignals) PredictionFor(symbol string, horizonMinutes int) (domain.Prediction, bool) {
	predicted := 110.0
	if s.dir == domain.DirectionDown {
		predicted = 90.0
	}
	return domain.Prediction{
		Symbol:         symbol,
		HorizonMinutes: horizonMinutes,
		Direction:      s.dir,
		Confidence:     s.confidence,
		PredictedPrice: predicted,
	}, true
}

func (s *fakeSignals) SentimentScore(context.Context) float64 { return s.sentiment }

type fakeExec struct {
	market *fakeMarket
	pnls   []float64
	orders int
}

func (e *fakeExec) ExecuteOrder(_ context.Context, symbol string, side domain.OrderSide, amount float64, orderType domain.OrderType) (domain.Trade, error) {
	e.orders++
	trade := domain.Trade{
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Price:     e.market.price,
		Amount:    amount,
		Timestamp: time.Now(),
	}
	if len(e.pnls) > 0 {
		pnl := e.pnls[0]
		e.pnls = e.pnls[1:]
		trade.PnL = &pnl
	}
	return trade, nil
}

type recordingSender struct{ titles []string }

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return "recorder" }

type fixture struct {
	manager *Manager
	market  *fakeMarket
	exec    *fakeExec
	sched   *strategy.ManualScheduler
	sender  *recordingSender
}

func newFixture(t *testing.T, signals *fakeSignals) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	market := &fakeMarket{price: 100}
	exec := &fakeExec{market: market}
	sched := strategy.NewManualScheduler()

	deps := strategy.Deps{
		Market:  market,
		Signals: signals,
		Exec:    exec,
		Store:   kv.NewMemory(),
		Sched:   sched,
		Logger:  logger,
	}

	grid, err := strategy.NewGridBot(ctx, deps)
	require.NoError(t, err)
	trend, err := strategy.NewTrendBot(ctx, deps)
	require.NoError(t, err)
	swing, err := strategy.NewSwingBot(ctx, deps)
	require.NoError(t, err)

	sender := &recordingSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, nil, logger)

	return &fixture{
		manager: New(grid, trend, swing, notifier, logger),
		market:  market,
		exec:    exec,
		sched:   sched,
		sender:  sender,
	}
}

func TestManagerStartStopByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSignals{dir: domain.DirectionUp, confidence: 80, sentiment: 0.5})

	started, err := f.manager.StartBot(ctx, strategy.TrendBotName, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Contains(t, f.sender.titles, "Bot Started")

	status, err := f.manager.Status(strategy.TrendBotName)
	require.NoError(t, err)
	assert.True(t, status.(strategy.TrendStatus).Running)

	require.NoError(t, f.manager.StopBot(ctx, strategy.TrendBotName))
	assert.Contains(t, f.sender.titles, "Bot Stopped")

	status, err = f.manager.Status(strategy.TrendBotName)
	require.NoError(t, err)
	assert.False(t, status.(strategy.TrendStatus).Running)
}

func TestManagerUnknownBot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSignals{dir: domain.DirectionUp, confidence: 80, sentiment: 0.5})

	_, err := f.manager.StartBot(ctx, "Nope Bot", "BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.manager.Status("Nope Bot")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = f.manager.UpdateConfig(ctx, "Nope Bot", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagerStartAllSkipsDeclinedGrid(t *testing.T) {
	ctx := context.Background()
	// Strong directional signals: grid declines, trend and swing start.
	f := newFixture(t, &fakeSignals{dir: domain.DirectionUp, confidence: 80, sentiment: 0.5})

	started, err := f.manager.StartAll(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{strategy.TrendBotName, strategy.SwingBotName}, started)

	statuses := f.manager.StatusAll()
	require.Len(t, statuses, 3)
	assert.False(t, statuses[strategy.GridBotName].(strategy.GridStatus).Running)
	assert.True(t, statuses[strategy.TrendBotName].(strategy.TrendStatus).Running)
	assert.True(t, statuses[strategy.SwingBotName].(strategy.SwingStatus).Running)

	require.NoError(t, f.manager.StopAll(ctx))
	for name, status := range f.manager.StatusAll() {
		switch s := status.(type) {
		case strategy.GridStatus:
			assert.False(t, s.Running, name)
		case strategy.TrendStatus:
			assert.False(t, s.Running, name)
		case strategy.SwingStatus:
			assert.False(t, s.Running, name)
		default:
			t.Fatalf("unexpected status type %T for %s", status, name)
		}
	}
}

func TestManagerStartAllSecondCallReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSignals{dir: domain.DirectionUp, confidence: 80, sentiment: 0.5})

	_, err := f.manager.StartAll(ctx, "BTCUSDT")
	require.NoError(t, err)

	// Trend and swing are already running; the second sweep reports
	// their failures but still evaluates every bot.
	started, err := f.manager.StartAll(ctx, "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
	assert.Contains(t, err.Error(), domain.ErrBotRunning.Error())
	assert.Empty(t, started)
}

func TestManagerUpdateConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSignals{dir: domain.DirectionUp, confidence: 80, sentiment: 0.5})

	require.NoError(t, f.manager.UpdateConfig(ctx, strategy.GridBotName, json.RawMessage(`{"gridLevels":6}`)))

	status, err := f.manager.Status(strategy.GridBotName)
	require.NoError(t, err)
	assert.Equal(t, 6, status.(strategy.GridStatus).Config.GridLevels)
}

func TestManagerCombinedPerformance(t *testing.T) {
	ctx := context.Background()
	signals := &fakeSignals{dir: domain.DirectionUp, confidence: 80, sentiment: 0.5}
	f := newFixture(t, signals)

	_, err := f.manager.StartAll(ctx, "BTCUSDT")
	require.NoError(t, err)

	// Swing entered at start; trend enters on the first tick.
	f.sched.Tick()

	// Flattening on stop books one completed trade per bot.
	f.exec.pnls = []float64{40, -10}
	require.NoError(t, f.manager.StopAll(ctx))

	perf := f.manager.CombinedPerformance()
	assert.Equal(t, 2, perf.TotalTrades)
	assert.InDelta(t, 30.0, perf.TotalPnL, 1e-9)
	assert.InDelta(t, 50.0, perf.WinRate, 1e-9)
	assert.InDelta(t, 0.0, perf.GridProfit, 1e-9)
	assert.Empty(t, perf.ActiveBots)
}
