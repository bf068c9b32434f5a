package strategy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellidex/cryptobot/internal/domain"
)

func TestGridActivatesOnThinPredictionData(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)

	ok, reason := bot.ShouldActivate(ctx, "BTCUSDT")
	assert.True(t, ok)
	assert.Contains(t, reason, "insufficient prediction data")
}

func TestGridActivatesOnHorizonDisagreement(t *testing.T) {
	ctx := context.Background()
	signals := alignedSignals(domain.DirectionUp, 80, 0.5, 110)
	p := signals.preds[1440]
	p.Direction = domain.DirectionDown
	signals.preds[1440] = p
	f := newBotFixture(t, &fakeMarket{price: 100}, signals)

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)

	ok, reason := bot.ShouldActivate(ctx, "BTCUSDT")
	assert.True(t, ok)
	assert.Contains(t, reason, "1h and 1d directions disagree")
}

func TestGridDeclinesTrendingMarket(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, alignedSignals(domain.DirectionUp, 80, 0.5, 110))

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)

	started, err := bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, started)
	assert.False(t, bot.Running())
	assert.Equal(t, 0, f.sched.Active())
}

func TestGridLevelLayout(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)
	started, err := bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, started)

	levels := bot.Snapshot().Levels
	require.Len(t, levels, 11) // 10 intervals -> 11 rungs
	assert.InDelta(t, 95.0, levels[0].Price, 1e-9)
	assert.InDelta(t, 105.0, levels[10].Price, 1e-9)
	for _, lvl := range levels {
		assert.InDelta(t, lvl.Price*1.01, lvl.SellTarget, 1e-9)
		assert.Equal(t, lvl.Price < 100, lvl.BuyPlaced)
	}
}

func TestGridBuySellCycleAccumulatesProfit(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{price: 100}
	f := newBotFixture(t, market, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)
	started, err := bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, started)

	// Price drops through the 96-99 rungs: four limit buys fill.
	market.price = 96
	f.sched.Tick()
	require.Len(t, f.exec.orders, 4)
	for _, o := range f.exec.orders {
		assert.Equal(t, domain.OrderSideBuy, o.Side)
		assert.Equal(t, domain.OrderTypeLimit, o.Type)
		assert.InDelta(t, 0.01, o.Amount, 1e-12)
	}
	assert.Equal(t, 4, bot.Snapshot().ActiveLevels)

	// Rally past every sell target: all four rungs cycle and re-arm.
	market.price = 101
	f.sched.Tick()
	require.Len(t, f.exec.orders, 8)

	want := ((96.96 - 96) + (97.97 - 96) + (98.98 - 96) + (99.99 - 96)) * 0.01
	assert.InDelta(t, want, bot.TotalProfit(), 1e-9)
	assert.Equal(t, 0, bot.Snapshot().ActiveLevels)

	// Re-armed rungs buy again on the next dip.
	market.price = 96
	f.sched.Tick()
	assert.Len(t, f.exec.orders, 12)
	assert.Equal(t, 4, bot.Snapshot().ActiveLevels)
}

func TestGridStopFlattensInventory(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{price: 100}
	f := newBotFixture(t, market, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)
	_, err = bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)

	market.price = 96
	f.sched.Tick() // four fills

	require.NoError(t, bot.Stop(ctx))

	last := f.exec.orders[len(f.exec.orders)-1]
	assert.Equal(t, domain.OrderSideSell, last.Side)
	assert.Equal(t, domain.OrderTypeMarket, last.Type)
	assert.InDelta(t, 0.04, last.Amount, 1e-12)
	assert.False(t, bot.Running())
	assert.Equal(t, 0, f.sched.Active())
	assert.Equal(t, 0, bot.Snapshot().ActiveLevels)
}

func TestGridDoubleStart(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)
	_, err = bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)

	_, err = bot.Start(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrBotRunning)
}

func TestGridUpdateConfigPersists(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)

	require.NoError(t, bot.UpdateConfig(ctx, json.RawMessage(`{"gridLevels":4,"profitPercent":2}`)))
	cfg := bot.Snapshot().Config
	assert.Equal(t, 4, cfg.GridLevels)
	assert.InDelta(t, 2.0, cfg.ProfitPercent, 1e-9)
	assert.InDelta(t, 5.0, cfg.RangePercent, 1e-9) // untouched field keeps its value

	// A new bot over the same store restores the saved config.
	bot2, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)
	assert.Equal(t, 4, bot2.Snapshot().Config.GridLevels)
}

func TestGridUpdateConfigRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, &fakeSignals{})

	bot, err := NewGridBot(ctx, f.deps)
	require.NoError(t, err)

	err = bot.UpdateConfig(ctx, json.RawMessage(`{"gridLevels":1}`))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Equal(t, 10, bot.Snapshot().Config.GridLevels)
}
