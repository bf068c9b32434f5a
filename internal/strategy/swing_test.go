package strategy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellidex/cryptobot/internal/domain"
)

func swingSignals(dir domain.Direction, conf7d, sentiment, target3d, target7d float64) *fakeSignals {
	return &fakeSignals{
		preds: map[int]domain.Prediction{
			4320:  {Direction: dir, Confidence: 70, PredictedPrice: target3d},
			10080: {Direction: dir, Confidence: conf7d, PredictedPrice: target7d},
		},
		sentiment: sentiment,
	}
}

func TestSwingEntersOnStartWhenAligned(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{price: 100}
	f := newBotFixture(t, market, swingSignals(domain.DirectionUp, 80, 0.5, 105, 112))

	bot, err := NewSwingBot(ctx, f.deps)
	require.NoError(t, err)
	started, err := bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, started)

	// Start evaluates entry immediately, before any scheduler tick.
	require.Len(t, f.exec.orders, 1)
	assert.Equal(t, domain.OrderSideBuy, f.exec.orders[0].Side)
	assert.Equal(t, domain.OrderTypePrediction, f.exec.orders[0].Type)
	assert.InDelta(t, 0.15, f.exec.orders[0].Amount, 1e-12)

	status := bot.Snapshot()
	require.Len(t, status.Positions, 1)
	pos := status.Positions[0]
	assert.Equal(t, domain.DirectionUp, pos.Direction)
	assert.InDelta(t, 105.0, pos.Target3d, 1e-9)
	assert.InDelta(t, 112.0, pos.Target7d, 1e-9)
	assert.False(t, pos.PartialDone)
}

func TestSwingEntryGates(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		signals *fakeSignals
	}{
		{
			name: "3d and 7d disagree",
			signals: &fakeSignals{
				preds: map[int]domain.Prediction{
					4320:  {Direction: domain.DirectionUp, Confidence: 70, PredictedPrice: 105},
					10080: {Direction: domain.DirectionDown, Confidence: 80, PredictedPrice: 95},
				},
				sentiment: 0.5,
			},
		},
		{
			name:    "7d confidence below threshold",
			signals: swingSignals(domain.DirectionUp, 60, 0.5, 105, 112),
		},
		{
			name:    "sentiment not aligned",
			signals: swingSignals(domain.DirectionUp, 80, 0.1, 105, 112),
		},
		{
			name: "missing long horizons",
			signals: &fakeSignals{
				preds:     map[int]domain.Prediction{60: {Direction: domain.DirectionUp, Confidence: 90}},
				sentiment: 0.5,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBotFixture(t, &fakeMarket{price: 100}, tc.signals)
			bot, err := NewSwingBot(ctx, f.deps)
			require.NoError(t, err)

			started, err := bot.Start(ctx, "BTCUSDT")
			require.NoError(t, err)
			assert.True(t, started) // bot runs but holds no position
			assert.Empty(t, f.exec.orders)
			assert.Empty(t, bot.Snapshot().Positions)
		})
	}
}

func TestSwingPartialThenFullExit(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{price: 100}
	signals := swingSignals(domain.DirectionUp, 80, 0.5, 105, 112)
	f := newBotFixture(t, market, signals)

	bot, err := NewSwingBot(ctx, f.deps)
	require.NoError(t, err)
	_, err = bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, f.exec.orders, 1)

	// 3d target reached: half the position comes off.
	market.price = 106
	f.exec.queuePnL(0.45)
	f.sched.Tick()

	status := bot.Snapshot()
	require.Len(t, status.Positions, 1)
	assert.True(t, status.Positions[0].PartialDone)
	assert.InDelta(t, 0.075, status.Positions[0].Amount, 1e-12)
	assert.InDelta(t, 0.45, status.Positions[0].PartialPnL, 1e-9)
	require.Len(t, f.exec.orders, 2)
	assert.Equal(t, domain.OrderSideSell, f.exec.orders[1].Side)
	assert.InDelta(t, 0.075, f.exec.orders[1].Amount, 1e-12)
	assert.Equal(t, 0, status.TradeCount) // swing not complete yet

	// 7d target reached: the remainder exits and both legs are booked
	// as one completed swing. Lower the 7d confidence so the entry
	// loop does not immediately re-enter in the same tick.
	p := signals.preds[10080]
	p.Confidence = 50
	signals.preds[10080] = p

	market.price = 113
	f.exec.queuePnL(0.9)
	f.sched.Tick()

	status = bot.Snapshot()
	assert.Empty(t, status.Positions)
	assert.Equal(t, 1, status.TradeCount)
	assert.InDelta(t, 1.35, status.TotalPnL, 1e-9)
	assert.InDelta(t, 100.0, status.WinRate, 1e-9)
	assert.Contains(t, status.LastExitReason, "7d target")
}

func TestSwingExitsAfterHoldLimit(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{price: 100}
	signals := swingSignals(domain.DirectionUp, 80, 0.5, 105, 112)
	f := newBotFixture(t, market, signals)

	bot, err := NewSwingBot(ctx, f.deps)
	require.NoError(t, err)
	_, err = bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, bot.Snapshot().Positions, 1)

	// Eight days pass with the price going nowhere.
	bot.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	signals.sentiment = 0.1 // also blocks re-entry
	f.exec.queuePnL(-0.3)
	f.sched.Tick()

	status := bot.Snapshot()
	assert.Empty(t, status.Positions)
	assert.Equal(t, 1, status.TradeCount)
	assert.InDelta(t, -0.3, status.TotalPnL, 1e-9)
	assert.InDelta(t, 0.0, status.WinRate, 1e-9)
	assert.Contains(t, status.LastExitReason, "maximum hold")
}

func TestSwingExitsOnSentimentReversal(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{price: 100}
	signals := swingSignals(domain.DirectionUp, 80, 0.5, 105, 112)
	f := newBotFixture(t, market, signals)

	bot, err := NewSwingBot(ctx, f.deps)
	require.NoError(t, err)
	_, err = bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)

	signals.sentiment = -0.5
	f.exec.queuePnL(-1)
	f.sched.Tick()

	status := bot.Snapshot()
	assert.Empty(t, status.Positions)
	assert.Contains(t, status.LastExitReason, "sentiment reversed")
}

func TestSwingStopFlattens(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, swingSignals(domain.DirectionUp, 80, 0.5, 105, 112))

	bot, err := NewSwingBot(ctx, f.deps)
	require.NoError(t, err)
	_, err = bot.Start(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, bot.Snapshot().Positions, 1)

	f.exec.queuePnL(0.2)
	require.NoError(t, bot.Stop(ctx))

	assert.False(t, bot.Running())
	assert.Equal(t, 0, f.sched.Active())
	status := bot.Snapshot()
	assert.Empty(t, status.Positions)
	assert.Equal(t, "bot stopped", status.LastExitReason)
}

func TestSwingUpdateConfig(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t, &fakeMarket{price: 100}, swingSignals(domain.DirectionUp, 80, 0.5, 105, 112))

	bot, err := NewSwingBot(ctx, f.deps)
	require.NoError(t, err)

	require.NoError(t, bot.UpdateConfig(ctx, json.RawMessage(`{"holdDays":3,"partialExitPercent":25}`)))
	cfg := bot.Snapshot().Config
	assert.Equal(t, 3, cfg.HoldDays)
	assert.InDelta(t, 25.0, cfg.PartialExitPercent, 1e-9)

	err = bot.UpdateConfig(ctx, json.RawMessage(`{"partialExitPercent":150}`))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}
