package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

const (
	// SwingBotName is the display name used for order attribution and
	// manager lookups.
	SwingBotName = "Swing Trading Bot"

	swingConfigKey    = "swingBotConfig"
	swingEntryEvery   = time.Hour
	swingMonitorEvery = 5 * time.Minute

	// swingSentimentReversal is the magnitude by which sentiment must
	// oppose the open side to force a full exit.
	swingSentimentReversal = 0.3
)

// SwingConfig is the swing bot's strategy parameters.
type SwingConfig struct {
	PositionSize       float64 `json:"positionSize"`
	MinConfidence7d    float64 `json:"minConfidence7d"`
	MinSentiment24h    float64 `json:"minSentiment24h"`
	PartialExitPercent float64 `json:"partialExitPercent"`
	HoldDays           int     `json:"holdDays"`
}

// DefaultSwingConfig returns the stock parameters.
func DefaultSwingConfig() SwingConfig {
	return SwingConfig{
		PositionSize:       0.15,
		MinConfidence7d:    65,
		MinSentiment24h:    0.3,
		PartialExitPercent: 50,
		HoldDays:           7,
	}
}

func (c SwingConfig) validate() error {
	if c.PositionSize <= 0 || c.HoldDays <= 0 {
		return fmt.Errorf("swing parameters must be positive: %w", domain.ErrInvalidOrder)
	}
	if c.PartialExitPercent <= 0 || c.PartialExitPercent >= 100 {
		return fmt.Errorf("partialExitPercent %v out of range: %w", c.PartialExitPercent, domain.ErrInvalidOrder)
	}
	return nil
}

// SwingPosition is one multi-day exposure with its 3-day and 7-day
// price targets captured at entry.
type SwingPosition struct {
	Direction    domain.Direction `json:"direction"`
	Amount       float64          `json:"amount"`
	EntryPrice   float64          `json:"entryPrice"`
	Target3d     float64          `json:"target3d"`
	Target7d     float64          `json:"target7d"`
	Confidence7d float64          `json:"confidence7d"`
	Sentiment    float64          `json:"sentiment"`
	OpenedAt     time.Time        `json:"openedAt"`
	PartialDone  bool             `json:"partialDone"`
	PartialPnL   float64          `json:"partialPnL"`
}

// SwingStatus is the swing bot's state snapshot. Positions holds zero
// or one entries.
type SwingStatus struct {
	Name           string          `json:"name"`
	Running        bool            `json:"running"`
	Symbol         string          `json:"symbol"`
	Positions      []SwingPosition `json:"positions"`
	TradeCount     int             `json:"tradeCount"`
	WinRate        float64         `json:"winRate"`
	TotalPnL       float64         `json:"totalPnL"`
	LastExitReason string          `json:"lastExitReason"`
	Config         SwingConfig     `json:"config"`
}

// SwingBot trades medium-conviction multi-day moves: it enters when
// the 3-day and 7-day predictions agree, scales half out at the 3-day
// target and fully exits at the 7-day target, the hold limit, or a
// sentiment reversal.
type SwingBot struct {
	mu             sync.Mutex
	running        bool
	symbol         string
	position       *SwingPosition
	tradeCount     int
	winCount       int
	totalPnL       float64
	lastExitReason string
	cfg            SwingConfig

	cancelEntry   domain.CancelFunc
	cancelMonitor domain.CancelFunc
	deps          Deps
	logger        *slog.Logger
	now           func() time.Time
}

var _ Bot = (*SwingBot)(nil)

// NewSwingBot builds the bot, restoring any persisted config.
func NewSwingBot(ctx context.Context, deps Deps) (*SwingBot, error) {
	cfg := DefaultSwingConfig()
	if err := loadConfig(ctx, deps.Store, swingConfigKey, &cfg); err != nil {
		return nil, fmt.Errorf("swing: load config: %w", err)
	}

	return &SwingBot{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "swing_bot")),
		now:    time.Now,
	}, nil
}

// Name implements Bot.
func (b *SwingBot) Name() string { return SwingBotName }

// Start begins the entry and monitor loops and immediately evaluates
// entry once, so a freshly started bot does not wait an hour for its
// first look at the market.
func (b *SwingBot) Start(ctx context.Context, symbol string) (bool, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return false, fmt.Errorf("swing: %w", domain.ErrBotRunning)
	}

	b.symbol = symbol
	b.running = true
	b.cancelEntry = b.deps.Sched.Every(swingEntryEvery, b.entryTick)
	b.cancelMonitor = b.deps.Sched.Every(swingMonitorEvery, b.monitorTick)
	b.mu.Unlock()

	b.logger.Info("started", slog.String("symbol", symbol))
	b.tryEnter(ctx, symbol)
	return true, nil
}

func (b *SwingBot) entryTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	b.mu.Lock()
	if !b.running || b.position != nil {
		b.mu.Unlock()
		return
	}
	symbol := b.symbol
	b.mu.Unlock()

	b.tryEnter(ctx, symbol)
}

// tryEnter opens a position when the 3d and 7d forecasts agree with
// enough conviction and sentiment backs the move.
func (b *SwingBot) tryEnter(ctx context.Context, symbol string) {
	b.mu.Lock()
	if b.position != nil || !b.running {
		b.mu.Unlock()
		return
	}
	cfg := b.cfg
	b.mu.Unlock()

	p3d, ok3d := b.deps.Signals.PredictionFor(symbol, 4320)
	p7d, ok7d := b.deps.Signals.PredictionFor(symbol, 10080)
	if !ok3d || !ok7d {
		b.logger.Debug("entry declined", slog.String("reason", "missing 3d/7d predictions"))
		return
	}
	if p3d.Direction != p7d.Direction {
		b.logger.Debug("entry declined", slog.String("reason", "3d and 7d directions disagree"))
		return
	}
	if p7d.Confidence < cfg.MinConfidence7d {
		b.logger.Debug("entry declined",
			slog.String("reason", fmt.Sprintf("7d confidence %.1f below minimum %.1f", p7d.Confidence, cfg.MinConfidence7d)))
		return
	}

	direction := p7d.Direction
	sentiment := b.deps.Signals.SentimentScore(ctx)
	aligned := (direction == domain.DirectionUp && sentiment >= cfg.MinSentiment24h) ||
		(direction == domain.DirectionDown && sentiment <= -cfg.MinSentiment24h)
	if !aligned {
		b.logger.Debug("entry declined",
			slog.String("reason", fmt.Sprintf("sentiment %.2f not aligned with %s swing", sentiment, direction)))
		return
	}

	side := domain.OrderSideBuy
	if direction == domain.DirectionDown {
		side = domain.OrderSideSell
	}

	trade, err := b.deps.Exec.ExecuteOrder(ctx, symbol, side, cfg.PositionSize, domain.OrderTypePrediction)
	if err != nil {
		b.logger.Warn("entry order failed",
			slog.String("direction", string(direction)), slog.Any("error", err))
		return
	}

	b.mu.Lock()
	b.position = &SwingPosition{
		Direction:    direction,
		Amount:       cfg.PositionSize,
		EntryPrice:   trade.Price,
		Target3d:     p3d.PredictedPrice,
		Target7d:     p7d.PredictedPrice,
		Confidence7d: p7d.Confidence,
		Sentiment:    sentiment,
		OpenedAt:     trade.Timestamp,
	}
	b.mu.Unlock()

	b.logger.Info("entered position",
		slog.String("direction", string(direction)),
		slog.Float64("price", trade.Price),
		slog.Float64("target3d", p3d.PredictedPrice),
		slog.Float64("target7d", p7d.PredictedPrice))
}

func (b *SwingBot) monitorTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	b.mu.Lock()
	if !b.running || b.position == nil {
		b.mu.Unlock()
		return
	}
	symbol := b.symbol
	pos := *b.position
	cfg := b.cfg
	b.mu.Unlock()

	price, err := b.deps.Market.CurrentPrice(ctx, symbol)
	if err != nil {
		b.logger.Warn("monitor price fetch failed, skipping tick", slog.Any("error", err))
		return
	}

	targetReached := func(target float64) bool {
		if pos.Direction == domain.DirectionUp {
			return price >= target
		}
		return price <= target
	}

	// Scale half out at the 3-day target, once.
	if !pos.PartialDone && targetReached(pos.Target3d) {
		b.partialExit(ctx, symbol, pos, cfg, price)
		b.mu.Lock()
		if b.position == nil {
			b.mu.Unlock()
			return
		}
		pos = *b.position
		b.mu.Unlock()
	}

	// Full exit on the first trigger to fire.
	switch {
	case targetReached(pos.Target7d):
		b.fullExit(ctx, "7d target reached")
	case b.now().Sub(pos.OpenedAt) >= time.Duration(cfg.HoldDays)*24*time.Hour:
		b.fullExit(ctx, fmt.Sprintf("maximum hold of %d days elapsed", cfg.HoldDays))
	default:
		sentiment := b.deps.Signals.SentimentScore(ctx)
		reversed := (pos.Direction == domain.DirectionUp && sentiment < -swingSentimentReversal) ||
			(pos.Direction == domain.DirectionDown && sentiment > swingSentimentReversal)
		if reversed {
			b.fullExit(ctx, fmt.Sprintf("sentiment reversed to %.2f", sentiment))
		}
	}
}

// partialExit closes PartialExitPercent of the position at the 3-day
// target and stores the realized chunk for the final tally.
func (b *SwingBot) partialExit(ctx context.Context, symbol string, pos SwingPosition, cfg SwingConfig, price float64) {
	partialAmount := pos.Amount * cfg.PartialExitPercent / 100

	side := domain.OrderSideSell
	if pos.Direction == domain.DirectionDown {
		side = domain.OrderSideBuy
	}

	trade, err := b.deps.Exec.ExecuteOrder(ctx, symbol, side, partialAmount, domain.OrderTypeMarket)
	if err != nil {
		b.logger.Warn("partial exit failed", slog.Any("error", err))
		return
	}

	var pnl float64
	if trade.PnL != nil {
		pnl = *trade.PnL
	}

	b.mu.Lock()
	if b.position != nil {
		b.position.Amount -= partialAmount
		b.position.PartialDone = true
		b.position.PartialPnL = pnl
	}
	b.mu.Unlock()

	b.logger.Info("partial exit at 3d target",
		slog.Float64("amount", partialAmount),
		slog.Float64("price", price),
		slog.Float64("pnl", pnl))
}

// fullExit closes the remainder and books partial + remaining pnl as
// one completed swing.
func (b *SwingBot) fullExit(ctx context.Context, reason string) {
	b.mu.Lock()
	if b.position == nil {
		b.mu.Unlock()
		return
	}
	pos := *b.position
	symbol := b.symbol
	b.mu.Unlock()

	var remainingPnL float64
	if pos.Amount > 0 {
		side := domain.OrderSideSell
		if pos.Direction == domain.DirectionDown {
			side = domain.OrderSideBuy
		}
		trade, err := b.deps.Exec.ExecuteOrder(ctx, symbol, side, pos.Amount, domain.OrderTypeMarket)
		if err != nil {
			b.logger.Error("full exit failed", slog.String("reason", reason), slog.Any("error", err))
			return
		}
		if trade.PnL != nil {
			remainingPnL = *trade.PnL
		}
	}

	total := pos.PartialPnL + remainingPnL

	b.mu.Lock()
	b.position = nil
	b.tradeCount++
	b.totalPnL += total
	b.lastExitReason = reason
	if total > 0 {
		b.winCount++
	}
	b.mu.Unlock()

	b.logger.Info("exited position",
		slog.String("reason", reason),
		slog.Float64("partialPnL", pos.PartialPnL),
		slog.Float64("remainingPnL", remainingPnL),
		slog.Float64("totalPnL", total))
}

// Stop cancels both loops and flattens any open position before
// returning.
func (b *SwingBot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	cancelEntry, cancelMonitor := b.cancelEntry, b.cancelMonitor
	b.cancelEntry, b.cancelMonitor = nil, nil
	b.mu.Unlock()

	if cancelEntry != nil {
		cancelEntry()
	}
	if cancelMonitor != nil {
		cancelMonitor()
	}

	b.fullExit(ctx, "bot stopped")
	b.logger.Info("stopped")
	return nil
}

// Running implements Bot.
func (b *SwingBot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Status implements Bot.
func (b *SwingBot) Status() any {
	return b.Snapshot()
}

// Snapshot returns the typed status.
func (b *SwingBot) Snapshot() SwingStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := SwingStatus{
		Name:           SwingBotName,
		Running:        b.running,
		Symbol:         b.symbol,
		Positions:      []SwingPosition{},
		TradeCount:     b.tradeCount,
		TotalPnL:       b.totalPnL,
		LastExitReason: b.lastExitReason,
		Config:         b.cfg,
	}
	if b.position != nil {
		status.Positions = append(status.Positions, *b.position)
	}
	if b.tradeCount > 0 {
		status.WinRate = float64(b.winCount) / float64(b.tradeCount) * 100
	}
	return status
}

// UpdateConfig applies a partial JSON patch to the config and
// persists the result.
func (b *SwingBot) UpdateConfig(ctx context.Context, patch json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.cfg
	if err := json.Unmarshal(patch, &next); err != nil {
		return fmt.Errorf("swing: decode config patch: %w", err)
	}
	if err := next.validate(); err != nil {
		return fmt.Errorf("swing: %w", err)
	}
	if err := saveConfig(ctx, b.deps.Store, swingConfigKey, next); err != nil {
		return fmt.Errorf("swing: persist config: %w", err)
	}
	b.cfg = next
	return nil
}
