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
	// TrendBotName is the display name used for order attribution and
	// manager lookups.
	TrendBotName = "Trend Trading Bot"

	trendConfigKey    = "trendBotConfig"
	trendEntryEvery   = 30 * time.Second
	trendMonitorEvery = 10 * time.Second
)

// TrendConfig is the trend bot's strategy parameters.
type TrendConfig struct {
	PositionSize        float64 `json:"positionSize"`
	MinConfidence       float64 `json:"minConfidence"`
	MinSentiment        float64 `json:"minSentiment"`
	TrailingStopPercent float64 `json:"trailingStopPercent"`
}

// DefaultTrendConfig returns the stock parameters.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		PositionSize:        0.1,
		MinConfidence:       75,
		MinSentiment:        0.2,
		TrailingStopPercent: 2,
	}
}

func (c TrendConfig) validate() error {
	if c.PositionSize <= 0 || c.TrailingStopPercent <= 0 {
		return fmt.Errorf("trend parameters must be positive: %w", domain.ErrInvalidOrder)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("minConfidence %v out of range: %w", c.MinConfidence, domain.ErrInvalidOrder)
	}
	return nil
}

// TrendDecision is the outcome of a condition check. Reason explains
// a negative decision for observability.
type TrendDecision struct {
	ShouldTrade   bool
	Direction     domain.Direction
	AvgConfidence float64
	Reason        string
}

// TrendPosition tracks the bot's single open exposure. WaterMark is
// the most favorable price seen since entry.
type TrendPosition struct {
	Direction  domain.Direction `json:"direction"`
	Amount     float64          `json:"amount"`
	EntryPrice float64          `json:"entryPrice"`
	WaterMark  float64          `json:"waterMark"`
	OpenedAt   time.Time        `json:"openedAt"`
}

// TrendStatus is the trend bot's state snapshot.
type TrendStatus struct {
	Name       string         `json:"name"`
	Running    bool           `json:"running"`
	Symbol     string         `json:"symbol"`
	Position   *TrendPosition `json:"position"`
	TradeCount int            `json:"tradeCount"`
	WinRate    float64        `json:"winRate"`
	TotalPnL   float64        `json:"totalPnL"`
	Config     TrendConfig    `json:"config"`
}

// TrendBot rides strong aligned moves: it enters when the 1h, 4h and
// 1d predictions agree with high confidence and aligned sentiment,
// and exits on a trailing stop or when the alignment breaks.
type TrendBot struct {
	mu         sync.Mutex
	running    bool
	symbol     string
	position   *TrendPosition
	tradeCount int
	winCount   int
	totalPnL   float64
	cfg        TrendConfig

	cancelEntry   domain.CancelFunc
	cancelMonitor domain.CancelFunc
	deps          Deps
	logger        *slog.Logger
}

var _ Bot = (*TrendBot)(nil)

// NewTrendBot builds the bot, restoring any persisted config.
func NewTrendBot(ctx context.Context, deps Deps) (*TrendBot, error) {
	cfg := DefaultTrendConfig()
	if err := loadConfig(ctx, deps.Store, trendConfigKey, &cfg); err != nil {
		return nil, fmt.Errorf("trend: load config: %w", err)
	}

	return &TrendBot{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "trend_bot")),
	}, nil
}

// Name implements Bot.
func (b *TrendBot) Name() string { return TrendBotName }

// CheckConditions evaluates the entry preconditions for symbol.
func (b *TrendBot) CheckConditions(ctx context.Context, symbol string) TrendDecision {
	b.mu.Lock()
	cfg := b.cfg
	b.mu.Unlock()

	preds := b.deps.Signals.Predictions(symbol)
	if len(preds) < 3 {
		return TrendDecision{Reason: "insufficient prediction data"}
	}

	p1h, ok1h := b.deps.Signals.PredictionFor(symbol, 60)
	p4h, ok4h := b.deps.Signals.PredictionFor(symbol, 240)
	p1d, ok1d := b.deps.Signals.PredictionFor(symbol, 1440)
	if !ok1h || !ok4h || !ok1d {
		return TrendDecision{Reason: "missing 1h/4h/1d predictions"}
	}

	if p1h.Direction != p4h.Direction || p4h.Direction != p1d.Direction {
		return TrendDecision{Reason: "1h/4h/1d direction disagreement"}
	}
	direction := p1h.Direction

	avgConfidence := (p1h.Confidence + p4h.Confidence + p1d.Confidence) / 3
	if avgConfidence < cfg.MinConfidence {
		return TrendDecision{
			Direction:     direction,
			AvgConfidence: avgConfidence,
			Reason:        fmt.Sprintf("average confidence %.1f below minimum %.1f", avgConfidence, cfg.MinConfidence),
		}
	}

	sentiment := b.deps.Signals.SentimentScore(ctx)
	aligned := (direction == domain.DirectionUp && sentiment >= cfg.MinSentiment) ||
		(direction == domain.DirectionDown && sentiment <= -cfg.MinSentiment)
	if !aligned {
		return TrendDecision{
			Direction:     direction,
			AvgConfidence: avgConfidence,
			Reason:        fmt.Sprintf("sentiment %.2f not aligned with %s trend", sentiment, direction),
		}
	}

	return TrendDecision{
		ShouldTrade:   true,
		Direction:     direction,
		AvgConfidence: avgConfidence,
		Reason:        "1h/4h/1d aligned with confident sentiment",
	}
}

// Start begins the entry and monitor loops. Unlike the grid bot there
// is no activation gate: the bot idles until conditions align.
func (b *TrendBot) Start(ctx context.Context, symbol string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return false, fmt.Errorf("trend: %w", domain.ErrBotRunning)
	}

	b.symbol = symbol
	b.running = true
	b.cancelEntry = b.deps.Sched.Every(trendEntryEvery, b.entryTick)
	b.cancelMonitor = b.deps.Sched.Every(trendMonitorEvery, b.monitorTick)

	b.logger.Info("started", slog.String("symbol", symbol))
	return true, nil
}

func (b *TrendBot) entryTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	b.mu.Lock()
	if !b.running || b.position != nil {
		b.mu.Unlock()
		return
	}
	symbol := b.symbol
	b.mu.Unlock()

	decision := b.CheckConditions(ctx, symbol)
	if !decision.ShouldTrade {
		b.logger.Debug("entry declined", slog.String("reason", decision.Reason))
		return
	}

	b.enterTrade(ctx, symbol, decision)
}

// enterTrade opens one position in the agreed direction. It is a
// no-op when a position is already open.
func (b *TrendBot) enterTrade(ctx context.Context, symbol string, decision TrendDecision) bool {
	b.mu.Lock()
	if b.position != nil || !b.running {
		b.mu.Unlock()
		return false
	}
	amount := b.cfg.PositionSize
	b.mu.Unlock()

	side := domain.OrderSideBuy
	if decision.Direction == domain.DirectionDown {
		side = domain.OrderSideSell
	}

	trade, err := b.deps.Exec.ExecuteOrder(ctx, symbol, side, amount, domain.OrderTypePrediction)
	if err != nil {
		b.logger.Warn("entry order failed",
			slog.String("direction", string(decision.Direction)), slog.Any("error", err))
		return false
	}

	b.mu.Lock()
	b.position = &TrendPosition{
		Direction:  decision.Direction,
		Amount:     amount,
		EntryPrice: trade.Price,
		WaterMark:  trade.Price,
		OpenedAt:   trade.Timestamp,
	}
	b.mu.Unlock()

	b.logger.Info("entered position",
		slog.String("direction", string(decision.Direction)),
		slog.Float64("price", trade.Price),
		slog.Float64("confidence", decision.AvgConfidence))
	return true
}

func (b *TrendBot) monitorTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	b.mu.Lock()
	if !b.running || b.position == nil {
		b.mu.Unlock()
		return
	}
	symbol := b.symbol
	pos := *b.position
	trailing := b.cfg.TrailingStopPercent
	b.mu.Unlock()

	price, err := b.deps.Market.CurrentPrice(ctx, symbol)
	if err != nil {
		b.logger.Warn("monitor price fetch failed, skipping tick", slog.Any("error", err))
		return
	}

	// Advance the water-mark to the most favorable extreme.
	b.mu.Lock()
	if b.position != nil {
		if pos.Direction == domain.DirectionUp && price > b.position.WaterMark {
			b.position.WaterMark = price
		}
		if pos.Direction == domain.DirectionDown && price < b.position.WaterMark {
			b.position.WaterMark = price
		}
		pos = *b.position
	}
	b.mu.Unlock()

	retrace := trailing / 100
	stopHit := (pos.Direction == domain.DirectionUp && price < pos.WaterMark*(1-retrace)) ||
		(pos.Direction == domain.DirectionDown && price > pos.WaterMark*(1+retrace))
	if stopHit {
		b.exitTrade(ctx, fmt.Sprintf("trailing stop from water-mark %.2f", pos.WaterMark))
		return
	}

	if decision := b.CheckConditions(ctx, symbol); !decision.ShouldTrade {
		b.exitTrade(ctx, "entry conditions no longer hold: "+decision.Reason)
	}
}

// exitTrade flattens the open position and books its realized pnl.
func (b *TrendBot) exitTrade(ctx context.Context, reason string) {
	b.mu.Lock()
	if b.position == nil {
		b.mu.Unlock()
		return
	}
	pos := *b.position
	symbol := b.symbol
	b.mu.Unlock()

	side := domain.OrderSideSell
	if pos.Direction == domain.DirectionDown {
		side = domain.OrderSideBuy
	}

	trade, err := b.deps.Exec.ExecuteOrder(ctx, symbol, side, pos.Amount, domain.OrderTypeMarket)
	if err != nil {
		b.logger.Error("exit order failed", slog.String("reason", reason), slog.Any("error", err))
		return
	}

	var pnl float64
	if trade.PnL != nil {
		pnl = *trade.PnL
	}

	b.mu.Lock()
	b.position = nil
	b.tradeCount++
	b.totalPnL += pnl
	if pnl > 0 {
		b.winCount++
	}
	b.mu.Unlock()

	b.logger.Info("exited position",
		slog.String("reason", reason),
		slog.Float64("pnl", pnl))
}

// Stop cancels both loops and flattens any open position before
// returning.
func (b *TrendBot) Stop(ctx context.Context) error {
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

	b.exitTrade(ctx, "bot stopped")
	b.logger.Info("stopped")
	return nil
}

// Running implements Bot.
func (b *TrendBot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Status implements Bot.
func (b *TrendBot) Status() any {
	return b.Snapshot()
}

// Snapshot returns the typed status.
func (b *TrendBot) Snapshot() TrendStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := TrendStatus{
		Name:       TrendBotName,
		Running:    b.running,
		Symbol:     b.symbol,
		TradeCount: b.tradeCount,
		TotalPnL:   b.totalPnL,
		Config:     b.cfg,
	}
	if b.position != nil {
		pos := *b.position
		status.Position = &pos
	}
	if b.tradeCount > 0 {
		status.WinRate = float64(b.winCount) / float64(b.tradeCount) * 100
	}
	return status
}

// UpdateConfig applies a partial JSON patch to the config and
// persists the result.
func (b *TrendBot) UpdateConfig(ctx context.Context, patch json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.cfg
	if err := json.Unmarshal(patch, &next); err != nil {
		return fmt.Errorf("trend: decode config patch: %w", err)
	}
	if err := next.validate(); err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	if err := saveConfig(ctx, b.deps.Store, trendConfigKey, next); err != nil {
		return fmt.Errorf("trend: persist config: %w", err)
	}
	b.cfg = next
	return nil
}
