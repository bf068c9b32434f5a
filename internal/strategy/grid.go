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
	// GridBotName is the display name used for order attribution and
	// manager lookups.
	GridBotName = "Grid Trading Bot"

	gridConfigKey      = "gridBotConfig"
	gridMonitorEvery   = 10 * time.Second
	gridLowConfidence  = 60
	gridMixedSentiment = 0.3
)

// GridConfig is the grid bot's strategy parameters.
type GridConfig struct {
	GridLevels       int     `json:"gridLevels"`
	RangePercent     float64 `json:"rangePercent"`
	QuantityPerLevel float64 `json:"quantityPerLevel"`
	ProfitPercent    float64 `json:"profitPercent"`
}

// DefaultGridConfig returns the stock parameters.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		GridLevels:       10,
		RangePercent:     5,
		QuantityPerLevel: 0.01,
		ProfitPercent:    1,
	}
}

func (c GridConfig) validate() error {
	if c.GridLevels < 2 {
		return fmt.Errorf("gridLevels %d: %w", c.GridLevels, domain.ErrInvalidOrder)
	}
	if c.RangePercent <= 0 || c.QuantityPerLevel <= 0 || c.ProfitPercent <= 0 {
		return fmt.Errorf("grid parameters must be positive: %w", domain.ErrInvalidOrder)
	}
	return nil
}

// GridLevel is one price rung. A level cycles pending-buy -> filled ->
// waiting-to-sell -> pending-buy; it is never retired, and each
// completed cycle adds to Profit.
type GridLevel struct {
	Price         float64 `json:"price"`
	SellTarget    float64 `json:"sellTarget"`
	BuyPlaced     bool    `json:"buyPlaced"`
	Filled        bool    `json:"filled"`
	FillPrice     float64 `json:"fillPrice"`
	WaitingToSell bool    `json:"waitingToSell"`
	Profit        float64 `json:"profit"`
}

// GridStatus is the grid bot's state snapshot.
type GridStatus struct {
	Name         string      `json:"name"`
	Running      bool        `json:"running"`
	Symbol       string      `json:"symbol"`
	Levels       []GridLevel `json:"levels"`
	ActiveLevels int         `json:"activeLevels"`
	TotalProfit  float64     `json:"totalProfit"`
	Config       GridConfig  `json:"config"`
}

// GridBot places a ladder of buy-then-sell cycles around the current
// price. It activates only in range-bound, low-conviction markets.
type GridBot struct {
	mu          sync.Mutex
	running     bool
	symbol      string
	levels      []GridLevel
	totalProfit float64
	cfg         GridConfig

	cancelMonitor domain.CancelFunc
	deps          Deps
	logger        *slog.Logger
}

var _ Bot = (*GridBot)(nil)

// NewGridBot builds the bot, restoring any persisted config.
func NewGridBot(ctx context.Context, deps Deps) (*GridBot, error) {
	cfg := DefaultGridConfig()
	if err := loadConfig(ctx, deps.Store, gridConfigKey, &cfg); err != nil {
		return nil, fmt.Errorf("grid: load config: %w", err)
	}

	return &GridBot{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "grid_bot")),
	}, nil
}

// Name implements Bot.
func (b *GridBot) Name() string { return GridBotName }

// ShouldActivate decides whether market conditions favor grid trading.
// The returned reason is for observability; activation is permissive
// when prediction data is thin, since chop is the safe default.
func (b *GridBot) ShouldActivate(ctx context.Context, symbol string) (bool, string) {
	preds := b.deps.Signals.Predictions(symbol)
	if len(preds) < 3 {
		return true, "insufficient prediction data, defaulting to grid"
	}

	if p7d, ok := b.deps.Signals.PredictionFor(symbol, 10080); ok && p7d.Confidence < gridLowConfidence {
		return true, fmt.Sprintf("7d confidence %.0f is low", p7d.Confidence)
	}

	p1h, ok1h := b.deps.Signals.PredictionFor(symbol, 60)
	p1d, ok1d := b.deps.Signals.PredictionFor(symbol, 1440)
	if ok1h && ok1d && p1h.Direction != p1d.Direction {
		return true, "1h and 1d directions disagree"
	}

	sentiment := b.deps.Signals.SentimentScore(ctx)
	if sentiment < gridMixedSentiment && sentiment > -gridMixedSentiment {
		return true, fmt.Sprintf("mixed sentiment %.2f", sentiment)
	}

	return false, "strong directional signals favor trend strategies"
}

// Start builds the grid around the current price and begins the
// monitor loop. It returns false when activation preconditions fail.
func (b *GridBot) Start(ctx context.Context, symbol string) (bool, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return false, fmt.Errorf("grid: %w", domain.ErrBotRunning)
	}
	b.mu.Unlock()

	ok, reason := b.ShouldActivate(ctx, symbol)
	if !ok {
		b.logger.Info("activation declined",
			slog.String("symbol", symbol), slog.String("reason", reason))
		return false, nil
	}

	price, err := b.deps.Market.CurrentPrice(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("grid: price for %s: %w", symbol, err)
	}

	b.mu.Lock()
	b.symbol = symbol
	b.levels = b.buildLevels(price)
	b.running = true
	b.cancelMonitor = b.deps.Sched.Every(gridMonitorEvery, b.monitorTick)
	b.mu.Unlock()

	b.logger.Info("started",
		slog.String("symbol", symbol),
		slog.Float64("price", price),
		slog.String("reason", reason),
		slog.Int("levels", len(b.levels)))
	return true, nil
}

// buildLevels lays GridLevels+1 rungs evenly across +-RangePercent of
// price. Rungs below the current price get a pending buy.
func (b *GridBot) buildLevels(price float64) []GridLevel {
	low := price * (1 - b.cfg.RangePercent/100)
	high := price * (1 + b.cfg.RangePercent/100)
	step := (high - low) / float64(b.cfg.GridLevels)

	levels := make([]GridLevel, 0, b.cfg.GridLevels+1)
	for i := 0; i <= b.cfg.GridLevels; i++ {
		levelPrice := low + step*float64(i)
		levels = append(levels, GridLevel{
			Price:      levelPrice,
			SellTarget: levelPrice * (1 + b.cfg.ProfitPercent/100),
			BuyPlaced:  levelPrice < price,
		})
	}
	return levels
}

func (b *GridBot) monitorTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	symbol := b.symbol
	b.mu.Unlock()

	price, err := b.deps.Market.CurrentPrice(ctx, symbol)
	if err != nil {
		b.logger.Warn("monitor price fetch failed, skipping tick", slog.Any("error", err))
		return
	}

	b.checkLevels(ctx, price)
}

// checkLevels fills pending buys whose rung the price crossed and
// sells armed rungs whose target was reached, re-arming them.
func (b *GridBot) checkLevels(ctx context.Context, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}

	for i := range b.levels {
		lvl := &b.levels[i]

		if lvl.BuyPlaced && !lvl.Filled && price <= lvl.Price {
			if _, err := b.deps.Exec.ExecuteOrder(ctx, b.symbol, domain.OrderSideBuy, b.cfg.QuantityPerLevel, domain.OrderTypeLimit); err != nil {
				b.logger.Warn("level buy failed",
					slog.Float64("level", lvl.Price), slog.Any("error", err))
				continue
			}
			lvl.Filled = true
			lvl.FillPrice = price
			lvl.WaitingToSell = true
			b.logger.Info("level filled",
				slog.Float64("level", lvl.Price), slog.Float64("price", price))
			continue
		}

		if lvl.WaitingToSell && price >= lvl.SellTarget {
			if _, err := b.deps.Exec.ExecuteOrder(ctx, b.symbol, domain.OrderSideSell, b.cfg.QuantityPerLevel, domain.OrderTypeLimit); err != nil {
				b.logger.Warn("level sell failed",
					slog.Float64("level", lvl.Price), slog.Any("error", err))
				continue
			}
			cycleProfit := (lvl.SellTarget - lvl.FillPrice) * b.cfg.QuantityPerLevel
			lvl.Profit += cycleProfit
			b.totalProfit += cycleProfit

			// Re-arm for another buy cycle.
			lvl.Filled = false
			lvl.FillPrice = 0
			lvl.WaitingToSell = false

			b.logger.Info("level cycle complete",
				slog.Float64("level", lvl.Price),
				slog.Float64("profit", cycleProfit))
		}
	}
}

// Stop cancels the monitor loop and sells any filled inventory so the
// bot halts flat.
func (b *GridBot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	cancel := b.cancelMonitor
	b.cancelMonitor = nil

	var held float64
	for i := range b.levels {
		if b.levels[i].Filled || b.levels[i].WaitingToSell {
			held += b.cfg.QuantityPerLevel
			b.levels[i].Filled = false
			b.levels[i].FillPrice = 0
			b.levels[i].WaitingToSell = false
		}
	}
	symbol := b.symbol
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if held > 0 {
		if _, err := b.deps.Exec.ExecuteOrder(ctx, symbol, domain.OrderSideSell, held, domain.OrderTypeMarket); err != nil {
			b.logger.Error("flatten on stop failed",
				slog.Float64("amount", held), slog.Any("error", err))
			return fmt.Errorf("grid: flatten: %w", err)
		}
	}

	b.logger.Info("stopped", slog.Float64("flattened", held))
	return nil
}

// Running implements Bot.
func (b *GridBot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Status implements Bot.
func (b *GridBot) Status() any {
	return b.snapshot()
}

// Snapshot returns the typed status.
func (b *GridBot) Snapshot() GridStatus {
	return b.snapshot()
}

func (b *GridBot) snapshot() GridStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := make([]GridLevel, len(b.levels))
	copy(levels, b.levels)

	var active int
	for _, lvl := range levels {
		if lvl.Filled || lvl.WaitingToSell {
			active++
		}
	}

	return GridStatus{
		Name:         GridBotName,
		Running:      b.running,
		Symbol:       b.symbol,
		Levels:       levels,
		ActiveLevels: active,
		TotalProfit:  b.totalProfit,
		Config:       b.cfg,
	}
}

// TotalProfit is the cumulative realized profit across all level
// cycles.
func (b *GridBot) TotalProfit() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalProfit
}

// UpdateConfig applies a partial JSON patch to the config and persists
// the result. Rebuilding the grid takes effect on the next start.
func (b *GridBot) UpdateConfig(ctx context.Context, patch json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.cfg
	if err := json.Unmarshal(patch, &next); err != nil {
		return fmt.Errorf("grid: decode config patch: %w", err)
	}
	if err := next.validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if err := saveConfig(ctx, b.deps.Store, gridConfigKey, next); err != nil {
		return fmt.Errorf("grid: persist config: %w", err)
	}
	b.cfg = next
	return nil
}
