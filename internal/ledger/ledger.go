// Package ledger implements the paper-trading account: balance, open
// positions and trade history, simulated against live or simulated
// market prices with a flat proportional fee.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intellidex/cryptobot/internal/domain"
)

const (
	// DefaultInitialBalance is the starting paper balance in USDT.
	DefaultInitialBalance = 10000.0
	// DefaultFeeRate is the flat proportional fee charged per fill.
	DefaultFeeRate = 0.001
	// DefaultMaxTrades caps the retained trade history. Older trades
	// are pruned (and archived when an archiver is configured).
	DefaultMaxTrades = 200

	keyBalance   = "balance"
	keyPositions = "positions"
	keyTrades    = "trades"
)

// Config tunes the ledger. Zero values fall back to the defaults.
type Config struct {
	InitialBalance float64
	FeeRate        float64
	MaxTrades      int
}

// Ledger is the single serialization point for all paper trading.
// Every mutation is atomic: preconditions are checked before any state
// changes, so a rejected order leaves balance, positions and trades
// untouched.
type Ledger struct {
	mu        sync.Mutex
	balance   float64
	positions []domain.Position
	trades    []domain.Trade

	market   domain.MarketSource
	store    domain.KVStore
	archiver domain.Archiver
	logger   *slog.Logger

	initialBalance float64
	feeRate        float64
	maxTrades      int
}

var _ domain.OrderExecutor = (*Ledger)(nil)

// New builds a ledger on the given market source and KV store,
// restoring any previously persisted state. The archiver may be nil.
func New(ctx context.Context, market domain.MarketSource, store domain.KVStore, archiver domain.Archiver, logger *slog.Logger, cfg Config) (*Ledger, error) {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = DefaultInitialBalance
	}
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = DefaultFeeRate
	}
	if cfg.MaxTrades <= 0 {
		cfg.MaxTrades = DefaultMaxTrades
	}

	l := &Ledger{
		balance:        cfg.InitialBalance,
		market:         market,
		store:          store,
		archiver:       archiver,
		logger:         logger.With(slog.String("component", "ledger")),
		initialBalance: cfg.InitialBalance,
		feeRate:        cfg.FeeRate,
		maxTrades:      cfg.MaxTrades,
	}

	if err := l.restore(ctx); err != nil {
		return nil, fmt.Errorf("ledger: restore state: %w", err)
	}
	return l, nil
}

func (l *Ledger) restore(ctx context.Context) error {
	if raw, err := l.store.Get(ctx, keyBalance); err == nil {
		if err := json.Unmarshal(raw, &l.balance); err != nil {
			return fmt.Errorf("decode balance: %w", err)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if raw, err := l.store.Get(ctx, keyPositions); err == nil {
		if err := json.Unmarshal(raw, &l.positions); err != nil {
			return fmt.Errorf("decode positions: %w", err)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if raw, err := l.store.Get(ctx, keyTrades); err == nil {
		if err := json.Unmarshal(raw, &l.trades); err != nil {
			return fmt.Errorf("decode trades: %w", err)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	return nil
}

// persistLocked writes the full ledger state to the KV store. Write
// failures are logged, not returned: the in-memory ledger stays the
// source of truth for the running process.
func (l *Ledger) persistLocked(ctx context.Context) {
	writes := []struct {
		key string
		val any
	}{
		{keyBalance, l.balance},
		{keyPositions, l.positions},
		{keyTrades, l.trades},
	}
	for _, w := range writes {
		raw, err := json.Marshal(w.val)
		if err != nil {
			l.logger.Error("encode state", slog.String("key", w.key), slog.Any("error", err))
			continue
		}
		if err := l.store.Set(ctx, w.key, raw); err != nil {
			l.logger.Error("persist state", slog.String("key", w.key), slog.Any("error", err))
		}
	}
}

// ExecuteOrder fills a paper order at the current market price.
// Buys fail with ErrInsufficientBalance when balance cannot cover
// notional plus fee; sells fail with ErrInsufficientPosition when open
// same-symbol long inventory is smaller than the requested amount.
func (l *Ledger) ExecuteOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64, orderType domain.OrderType) (domain.Trade, error) {
	return l.executeOrder(ctx, symbol, side, amount, orderType, "")
}

// Tagged returns an executor whose fills are attributed to the given
// bot name. Bots trade through this so positions and trades carry
// their origin.
func (l *Ledger) Tagged(bot string) domain.OrderExecutor {
	return taggedExecutor{ledger: l, bot: bot}
}

type taggedExecutor struct {
	ledger *Ledger
	bot    string
}

func (t taggedExecutor) ExecuteOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64, orderType domain.OrderType) (domain.Trade, error) {
	return t.ledger.executeOrder(ctx, symbol, side, amount, orderType, t.bot)
}

func (l *Ledger) executeOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64, orderType domain.OrderType, bot string) (domain.Trade, error) {
	if amount <= 0 {
		return domain.Trade{}, fmt.Errorf("ledger: amount %v: %w", amount, domain.ErrInvalidOrder)
	}
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return domain.Trade{}, fmt.Errorf("ledger: side %q: %w", side, domain.ErrInvalidOrder)
	}

	// Price resolution happens outside the lock so a slow data source
	// never stalls other callers.
	price, err := l.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("ledger: price for %s: %w", symbol, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch side {
	case domain.OrderSideBuy:
		return l.buyLocked(ctx, symbol, amount, price, orderType, bot)
	default:
		return l.sellLocked(ctx, symbol, amount, price, orderType, bot)
	}
}

func (l *Ledger) buyLocked(ctx context.Context, symbol string, amount, price float64, orderType domain.OrderType, bot string) (domain.Trade, error) {
	cost := amount * price
	fee := cost * l.feeRate
	if l.balance < cost+fee {
		return domain.Trade{}, fmt.Errorf("ledger: buy %s needs %.2f, have %.2f: %w",
			symbol, cost+fee, l.balance, domain.ErrInsufficientBalance)
	}

	now := time.Now()
	l.balance -= cost + fee

	l.positions = append(l.positions, domain.Position{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Side:         domain.OrderSideBuy,
		Type:         domain.TypeForSide(domain.OrderSideBuy),
		Amount:       amount,
		EntryPrice:   price,
		CurrentPrice: price,
		Bot:          bot,
		OpenedAt:     now,
	})

	trade := domain.Trade{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      domain.OrderSideBuy,
		Type:      orderType,
		Price:     price,
		Amount:    amount,
		Total:     cost,
		Fee:       fee,
		Bot:       bot,
		Timestamp: now,
	}
	l.appendTradeLocked(ctx, trade)
	l.persistLocked(ctx)

	l.logger.Info("order filled",
		slog.String("symbol", symbol),
		slog.String("side", "buy"),
		slog.Float64("amount", amount),
		slog.Float64("price", price),
		slog.String("bot", bot))
	return trade, nil
}

// sellLocked closes long inventory oldest-first. The realized pnl of
// every consumed chunk is summed onto the single closing trade.
func (l *Ledger) sellLocked(ctx context.Context, symbol string, amount, price float64, orderType domain.OrderType, bot string) (domain.Trade, error) {
	var available float64
	for _, p := range l.positions {
		if p.Symbol == symbol && p.Type == domain.PositionLong {
			available += p.Amount
		}
	}
	if available < amount {
		return domain.Trade{}, fmt.Errorf("ledger: sell %s amount %v, open %v: %w",
			symbol, amount, available, domain.ErrInsufficientPosition)
	}

	remaining := amount
	var realized float64
	kept := l.positions[:0]
	for _, p := range l.positions {
		if remaining <= 0 || p.Symbol != symbol || p.Type != domain.PositionLong {
			kept = append(kept, p)
			continue
		}
		chunk := min(p.Amount, remaining)
		realized += (price - p.EntryPrice) * chunk
		remaining -= chunk
		if chunk < p.Amount {
			p.Amount -= chunk
			kept = append(kept, p)
		}
	}
	l.positions = kept

	now := time.Now()
	proceeds := amount * price
	fee := proceeds * l.feeRate
	l.balance += proceeds - fee

	pnl := realized
	trade := domain.Trade{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      domain.OrderSideSell,
		Type:      orderType,
		Price:     price,
		Amount:    amount,
		Total:     proceeds,
		Fee:       fee,
		PnL:       &pnl,
		Bot:       bot,
		Timestamp: now,
	}
	l.appendTradeLocked(ctx, trade)
	l.persistLocked(ctx)

	l.logger.Info("order filled",
		slog.String("symbol", symbol),
		slog.String("side", "sell"),
		slog.Float64("amount", amount),
		slog.Float64("price", price),
		slog.Float64("pnl", realized),
		slog.String("bot", bot))
	return trade, nil
}

func (l *Ledger) appendTradeLocked(ctx context.Context, trade domain.Trade) {
	l.trades = append(l.trades, trade)
	if len(l.trades) <= l.maxTrades {
		return
	}

	pruned := make([]domain.Trade, len(l.trades)-l.maxTrades)
	copy(pruned, l.trades[:len(l.trades)-l.maxTrades])
	l.trades = append(l.trades[:0], l.trades[len(pruned):]...)

	if l.archiver == nil {
		return
	}
	if err := l.archiver.ArchiveTrades(ctx, pruned); err != nil {
		l.logger.Error("archive pruned trades", slog.Int("count", len(pruned)), slog.Any("error", err))
	}
}

// ClosePosition closes one lot by id at the current market price.
// It returns (nil, nil) when no such position exists.
func (l *Ledger) ClosePosition(ctx context.Context, id string) (*domain.Trade, error) {
	l.mu.Lock()
	var target *domain.Position
	for i := range l.positions {
		if l.positions[i].ID == id {
			target = &l.positions[i]
			break
		}
	}
	if target == nil {
		l.mu.Unlock()
		return nil, nil
	}
	symbol := target.Symbol
	l.mu.Unlock()

	price, err := l.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("ledger: price for %s: %w", symbol, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-find: the lot may have been consumed while unlocked.
	idx := -1
	for i := range l.positions {
		if l.positions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	p := l.positions[idx]
	l.positions = append(l.positions[:idx], l.positions[idx+1:]...)

	now := time.Now()
	pnl := p.PnL(price)
	proceeds := p.EntryPrice*p.Amount + pnl
	fee := price * p.Amount * l.feeRate
	l.balance += proceeds - fee

	trade := domain.Trade{
		ID:        uuid.NewString(),
		Symbol:    p.Symbol,
		Side:      domain.OrderSideSell,
		Type:      domain.OrderTypeMarket,
		Price:     price,
		Amount:    p.Amount,
		Total:     price * p.Amount,
		Fee:       fee,
		PnL:       &pnl,
		Bot:       p.Bot,
		Timestamp: now,
	}
	l.appendTradeLocked(ctx, trade)
	l.persistLocked(ctx)

	l.logger.Info("position closed",
		slog.String("id", id),
		slog.String("symbol", p.Symbol),
		slog.Float64("pnl", pnl))
	return &trade, nil
}

// UpdateUnrealizedPnL refreshes CurrentPrice on every open position,
// fetching each distinct symbol once.
func (l *Ledger) UpdateUnrealizedPnL(ctx context.Context) error {
	l.mu.Lock()
	symbols := make(map[string]struct{})
	for _, p := range l.positions {
		symbols[p.Symbol] = struct{}{}
	}
	l.mu.Unlock()

	prices := make(map[string]float64, len(symbols))
	for sym := range symbols {
		price, err := l.market.CurrentPrice(ctx, sym)
		if err != nil {
			return fmt.Errorf("ledger: price for %s: %w", sym, err)
		}
		prices[sym] = price
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.positions {
		if price, ok := prices[l.positions[i].Symbol]; ok {
			l.positions[i].CurrentPrice = price
		}
	}
	l.persistLocked(ctx)
	return nil
}

// PortfolioValue is balance plus the marked value of every open lot,
// fetching each distinct symbol once. Unresolvable symbols fall back
// to the last stored CurrentPrice.
func (l *Ledger) PortfolioValue(ctx context.Context) float64 {
	l.mu.Lock()
	positions := make([]domain.Position, len(l.positions))
	copy(positions, l.positions)
	balance := l.balance
	l.mu.Unlock()

	prices := make(map[string]float64)
	for _, p := range positions {
		if _, ok := prices[p.Symbol]; ok {
			continue
		}
		price, err := l.market.CurrentPrice(ctx, p.Symbol)
		if err != nil {
			l.logger.Warn("portfolio price", slog.String("symbol", p.Symbol), slog.Any("error", err))
			price = p.CurrentPrice
		}
		prices[p.Symbol] = price
	}

	total := balance
	for _, p := range positions {
		total += prices[p.Symbol] * p.Amount
	}
	return total
}

// Balance returns the free cash balance.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Positions returns a copy of all open positions, insertion ordered.
func (l *Ledger) Positions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Position returns one open lot by id.
func (l *Ledger) Position(id string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range l.positions {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Position{}, false
}

// TradeHistory returns up to limit trades, newest first. limit <= 0
// returns everything.
func (l *Ledger) TradeHistory(limit int) []domain.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.trades[i])
	}
	return out
}

// Stats summarizes realized performance. Only closing trades (those
// carrying pnl) count toward the win/loss tally.
func (l *Ledger) Stats() domain.TradingStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := domain.TradingStats{
		Balance:       l.balance,
		TotalTrades:   len(l.trades),
		OpenPositions: len(l.positions),
	}
	var closed int
	for i := range l.trades {
		t := l.trades[i]
		stats.TotalFees += t.Fee
		if t.PnL == nil {
			continue
		}
		closed++
		stats.TotalPnL += *t.PnL
		if *t.PnL > 0 {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
		if stats.BestTrade == nil || *t.PnL > *stats.BestTrade.PnL {
			best := t
			stats.BestTrade = &best
		}
		if stats.WorstTrade == nil || *t.PnL < *stats.WorstTrade.PnL {
			worst := t
			stats.WorstTrade = &worst
		}
	}
	if closed > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(closed) * 100
	}
	return stats
}

// Reset restores the initial balance and clears positions and trades.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = l.initialBalance
	l.positions = nil
	l.trades = nil
	l.persistLocked(ctx)
	l.logger.Info("ledger reset", slog.Float64("balance", l.balance))
}
