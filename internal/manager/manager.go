// Package manager is the facade the HTTP layer drives: it owns the
// three bots, routes start/stop/config calls by display name, and
// aggregates their performance.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/intellidex/cryptobot/internal/domain"
	"github.com/intellidex/cryptobot/internal/notify"
	"github.com/intellidex/cryptobot/internal/strategy"
)

// Performance aggregates realized results across all bots. Grid cycle
// profit counts toward TotalPnL but not toward TotalTrades, since the
// grid books per-level cycles rather than discrete round trips.
type Performance struct {
	TotalPnL    float64  `json:"totalPnL"`
	GridProfit  float64  `json:"gridProfit"`
	TotalTrades int      `json:"totalTrades"`
	WinRate     float64  `json:"winRate"`
	ActiveBots  []string `json:"activeBots"`
}

// Manager routes operations to bots by display name and emits
// notifications on lifecycle events.
type Manager struct {
	grid  *strategy.GridBot
	trend *strategy.TrendBot
	swing *strategy.SwingBot

	bots     []strategy.Bot // stable iteration order
	byName   map[string]strategy.Bot
	notifier *notify.Notifier
	logger   *slog.Logger
}

// New builds a manager over the three bots.
func New(grid *strategy.GridBot, trend *strategy.TrendBot, swing *strategy.SwingBot, notifier *notify.Notifier, logger *slog.Logger) *Manager {
	bots := []strategy.Bot{grid, trend, swing}
	byName := make(map[string]strategy.Bot, len(bots))
	for _, b := range bots {
		byName[b.Name()] = b
	}

	return &Manager{
		grid:     grid,
		trend:    trend,
		swing:    swing,
		bots:     bots,
		byName:   byName,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "manager")),
	}
}

func (m *Manager) bot(name string) (strategy.Bot, error) {
	b, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("manager: bot %q: %w", name, domain.ErrNotFound)
	}
	return b, nil
}

// Names returns the display names of all managed bots.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.bots))
	for _, b := range m.bots {
		names = append(names, b.Name())
	}
	return names
}

// StartBot starts the named bot on symbol. The bool mirrors
// Bot.Start: false without error means the bot declined to activate.
func (m *Manager) StartBot(ctx context.Context, name, symbol string) (bool, error) {
	b, err := m.bot(name)
	if err != nil {
		return false, err
	}

	started, err := b.Start(ctx, symbol)
	if err != nil {
		m.notifier.BotError(ctx, name, err)
		return false, fmt.Errorf("manager: start %s: %w", name, err)
	}
	if started {
		m.logger.Info("bot started", slog.String("bot", name), slog.String("symbol", symbol))
		m.notifier.BotStarted(ctx, name, symbol)
	}
	return started, nil
}

// StopBot stops the named bot, flattening its exposure.
func (m *Manager) StopBot(ctx context.Context, name string) error {
	b, err := m.bot(name)
	if err != nil {
		return err
	}

	wasRunning := b.Running()
	if err := b.Stop(ctx); err != nil {
		m.notifier.BotError(ctx, name, err)
		return fmt.Errorf("manager: stop %s: %w", name, err)
	}
	if wasRunning {
		m.logger.Info("bot stopped", slog.String("bot", name))
		m.notifier.BotStopped(ctx, name)
	}
	return nil
}

// StartAll starts every bot on symbol. A failing bot is logged and
// skipped; the rest still start. The returned slice names the bots
// that actually activated.
func (m *Manager) StartAll(ctx context.Context, symbol string) ([]string, error) {
	var started []string
	var errs []string
	for _, b := range m.bots {
		ok, err := m.StartBot(ctx, b.Name(), symbol)
		if err != nil {
			m.logger.Error("start failed, continuing",
				slog.String("bot", b.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Sprintf("%s: %v", b.Name(), err))
			continue
		}
		if ok {
			started = append(started, b.Name())
		}
	}

	if len(errs) > 0 {
		return started, fmt.Errorf("manager: %d bot(s) failed to start: %s", len(errs), strings.Join(errs, "; "))
	}
	return started, nil
}

// StopAll stops every bot. A failing bot is logged and skipped; the
// rest still stop.
func (m *Manager) StopAll(ctx context.Context) error {
	var errs []string
	for _, b := range m.bots {
		if err := m.StopBot(ctx, b.Name()); err != nil {
			m.logger.Error("stop failed, continuing",
				slog.String("bot", b.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Sprintf("%s: %v", b.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("manager: %d bot(s) failed to stop: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Status returns the named bot's status snapshot.
func (m *Manager) Status(name string) (any, error) {
	b, err := m.bot(name)
	if err != nil {
		return nil, err
	}
	return b.Status(), nil
}

// StatusAll returns every bot's status keyed by display name.
func (m *Manager) StatusAll() map[string]any {
	out := make(map[string]any, len(m.bots))
	for _, b := range m.bots {
		out[b.Name()] = b.Status()
	}
	return out
}

// UpdateConfig applies a partial JSON config patch to the named bot.
func (m *Manager) UpdateConfig(ctx context.Context, name string, patch json.RawMessage) error {
	b, err := m.bot(name)
	if err != nil {
		return err
	}
	if err := b.UpdateConfig(ctx, patch); err != nil {
		return fmt.Errorf("manager: update config for %s: %w", name, err)
	}
	m.logger.Info("config updated", slog.String("bot", name))
	return nil
}

// CombinedPerformance aggregates all bots' realized results.
func (m *Manager) CombinedPerformance() Performance {
	gridProfit := m.grid.TotalProfit()
	trendStatus := m.trend.Snapshot()
	swingStatus := m.swing.Snapshot()

	perf := Performance{
		GridProfit:  gridProfit,
		TotalPnL:    gridProfit + trendStatus.TotalPnL + swingStatus.TotalPnL,
		TotalTrades: trendStatus.TradeCount + swingStatus.TradeCount,
		ActiveBots:  []string{},
	}

	wins := trendStatus.WinRate*float64(trendStatus.TradeCount)/100 +
		swingStatus.WinRate*float64(swingStatus.TradeCount)/100
	if perf.TotalTrades > 0 {
		perf.WinRate = wins / float64(perf.TotalTrades) * 100
	}

	for _, b := range m.bots {
		if b.Running() {
			perf.ActiveBots = append(perf.ActiveBots, b.Name())
		}
	}
	return perf
}
