// Package strategy implements the three paper-trading bots: grid,
// trend and swing. Each bot is a small state machine driven by
// scheduled tasks, reading market data and signals and trading through
// the shared ledger.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// Bot is the uniform surface the manager drives. Start returns false
// without error when the bot's activation preconditions are not met.
// Stop cancels the bot's tasks and flattens any open exposure before
// returning, so a stopped bot is always flat.
type Bot interface {
	Name() string
	Start(ctx context.Context, symbol string) (bool, error)
	Stop(ctx context.Context) error
	Running() bool
	Status() any
	UpdateConfig(ctx context.Context, patch json.RawMessage) error
}

// Deps are the collaborators every bot is constructed with.
type Deps struct {
	Market  domain.MarketSource
	Signals domain.SignalSource
	Exec    domain.OrderExecutor
	Store   domain.KVStore
	Sched   Scheduler
	Logger  *slog.Logger
}

// tickTimeout bounds one scheduled task body.
const tickTimeout = 10 * time.Second

// loadConfig reads a bot's persisted config into dst, leaving dst
// untouched when nothing is stored yet.
func loadConfig(ctx context.Context, store domain.KVStore, key string, dst any) error {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

// saveConfig persists a bot's config.
func saveConfig(ctx context.Context, store domain.KVStore, key string, cfg any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw)
}
