package notify

import (
	"context"
	"fmt"

	"github.com/intellidex/cryptobot/internal/domain"
)

// Event types emitted by the bot manager. Operators list the ones they
// want forwarded in the notifications config.
const (
	EventBotStarted    = "bot_started"
	EventBotStopped    = "bot_stopped"
	EventTradeExecuted = "trade_executed"
	EventError         = "error"
)

// BotStarted announces that a bot began trading a symbol.
func (n *Notifier) BotStarted(ctx context.Context, bot, symbol string) {
	_ = n.Notify(ctx, EventBotStarted, "Bot Started",
		fmt.Sprintf("%s is now trading %s", bot, symbol))
}

// BotStopped announces that a bot was stopped and flattened.
func (n *Notifier) BotStopped(ctx context.Context, bot string) {
	_ = n.Notify(ctx, EventBotStopped, "Bot Stopped",
		fmt.Sprintf("%s stopped and is flat", bot))
}

// TradeExecuted announces a fill recorded by the paper ledger.
func (n *Notifier) TradeExecuted(ctx context.Context, t domain.Trade) {
	msg := fmt.Sprintf("%s %s %.6f %s @ %.2f", t.Bot, t.Side, t.Amount, t.Symbol, t.Price)
	if t.PnL != nil {
		msg += fmt.Sprintf(" (PnL %+.2f)", *t.PnL)
	}
	_ = n.Notify(ctx, EventTradeExecuted, "Trade Executed", msg)
}

// BotError reports a bot operation failure.
func (n *Notifier) BotError(ctx context.Context, bot string, err error) {
	_ = n.Notify(ctx, EventError, "Bot Error",
		fmt.Sprintf("%s: %v", bot, err))
}
