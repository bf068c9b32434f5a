// Package notify fans trading alerts out to operator channels. The bot
// manager and the paper ledger report lifecycle and fill events here;
// the notifier filters them against the configured event list and
// delivers to every registered channel (Telegram, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is one delivery channel for trading alerts.
type Sender interface {
	// Send delivers an alert with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier delivers alerts to all registered senders. Events are
// filtered against the configured allow list; an empty list allows
// everything.
type Notifier struct {
	senders []Sender
	allow   map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over the given senders. Only events
// named in the events slice pass the filter; an empty slice allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allow := make(map[string]bool, len(events))
	for _, e := range events {
		allow[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		allow:   allow,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers an alert if its event type passes the configured
// filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allow) > 0 && !n.allow[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.deliver(ctx, title, message)
}

// NotifyAll delivers an alert to every sender, bypassing the event
// filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.deliver(ctx, title, message)
}

// deliver sends to every channel. A failing channel does not stop
// delivery to the others; all failures come back as one joined error.
func (n *Notifier) deliver(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		err := s.Send(ctx, title, message)
		if err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("channel", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("channel", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d channel(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
