package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	name  string
	err   error
	sent  []string
	title string
}

func (s *stubSender) Send(ctx context.Context, title, message string) error {
	s.title = title
	s.sent = append(s.sent, message)
	return s.err
}

func (s *stubSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &stubSender{name: "stub"}
	n := NewNotifier([]Sender{s}, []string{EventBotStarted}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventTradeExecuted, "Trade Executed", "ignored"))
	require.NoError(t, n.Notify(context.Background(), EventBotStarted, "Bot Started", "delivered"))

	assert.Equal(t, []string{"delivered"}, s.sent)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &stubSender{name: "stub"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventError, "Bot Error", "boom"))

	assert.Len(t, s.sent, 1)
}

func TestDeliverCollectsFailures(t *testing.T) {
	bad := &stubSender{name: "bad", err: errors.New("down")}
	good := &stubSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "Bot Stopped", "flat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 channel(s) failed")
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.sent, 1, "one failing channel must not block the others")
}

func TestTelegramSenderPayload(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.api = srv.URL

	require.NoError(t, s.Send(context.Background(), "Trade Executed", "grid buy 0.5 BTCUSDT @ 50000.00"))

	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisablePreview)
	assert.Equal(t, "<b>Trade Executed</b>\ngrid buy 0.5 BTCUSDT @ 50000.00", got.Text)
}

func TestTelegramSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.api = srv.URL

	err := s.Send(context.Background(), "Bot Started", "grid is now trading BTCUSDT")
	assert.ErrorContains(t, err, "unexpected status 400")
}

func TestDiscordSenderEmbeds(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)

	require.NoError(t, s.Send(context.Background(), "Bot Error", "grid: order rejected"))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Bot Error", got.Embeds[0].Title)
	assert.Equal(t, "grid: order rejected", got.Embeds[0].Description)
	assert.Equal(t, discordColorRed, got.Embeds[0].Color)
}
