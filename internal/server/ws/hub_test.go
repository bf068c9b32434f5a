package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	h := testHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Broadcast(ChannelTicker, "ticker", map[string]float64{"price": float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked with no clients connected")
	}
}

func TestRunExitsOnCancel(t *testing.T) {
	h := testHub()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not exit after cancel")
	}
}

func TestFrameEncoding(t *testing.T) {
	data, err := json.Marshal(frame{Type: "ticker", Payload: map[string]any{"symbol": "BTCUSDT", "price": 50000.0}})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ticker", decoded["type"])
	assert.NotNil(t, decoded["payload"])
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: make(map[string]bool)}
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	assert.True(t, c.isSubscribed(ChannelTicker))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{ChannelTicker}})
	assert.False(t, c.isSubscribed(ChannelTicker))
	assert.True(t, c.isSubscribed(ChannelBots))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{ChannelTicker}})
	assert.True(t, c.isSubscribed(ChannelTicker))
}

func TestClientCountEmpty(t *testing.T) {
	assert.Equal(t, 0, testHub().ClientCount())
}
