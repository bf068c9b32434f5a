package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellidex/cryptobot/internal/domain"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "balance", []byte(`10000`)))

	got, err := store.Get(ctx, "balance")
	require.NoError(t, err)
	assert.Equal(t, []byte(`10000`), got)

	require.NoError(t, store.Set(ctx, "balance", []byte(`9500.5`)))
	got, err = store.Get(ctx, "balance")
	require.NoError(t, err)
	assert.Equal(t, []byte(`9500.5`), got)
}

func TestMemoryMissingKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "trades", []byte(`[]`)))
	require.NoError(t, store.Delete(ctx, "trades"))

	_, err := store.Get(ctx, "trades")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting a missing key is fine.
	assert.NoError(t, store.Delete(ctx, "trades"))
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	buf := []byte(`original`)
	require.NoError(t, store.Set(ctx, "k", buf))
	buf[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`original`), got)
}
