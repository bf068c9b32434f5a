package domain

import "context"

// KVStore is the persistence contract for ledger state, bot configs
// and prediction history. Values are JSON-encoded by the caller.
// Get returns ErrNotFound for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
