package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("kv store closed")

// Store is a string key/value store.
//
// Get reports ok=false (and a nil error) when the key is absent.
// Update applies all removals and then all writes as one atomic batch.
// Clear removes every key the store owns, not only session keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context, keys []string) error
	Update(ctx context.Context, set map[string]string, remove []string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
	Close() error
}
