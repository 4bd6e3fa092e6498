package kv

import (
	"context"
	"maps"
	"sync"
)

// MemoryRepository keeps pairs in a map. Nothing survives the process.
type MemoryRepository struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]string)}
}

func (r *MemoryRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", false, ErrClosed
	}
	v, ok := r.data[key]
	return v, ok, nil
}

func (r *MemoryRepository) Set(ctx context.Context, key, value string) error {
	return r.Update(ctx, map[string]string{key: value}, nil)
}

func (r *MemoryRepository) Remove(ctx context.Context, key string) error {
	return r.Update(ctx, nil, []string{key})
}

func (r *MemoryRepository) RemoveAll(ctx context.Context, keys []string) error {
	return r.Update(ctx, nil, keys)
}

func (r *MemoryRepository) Update(ctx context.Context, set map[string]string, remove []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for _, key := range remove {
		delete(r.data, key)
	}
	maps.Copy(r.data, set)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	return maps.Clone(r.data), nil
}

func (r *MemoryRepository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	clear(r.data)
	return nil
}

func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
