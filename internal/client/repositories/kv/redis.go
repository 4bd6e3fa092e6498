package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "growthfarm:kv:"

// RedisConfig configures RedisRepository.
type RedisConfig struct {
	// Client is the Redis client. Required.
	Client *redis.Client

	// KeyPrefix namespaces every key. Default: "growthfarm:kv:".
	KeyPrefix string

	// OwnsClient makes Close close Client as well.
	OwnsClient bool
}

// RedisRepository stores pairs as plain Redis strings under KeyPrefix.
// Clear only touches keys inside the prefix.
type RedisRepository struct {
	client     *redis.Client
	prefix     string
	ownsClient bool
}

// NewRedisRepository wraps cfg.Client. It does not dial; callers Ping first
// if they need to know the server is reachable.
func NewRedisRepository(cfg RedisConfig) (*RedisRepository, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultRedisPrefix
	}
	return &RedisRepository{client: cfg.Client, prefix: cfg.KeyPrefix, ownsClient: cfg.OwnsClient}, nil
}

func (r *RedisRepository) key(k string) string { return r.prefix + k }

func (r *RedisRepository) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisRepository) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove kv[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) RemoveAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, r.keys(keys)...).Err(); err != nil {
		return fmt.Errorf("failed to remove kv%v: %w", keys, err)
	}
	return nil
}

func (r *RedisRepository) Update(ctx context.Context, set map[string]string, remove []string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(remove) > 0 {
			pipe.Del(ctx, r.keys(remove)...)
		}
		for _, k := range sortedKeys(set) {
			pipe.Set(ctx, r.key(k), set[k], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update kv: %w", err)
	}
	return nil
}

func (r *RedisRepository) List(ctx context.Context) (map[string]string, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list kv: %w", err)
	}
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list kv: %w", err)
	}
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		result[keys[i][len(r.prefix):]] = s
	}
	return result, nil
}

func (r *RedisRepository) Clear(ctx context.Context) error {
	keys, err := r.scan(ctx)
	if err == nil && len(keys) > 0 {
		err = r.client.Del(ctx, keys...).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to clear kv: %w", err)
	}
	return nil
}

func (r *RedisRepository) Close() error {
	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}

func (r *RedisRepository) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (r *RedisRepository) keys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.key(k)
	}
	return out
}
