package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/growthfarm/internal/client/config"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
)

// OpenStore opens the key-value backend selected by c.StoreDriver. The caller
// owns the returned store and must Close it.
func OpenStore(ctx context.Context, c *config.Config) (kv.Store, error) {
	switch c.StoreDriver {
	case config.DriverMemory:
		return kv.NewMemoryRepository(), nil

	case config.DriverSQLite:
		store, err := kv.OpenSQLite(ctx, c.StorePath)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", c.RedisAddr, err)
		}
		store, err := kv.NewRedisRepository(kv.RedisConfig{Client: rdb, KeyPrefix: c.RedisPrefix, OwnsClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
}
