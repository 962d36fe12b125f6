package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"calndr/pkg/logger"
)

const (
	getSetTimeout   = 2 * time.Second
	batchTimeout    = 1500 * time.Millisecond
	scanDeleteBatch = 25
)

// RedisCoordinator is the C1 cache coordinator. Every call is
// best-effort: callers that want to treat a cache miss or failure as
// fatal must say so themselves, this type never does.
type RedisCoordinator struct {
	client *redis.Client
}

func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{client: client}
}

func (c *RedisCoordinator) Get(ctx context.Context, key string, dest any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, getSetTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		logger.Warn("[RedisCoordinator.Get] undecodable value dropped key=%s: %v", key, err)
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *RedisCoordinator) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, getSetTimeout)
	defer cancel()

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCoordinator) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, getSetTimeout)
	defer cancel()
	return c.client.Del(ctx, key).Err()
}

// DeletePattern scans the keyspace for a glob pattern and deletes
// matches in batches of scanDeleteBatch, each batch bounded by its
// own timeout so a pathologically large match set degrades instead of
// blocking the caller indefinitely.
func (c *RedisCoordinator) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
		keys, next, err := c.client.Scan(batchCtx, cursor, pattern, scanDeleteBatch).Result()
		if err != nil {
			cancel()
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(batchCtx, keys...).Err(); err != nil {
				cancel()
				logger.Warn("[RedisCoordinator.DeletePattern] batch delete failed pattern=%s: %v", pattern, err)
				return err
			}
		}
		cancel()
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
