package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

type RedisAnalyticsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAnalyticsCache(rdb *redis.Client, ttl time.Duration) *RedisAnalyticsCache {
	return &RedisAnalyticsCache{rdb: rdb, ttl: ttl}
}

// scanBatch is the COUNT hint used when Invalidate walks an owner's keys.
const scanBatch = 100

func ownerPrefix(ownerID string) string {
	return fmt.Sprintf("analytics:%s:", ownerID)
}

func analyticsKey(ownerID, period string, from time.Time) string {
	return fmt.Sprintf("%s%s:%d", ownerPrefix(ownerID), period, from.Unix())
}

func (c *RedisAnalyticsCache) Get(ctx context.Context, ownerID, period string, from time.Time) (*model.Analytics, bool, error) {
	raw, err := c.rdb.Get(ctx, analyticsKey(ownerID, period, from)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var a model.Analytics
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false, fmt.Errorf("decode cached analytics: %w", err)
	}
	return &a, true, nil
}

func (c *RedisAnalyticsCache) Set(ctx context.Context, ownerID, period string, from time.Time, a *model.Analytics) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, analyticsKey(ownerID, period, from), b, c.ttl).Err()
}

func (c *RedisAnalyticsCache) Invalidate(ctx context.Context, ownerID string) error {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, ownerPrefix(ownerID)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan analytics keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

var (
	_ AnalyticsCache = (*RedisAnalyticsCache)(nil)
	_ AnalyticsCache = Noop{}
)
