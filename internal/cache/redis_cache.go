package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"comptoir/backend/internal/domain"
)

type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatsCache(addr string, password string, db int, ttl time.Duration) *RedisStatsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStatsCache{client: client, ttl: ttl}
}

func (c *RedisStatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

func statsKey(storeID string) string {
	return "dashboard:stats:" + storeID
}

func (c *RedisStatsCache) GetStats(ctx context.Context, storeID string) (*domain.DashboardStats, bool) {
	val, err := c.client.Get(ctx, statsKey(storeID)).Result()
	if err != nil {
		return nil, false
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (c *RedisStatsCache) SetStats(ctx context.Context, storeID string, stats domain.DashboardStats) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statsKey(storeID), payload, c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, storeID string) {
	_ = c.client.Del(ctx, statsKey(storeID)).Err()
}
