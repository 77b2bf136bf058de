package cache

import (
	"context"

	"comptoir/backend/internal/domain"
)

// StatsCache holds pre-computed dashboard aggregates keyed by store.
type StatsCache interface {
	GetStats(ctx context.Context, storeID string) (*domain.DashboardStats, bool)
	SetStats(ctx context.Context, storeID string, stats domain.DashboardStats)
	Invalidate(ctx context.Context, storeID string)
	Close() error
}

// NoopStatsCache is used when no Redis endpoint is configured; every read
// misses and every write is discarded.
type NoopStatsCache struct{}

func NewNoop() *NoopStatsCache { return &NoopStatsCache{} }

func (NoopStatsCache) GetStats(context.Context, string) (*domain.DashboardStats, bool) {
	return nil, false
}

func (NoopStatsCache) SetStats(context.Context, string, domain.DashboardStats) {}

func (NoopStatsCache) Invalidate(context.Context, string) {}

func (NoopStatsCache) Close() error { return nil }
