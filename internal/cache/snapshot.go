package cache

import (
	"context"
	"strings"
	"time"

	"market-pulse/internal/domain"
)

// LatestSnapshotTTL bounds how long a cached snapshot can be served.
const LatestSnapshotTTL = 6 * time.Hour

// LatestSnapshots caches the newest snapshot per asset symbol.
type LatestSnapshots struct {
	c   *JSONCache
	ttl time.Duration
}

func NewLatestSnapshots(kv KV, ttl time.Duration) *LatestSnapshots {
	if ttl <= 0 {
		ttl = LatestSnapshotTTL
	}
	return &LatestSnapshots{c: NewJSONCache(kv, "snapshot:latest:"), ttl: ttl}
}

func (l *LatestSnapshots) Put(ctx context.Context, s *domain.Snapshot) error {
	return l.c.Set(ctx, strings.ToUpper(s.Symbol), s, l.ttl)
}

// Get returns nil, nil on a miss.
func (l *LatestSnapshots) Get(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	hit, err := l.c.Get(ctx, strings.ToUpper(symbol), &s)
	if err != nil || !hit {
		return nil, err
	}
	return &s, nil
}
