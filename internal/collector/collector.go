// Package collector turns upstream provider data into per-domain signal
// bundles and assembles them into snapshots.
package collector

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"market-pulse/internal/domain"
)

// Request is the input every collector receives for one asset.
type Request struct {
	Asset domain.Asset
	Now   time.Time
	// Aux is nil on quick runs.
	Aux *domain.Auxiliary
}

// Collector fetches and normalizes one signal domain. A returned error means
// the whole bundle is unavailable.
type Collector interface {
	Domain() domain.SignalDomain
	Collect(ctx context.Context, req Request) (domain.Bundle, error)
}

func ptr[T any](v T) *T { return &v }

func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}
