package collector

import (
	"context"
	"errors"
	"fmt"
	"math"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

const openInterestHours = 25

type DerivativesSource interface {
	FetchFundingRate(ctx context.Context, pair string) (*provider.FundingRate, error)
	FetchOpenInterestHistory(ctx context.Context, pair string, hours int) ([]provider.OpenInterestPoint, error)
	FetchLiquidations24h(ctx context.Context, symbol string) (float64, error)
}

// DerivativesCollector reads perpetual futures positioning.
type DerivativesCollector struct {
	source DerivativesSource
	tracer trace.Tracer
}

func NewDerivativesCollector(source DerivativesSource, tracer trace.Tracer) *DerivativesCollector {
	return &DerivativesCollector{source: source, tracer: tracer}
}

func (c *DerivativesCollector) Domain() domain.SignalDomain { return domain.DomainDerivatives }

func (c *DerivativesCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "collector.derivatives")
	defer span.End()

	pair := req.Asset.BinanceSymbol
	if pair == "" {
		return nil, fmt.Errorf("no perpetual market for %s: %w", req.Asset.Symbol, domain.ErrNotFound)
	}

	var out domain.DerivativesSignals
	var errs []error

	if fr, err := c.source.FetchFundingRate(ctx, pair); err != nil {
		errs = append(errs, fmt.Errorf("funding: %w", err))
	} else {
		out.FundingRate = ptr(fr.RatePercent)
	}

	if points, err := c.source.FetchOpenInterestHistory(ctx, pair, openInterestHours); err != nil {
		errs = append(errs, fmt.Errorf("open interest: %w", err))
	} else if change, ok := OpenInterestChange(points); ok {
		out.OpenInterestChange24h = ptr(change)
	}

	if liq, err := c.source.FetchLiquidations24h(ctx, req.Asset.Symbol); err != nil {
		if !errors.Is(err, provider.ErrProviderNotConfigured) {
			errs = append(errs, fmt.Errorf("liquidations: %w", err))
		}
	} else {
		out.Liquidations24h = ptr(liq)
	}

	if out == (domain.DerivativesSignals{}) {
		if len(errs) == 0 {
			return nil, errors.New("no derivatives inputs for " + pair)
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// OpenInterestChange is the percent move from the first to the last point.
func OpenInterestChange(points []provider.OpenInterestPoint) (float64, bool) {
	if len(points) < 2 || points[0].ValueUSD <= 0 {
		return 0, false
	}
	first, last := points[0].ValueUSD, points[len(points)-1].ValueUSD
	return math.Round((last-first)/first*10000) / 100, true
}
