package collector

import (
	"context"
	"fmt"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MarketSource interface {
	FetchMarket(ctx context.Context, id string) (*provider.MarketTicker, error)
}

// MarketCollector reads spot price, volume and change figures.
type MarketCollector struct {
	source MarketSource
	tracer trace.Tracer
}

func NewMarketCollector(source MarketSource, tracer trace.Tracer) *MarketCollector {
	return &MarketCollector{source: source, tracer: tracer}
}

func (c *MarketCollector) Domain() domain.SignalDomain { return domain.DomainMarket }

func (c *MarketCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "collector.market")
	defer span.End()
	span.SetAttributes(attribute.String("asset", req.Asset.ID))

	ticker, err := c.source.FetchMarket(ctx, req.Asset.ID)
	if err != nil {
		return nil, err
	}
	if ticker.Price == nil || *ticker.Price <= 0 {
		return nil, fmt.Errorf("market data for %s has no price", req.Asset.ID)
	}
	return domain.MarketSignals{
		Price:        ticker.Price,
		Change24hPct: ticker.Change24hPct,
		Change7dPct:  ticker.Change7dPct,
		Volume24h:    ticker.Volume24h,
		MarketCap:    ticker.MarketCap,
	}, nil
}
