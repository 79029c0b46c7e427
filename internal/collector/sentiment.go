package collector

import (
	"context"
	"errors"
	"math"
	"time"

	"market-pulse/internal/cache"
	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

const FearGreedCacheTTL = 15 * time.Minute

type FearGreedSource interface {
	FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error)
}

// CachedFearGreed serves the index from Redis while it is fresh.
type CachedFearGreed struct {
	source FearGreedSource
	cache  *cache.JSONCache
	ttl    time.Duration
}

func NewCachedFearGreed(source FearGreedSource, kv cache.KV, ttl time.Duration) *CachedFearGreed {
	if ttl <= 0 {
		ttl = FearGreedCacheTTL
	}
	var c *cache.JSONCache
	if kv != nil {
		c = cache.NewJSONCache(kv, "feargreed:")
	}
	return &CachedFearGreed{source: source, cache: c, ttl: ttl}
}

func (f *CachedFearGreed) FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error) {
	return cache.Remember(ctx, f.cache, "latest", f.ttl, f.source.FetchLatest)
}

// SentimentCollector combines the fear & greed index with the run's scored
// social and news items that mention the asset.
type SentimentCollector struct {
	fearGreed FearGreedSource
	tracer    trace.Tracer
}

func NewSentimentCollector(fearGreed FearGreedSource, tracer trace.Tracer) *SentimentCollector {
	return &SentimentCollector{fearGreed: fearGreed, tracer: tracer}
}

func (c *SentimentCollector) Domain() domain.SignalDomain { return domain.DomainSentiment }

func (c *SentimentCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "collector.sentiment")
	defer span.End()

	var out domain.SentimentSignals
	var fgErr error
	switch {
	case req.Aux != nil && req.Aux.FearGreed != nil:
		out.FearGreedIndex = ptr(req.Aux.FearGreed.Value)
		out.FearGreedLabel = ptr(req.Aux.FearGreed.Label)
	case c.fearGreed != nil:
		fg, err := c.fearGreed.FetchLatest(ctx)
		if err != nil {
			fgErr = err
		} else if fg != nil {
			out.FearGreedIndex = ptr(fg.Value)
			out.FearGreedLabel = ptr(fg.Classification)
		}
	}

	if req.Aux != nil {
		var social, news []float64
		for _, item := range req.Aux.Items {
			if !mentions(item.Symbols, req.Asset.Symbol) {
				continue
			}
			switch item.Kind {
			case domain.ItemKindSocial:
				social = append(social, item.Score)
			case domain.ItemKindNews:
				news = append(news, item.Score)
			}
		}
		out.SentimentSocialScore = scaledMean(social)
		out.SentimentNewsScore = scaledMean(news)
		if n := len(social) + len(news); n > 0 {
			out.SentimentSampleSize = ptr(n)
		}
	}

	if out.FearGreedIndex == nil && out.SentimentSocialScore == nil && out.SentimentNewsScore == nil {
		if fgErr != nil {
			return nil, fgErr
		}
		return nil, errors.New("no sentiment inputs for " + req.Asset.Symbol)
	}
	return out, nil
}

// scaledMean maps the mean of [-1, 1] scores onto [-100, 100].
func scaledMean(scores []float64) *float64 {
	m, ok := mean(scores)
	if !ok {
		return nil
	}
	return ptr(math.Round(math.Max(-1, math.Min(1, m))*1000) / 10)
}

func mentions(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
