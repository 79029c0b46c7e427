package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-pulse/internal/cache"
	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

const MacroCacheTTL = time.Hour

// Risk environment thresholds.
const (
	riskOffVIX = 25.0
	riskOnVIX  = 18.0
	riskOffDXY = 105.0
	riskOnDXY  = 100.0
)

type MacroSource interface {
	FetchQuote(ctx context.Context, symbol string) (*provider.MacroQuote, error)
	FetchPolicyRate(ctx context.Context) (*provider.MacroQuote, error)
}

// MacroCollector reads market-wide macro figures. Every asset in a run sees
// the same values, so each one is cached for the TTL.
type MacroCollector struct {
	source MacroSource
	cache  *cache.JSONCache
	ttl    time.Duration
	tracer trace.Tracer
}

func NewMacroCollector(source MacroSource, kv cache.KV, ttl time.Duration, tracer trace.Tracer) *MacroCollector {
	if ttl <= 0 {
		ttl = MacroCacheTTL
	}
	var c *cache.JSONCache
	if kv != nil {
		c = cache.NewJSONCache(kv, "macro:")
	}
	return &MacroCollector{source: source, cache: c, ttl: ttl, tracer: tracer}
}

func (c *MacroCollector) Domain() domain.SignalDomain { return domain.DomainMacro }

func (c *MacroCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "collector.macro")
	defer span.End()

	var out domain.MacroSignals
	var errs []error

	quote := func(key string, fetch func(context.Context) (*provider.MacroQuote, error)) *float64 {
		q, err := cache.Remember(ctx, c.cache, key, c.ttl, fetch)
		if err != nil {
			if !errors.Is(err, provider.ErrProviderNotConfigured) {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
			return nil
		}
		if q == nil {
			return nil
		}
		return ptr(q.Value)
	}

	out.VIX = quote("vix", func(ctx context.Context) (*provider.MacroQuote, error) {
		return c.source.FetchQuote(ctx, provider.SymbolVIX)
	})
	out.DXY = quote("dxy", func(ctx context.Context) (*provider.MacroQuote, error) {
		return c.source.FetchQuote(ctx, provider.SymbolDXY)
	})
	out.PolicyRate = quote("policy_rate", c.source.FetchPolicyRate)
	out.RiskEnvironment = ClassifyRiskEnvironment(out.VIX, out.DXY)

	if out.VIX == nil && out.DXY == nil && out.PolicyRate == nil {
		if len(errs) == 0 {
			return nil, errors.New("no macro inputs available")
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// ClassifyRiskEnvironment needs at least one of VIX and DXY. Either gauge in
// its stress zone means risk_off; risk_on needs every known gauge calm.
func ClassifyRiskEnvironment(vix, dxy *float64) *domain.RiskEnvironment {
	if vix == nil && dxy == nil {
		return nil
	}
	if (vix != nil && *vix > riskOffVIX) || (dxy != nil && *dxy > riskOffDXY) {
		return ptr(domain.RiskOff)
	}
	calmVIX := vix == nil || *vix < riskOnVIX
	calmDXY := dxy == nil || *dxy < riskOnDXY
	if calmVIX && calmDXY {
		return ptr(domain.RiskOn)
	}
	return ptr(domain.RiskEnvNeutral)
}
