package collector

import (
	"context"
	"errors"
	"fmt"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	flowLookbackDays = 14
	smartMoneyDays   = 7
	// whaleRatioBand is the relative move in the whale ratio that counts as a trend.
	whaleRatioBand = 0.05
)

type FlowSource interface {
	Supports(symbol string) bool
	FetchNetflow(ctx context.Context, symbol string, days int) ([]provider.FlowPoint, error)
	FetchWhaleRatio(ctx context.Context, symbol string, days int) ([]provider.FlowPoint, error)
}

// OnChainCollector reads exchange flows and chain activity. Either half may
// be missing for a given asset.
type OnChainCollector struct {
	flows    FlowSource
	activity map[string]provider.NetworkActivitySource
	tracer   trace.Tracer
}

func NewOnChainCollector(flows FlowSource, activity []provider.NetworkActivitySource, tracer trace.Tracer) *OnChainCollector {
	bySymbol := make(map[string]provider.NetworkActivitySource, len(activity))
	for _, src := range activity {
		bySymbol[src.Symbol()] = src
	}
	return &OnChainCollector{flows: flows, activity: bySymbol, tracer: tracer}
}

func (c *OnChainCollector) Domain() domain.SignalDomain { return domain.DomainOnChain }

func (c *OnChainCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "collector.onchain")
	defer span.End()

	symbol := req.Asset.Symbol
	var out domain.OnChainSignals
	var errs []error
	attempted := false
	record := func(what string, err error) {
		if !errors.Is(err, provider.ErrProviderNotConfigured) {
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	if c.flows != nil && c.flows.Supports(symbol) {
		attempted = true
		if netflow, err := c.flows.FetchNetflow(ctx, symbol, flowLookbackDays); err != nil {
			record("netflow", err)
		} else if len(netflow) > 0 {
			latest := netflow[len(netflow)-1].Value
			out.ExchangeNetFlow = ptr(latest)
			out.ExchangeFlow = ptr(ClassifyFlow(latest))
			out.SmartMoneyTrend = ptr(ClassifySmartMoney(netflow))
		}
		if ratio, err := c.flows.FetchWhaleRatio(ctx, symbol, flowLookbackDays); err != nil {
			record("whale ratio", err)
		} else if len(ratio) > 1 {
			out.WhaleActivity = ptr(ClassifyWhales(ratio))
		}
	}

	if src, ok := c.activity[symbol]; ok {
		attempted = true
		if act, err := src.FetchActivity(ctx); err != nil {
			record("network activity", err)
		} else if act != nil {
			out.NetworkActivityScore = ptr(act.Score)
		}
	}

	if !attempted {
		return nil, fmt.Errorf("no on-chain source for %s: %w", symbol, domain.ErrNotFound)
	}
	if out == (domain.OnChainSignals{}) {
		if len(errs) == 0 {
			return nil, fmt.Errorf("on-chain sources for %s: %w", symbol, provider.ErrProviderNotConfigured)
		}
		return nil, errors.Join(errs...)
	}
	if len(errs) > 0 {
		log.Warn().Err(errors.Join(errs...)).Str("symbol", symbol).Msg("on-chain signals partially collected")
	}
	return out, nil
}

// ClassifyFlow reads a positive net flow as coins moving onto exchanges.
func ClassifyFlow(netflow float64) domain.ExchangeFlow {
	switch {
	case netflow > 0:
		return domain.FlowInflow
	case netflow < 0:
		return domain.FlowOutflow
	}
	return domain.FlowNeutral
}

// ClassifySmartMoney sums the trailing week of net flow. Sustained outflow
// means holders are withdrawing to self-custody.
func ClassifySmartMoney(netflow []provider.FlowPoint) domain.SmartMoneyTrend {
	start := max(0, len(netflow)-smartMoneyDays)
	sum := 0.0
	for _, p := range netflow[start:] {
		sum += p.Value
	}
	switch {
	case sum < 0:
		return domain.SmartMoneyAccumulating
	case sum > 0:
		return domain.SmartMoneyDistributing
	}
	return domain.SmartMoneyNeutral
}

// ClassifyWhales compares the latest whale ratio with the mean of the
// earlier points. A rising share of whale deposits reads as distribution.
func ClassifyWhales(ratio []provider.FlowPoint) domain.WhaleActivity {
	if len(ratio) < 2 {
		return domain.WhaleNeutral
	}
	latest := ratio[len(ratio)-1].Value
	prior := make([]float64, 0, len(ratio)-1)
	for _, p := range ratio[:len(ratio)-1] {
		prior = append(prior, p.Value)
	}
	base, _ := mean(prior)
	if base == 0 {
		return domain.WhaleNeutral
	}
	change := (latest - base) / base
	switch {
	case change > whaleRatioBand:
		return domain.WhaleDistribution
	case change < -whaleRatioBand:
		return domain.WhaleAccumulation
	}
	return domain.WhaleNeutral
}
