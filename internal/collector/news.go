package collector

import (
	"context"
	"errors"
	"math"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/marketintel"

	"go.opentelemetry.io/otel/trace"
)

var errNoAuxiliary = errors.New("auxiliary news data unavailable")

// NewsCollector summarizes the run's classified news events for one asset.
type NewsCollector struct {
	tracer trace.Tracer
	window time.Duration
}

func NewNewsCollector(tracer trace.Tracer) *NewsCollector {
	return &NewsCollector{tracer: tracer, window: marketintel.PolicyWindow}
}

func (c *NewsCollector) Domain() domain.SignalDomain { return domain.DomainNews }

func (c *NewsCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	_, span := c.tracer.Start(ctx, "collector.news")
	defer span.End()

	if req.Aux == nil {
		return nil, errNoAuxiliary
	}
	return NewsFor(req.Aux, req.Asset.Symbol, req.Now, c.window), nil
}

// NewsFor builds the news bundle from events ordered newest first.
func NewsFor(aux *domain.Auxiliary, symbol string, now time.Time, window time.Duration) domain.NewsSignals {
	since := now.Add(-24 * time.Hour)
	var recent []domain.NewsEvent
	for _, ev := range aux.Events {
		if ev.Timestamp.Before(since) || ev.Timestamp.After(now) || !ev.Mentions(symbol) {
			continue
		}
		recent = append(recent, ev)
	}

	out := domain.NewsSignals{
		NewsEventCount24h: ptr(len(recent)),
		AdoptionScore:     ptr(marketintel.AdoptionScore(aux.Events, symbol, now, window)),
		PolicyRiskScore:   ptr(marketintel.PolicyRiskFor(aux.PolicyRisk, symbol)),
	}
	if len(recent) == 0 {
		out.CriticalEventCount = ptr(0)
		return out
	}

	sum := 0.0
	critical := 0
	// Oldest first so ties on impact keep the first-seen event.
	var dominant *domain.NewsEvent
	for i := len(recent) - 1; i >= 0; i-- {
		ev := recent[i]
		sum += ev.SentimentImpact
		if ev.ImpactLevel == domain.ImpactCritical {
			critical++
		}
		if dominant == nil || ev.ImpactLevel.Rank() > dominant.ImpactLevel.Rank() {
			dominant = &recent[i]
		}
	}
	out.NewsSentiment = ptr(math.Round(sum/float64(len(recent))*10) / 10)
	out.DominantEventType = ptr(dominant.EventType)
	out.CriticalEventCount = ptr(critical)
	return out
}
