package marketintel

import (
	"math"
	"time"

	"market-pulse/internal/domain"
)

// PolicyWindow is the trailing period policy risk is computed over.
const PolicyWindow = 30 * 24 * time.Hour

var impactWeight = map[domain.ImpactLevel]float64{
	domain.ImpactCritical: 25,
	domain.ImpactHigh:     15,
	domain.ImpactMedium:   8,
	domain.ImpactLow:      3,
}

// policyTypeWeight scales how much an event type says about policy.
func policyTypeWeight(t domain.EventType) float64 {
	switch {
	case t.IsRegulatory():
		return 1
	case t == domain.EventETF || t == domain.EventHack:
		return 0.5
	}
	return 0
}

func inWindow(ev domain.NewsEvent, now time.Time, window time.Duration) bool {
	return !ev.Timestamp.After(now) && now.Sub(ev.Timestamp) <= window
}

// PolicyRiskByRegion scores each region 0..100 over events in the trailing
// window. Negative sentiment amplifies an event by up to 2x. Regions without
// policy events are absent from the result.
func PolicyRiskByRegion(events []domain.NewsEvent, now time.Time, window time.Duration) map[domain.Region]float64 {
	if window <= 0 {
		window = PolicyWindow
	}
	sums := make(map[domain.Region]float64)
	for _, ev := range events {
		w := policyTypeWeight(ev.EventType)
		if w == 0 || !inWindow(ev, now, window) {
			continue
		}
		amplifier := 1 + math.Max(0, -ev.SentimentImpact)/100
		sums[ev.Region] += impactWeight[ev.ImpactLevel] * w * amplifier
	}
	out := make(map[domain.Region]float64, len(sums))
	for region, v := range sums {
		out[region] = math.Round(clamp(v, 0, 100)*10) / 10
	}
	return out
}

// PolicyRiskFor returns the larger of the global score and the worst score
// among regions tied to symbol. No events means 0.
func PolicyRiskFor(risk map[domain.Region]float64, symbol string) float64 {
	best := risk[domain.RegionGlobal]
	for _, region := range domain.AssetRegions[symbol] {
		best = math.Max(best, risk[region])
	}
	return best
}

// AdoptionScore scores 0..100 from adoption, partnership and ETF events that
// mention symbol in the trailing window. Positive sentiment amplifies.
func AdoptionScore(events []domain.NewsEvent, symbol string, now time.Time, window time.Duration) float64 {
	if window <= 0 {
		window = PolicyWindow
	}
	var sum float64
	for _, ev := range events {
		switch ev.EventType {
		case domain.EventAdoption, domain.EventPartnership, domain.EventETF:
		default:
			continue
		}
		if !inWindow(ev, now, window) || !ev.Mentions(symbol) {
			continue
		}
		sum += impactWeight[ev.ImpactLevel] * (1 + math.Max(0, ev.SentimentImpact)/100)
	}
	return math.Round(clamp(sum, 0, 100)*10) / 10
}
