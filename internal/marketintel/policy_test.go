package marketintel

import (
	"testing"
	"time"

	"market-pulse/internal/domain"
)

func TestPolicyRiskEmptyIsZero(t *testing.T) {
	risk := PolicyRiskByRegion(nil, time.Now(), 0)
	if len(risk) != 0 {
		t.Fatalf("expected no regions, got %v", risk)
	}
	if got := PolicyRiskFor(risk, "BTC"); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestPolicyRiskByRegion(t *testing.T) {
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	events := []domain.NewsEvent{
		{Timestamp: now.Add(-24 * time.Hour), EventType: domain.EventEnforcement, Region: domain.RegionUS, ImpactLevel: domain.ImpactHigh, SentimentImpact: -50},
		{Timestamp: now.Add(-48 * time.Hour), EventType: domain.EventHack, Region: domain.RegionUS, ImpactLevel: domain.ImpactMedium, SentimentImpact: 0},
		{Timestamp: now.Add(-40 * 24 * time.Hour), EventType: domain.EventRegulation, Region: domain.RegionUS, ImpactLevel: domain.ImpactCritical},
		{Timestamp: now.Add(-time.Hour), EventType: domain.EventPartnership, Region: domain.RegionEU, ImpactLevel: domain.ImpactLow},
		{Timestamp: now.Add(-time.Hour), EventType: domain.EventRegulation, Region: domain.RegionGlobal, ImpactLevel: domain.ImpactMedium},
	}
	risk := PolicyRiskByRegion(events, now, PolicyWindow)

	// 15*1*1.5 + 8*0.5*1
	if got := risk[domain.RegionUS]; got != 26.5 {
		t.Fatalf("expected us risk 26.5, got %v", got)
	}
	if _, ok := risk[domain.RegionEU]; ok {
		t.Fatal("partnerships carry no policy risk")
	}
	if got := risk[domain.RegionGlobal]; got != 8 {
		t.Fatalf("expected global risk 8, got %v", got)
	}
	if got := PolicyRiskFor(risk, "BTC"); got != 26.5 {
		t.Fatalf("BTC should take the us score, got %v", got)
	}
	if got := PolicyRiskFor(risk, "DOT"); got != 8 {
		t.Fatalf("DOT should fall back to global, got %v", got)
	}
}

func TestPolicyRiskIsCapped(t *testing.T) {
	now := time.Now()
	var events []domain.NewsEvent
	for i := 0; i < 10; i++ {
		events = append(events, domain.NewsEvent{Timestamp: now.Add(-time.Hour), EventType: domain.EventEnforcement, Region: domain.RegionUS, ImpactLevel: domain.ImpactCritical, SentimentImpact: -100})
	}
	if got := PolicyRiskByRegion(events, now, 0)[domain.RegionUS]; got != 100 {
		t.Fatalf("expected cap at 100, got %v", got)
	}
}

func TestAdoptionScore(t *testing.T) {
	now := time.Now()
	events := []domain.NewsEvent{
		{Timestamp: now.Add(-time.Hour), EventType: domain.EventAdoption, ImpactLevel: domain.ImpactMedium, SentimentImpact: 50, AffectedCoins: []string{"BTC"}},
		{Timestamp: now.Add(-time.Hour), EventType: domain.EventPartnership, ImpactLevel: domain.ImpactLow, AffectedCoins: []string{"ETH"}},
		{Timestamp: now.Add(-time.Hour), EventType: domain.EventHack, ImpactLevel: domain.ImpactCritical, AffectedCoins: []string{"BTC"}},
	}
	if got := AdoptionScore(events, "BTC", now, 0); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
}
