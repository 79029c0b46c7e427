package marketintel

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"
)

func TestClassifyEventTypePriority(t *testing.T) {
	cases := map[string]domain.EventType{
		"Exchange hacked after SEC approves ETF":         domain.EventHack,
		"SEC approves spot bitcoin ETF":                  domain.EventETF,
		"ECB pushes digital euro despite lawsuit threat": domain.EventCBDC,
		"SEC sues exchange over unregistered securities": domain.EventEnforcement,
		"Senate passes stablecoin bill":                  domain.EventLegislation,
		"CFTC publishes new guidance":                    domain.EventRegulation,
		"Visa partners with Solana":                      domain.EventPartnership,
		"Retailer accepts bitcoin payments":              domain.EventAdoption,
	}
	for text, want := range cases {
		got, err := ClassifyEventType(text)
		if err != nil || got != want {
			t.Fatalf("ClassifyEventType(%q) = %s, %v; want %s", text, got, err, want)
		}
	}
}

func TestClassifyEventTypeFallsBackToNews(t *testing.T) {
	got, err := ClassifyEventType("Bitcoin price moves sideways")
	if got != domain.EventNews {
		t.Fatalf("expected news fallback, got %s", got)
	}
	if !errors.Is(err, domain.ErrClassificationAmbiguous) {
		t.Fatalf("expected ambiguity marker, got %v", err)
	}
}

func TestDetectRegion(t *testing.T) {
	cases := map[string]domain.Region{
		"U.S. regulators and EU officials meet": domain.RegionUS,
		"MiCA rules take effect":                domain.RegionEU,
		"FCA warns on crypto ads":               domain.RegionUK,
		"Seoul exchange volume surges":          domain.RegionKorea,
		"Dubai licenses exchange":               domain.RegionMiddleEast,
		"Bitcoin rallies overnight":             domain.RegionGlobal,
	}
	for text, want := range cases {
		if got := DetectRegion(text); got != want {
			t.Fatalf("DetectRegion(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestImpactLevelRules(t *testing.T) {
	cases := []struct {
		eventType domain.EventType
		sentiment float64
		coins     int
		want      domain.ImpactLevel
	}{
		{domain.EventHack, -80, 1, domain.ImpactCritical},
		{domain.EventHack, -20, 1, domain.ImpactMedium},
		{domain.EventEnforcement, -10, 3, domain.ImpactCritical},
		{domain.EventEnforcement, -10, 1, domain.ImpactHigh},
		{domain.EventETF, 40, 1, domain.ImpactHigh},
		{domain.EventRegulation, 0, 0, domain.ImpactMedium},
		{domain.EventPartnership, 30, 1, domain.ImpactLow},
		{domain.EventNews, 0, 0, domain.ImpactLow},
	}
	for _, c := range cases {
		if got := ImpactLevel(c.eventType, c.sentiment, c.coins); got != c.want {
			t.Fatalf("ImpactLevel(%s, %v, %d) = %s, want %s", c.eventType, c.sentiment, c.coins, got, c.want)
		}
	}
}

func TestDetectSectors(t *testing.T) {
	got := DetectSectors("Coinbase adds USDC staking rewards")
	want := []string{"stablecoin", "exchange", "staking"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestClassifyItem(t *testing.T) {
	published := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	item := provider.ContentItem{
		Source:       "news",
		SourceItemID: "guid-1",
		Title:        "SEC sues exchange",
		Excerpt:      "Bitcoin, Ether and XRP listings named",
		PublishedAt:  published,
		Metadata:     map[string]any{"feed_host": "www.sec.gov"},
	}
	ev, ok := ClassifyItem(item, -0.4, []string{"BTC", "ETH", "XRP"})
	if !ok {
		t.Fatal("expected event")
	}
	if ev.EventType != domain.EventEnforcement || ev.ImpactLevel != domain.ImpactCritical {
		t.Fatalf("unexpected classification: %+v", ev)
	}
	if ev.Region != domain.RegionUS || ev.SourceType != domain.SourceGovernment || ev.SentimentImpact != -40 {
		t.Fatalf("unexpected event metadata: %+v", ev)
	}
	again, _ := ClassifyItem(item, 0.9, nil)
	if again.ID != ev.ID {
		t.Fatal("event id must be stable per source item")
	}
}

func TestClassifyItemSkipsUntaggedSocialPosts(t *testing.T) {
	item := provider.ContentItem{Source: "reddit", SourceItemID: "x", Title: "gm everyone"}
	if _, ok := ClassifyItem(item, 0, nil); ok {
		t.Fatal("untagged reddit post must not become an event")
	}
}
