package marketintel

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strings"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"
)

// Classification tables are ordered (predicate, result) pairs; the first
// matching row wins.

type eventTypeRule struct {
	terms     []string
	eventType domain.EventType
}

var eventTypeRules = []eventTypeRule{
	{[]string{"hack", "hacked", "hacker", "hackers", "exploit", "exploited", "breach", "stolen", "drained", "attacker"}, domain.EventHack},
	{[]string{"etf", "etfs", "exchange-traded fund", "exchange traded fund"}, domain.EventETF},
	{[]string{"cbdc", "cbdcs", "central bank digital currency", "digital euro", "digital yuan", "e-cny", "digital pound", "digital rupee"}, domain.EventCBDC},
	{[]string{"lawsuit", "sued", "sues", "charged", "charges", "indictment", "indicted", "fined", "penalty", "settlement", "crackdown", "arrested", "seized", "enforcement", "subpoena", "wells notice"}, domain.EventEnforcement},
	{[]string{"bill", "legislation", "lawmakers", "senate", "congress", "parliament", "act passes", "signed into law"}, domain.EventLegislation},
	{[]string{"regulation", "regulations", "regulator", "regulators", "regulatory", "sec", "cftc", "fca", "mica", "esma", "compliance", "licence", "license", "guidance"}, domain.EventRegulation},
	{[]string{"partnership", "partners with", "partnered", "collaboration", "teams up", "integrates", "integration"}, domain.EventPartnership},
	{[]string{"adoption", "adopts", "accepts", "accepting", "payments", "treasury", "reserve", "rollout", "institutional", "launches"}, domain.EventAdoption},
}

// ClassifyEventType returns the first matching event type. When nothing
// matches it returns EventNews with ErrClassificationAmbiguous.
func ClassifyEventType(text string) (domain.EventType, error) {
	text = normalizeText(text)
	for _, rule := range eventTypeRules {
		if hasAnyTerm(text, rule.terms) {
			return rule.eventType, nil
		}
	}
	return domain.EventNews, domain.ErrClassificationAmbiguous
}

type regionRule struct {
	terms  []string
	region domain.Region
}

var regionRules = []regionRule{
	{[]string{"united states", "u.s.", "usa", "american", "sec", "cftc", "federal reserve", "congress", "senate", "white house", "washington"}, domain.RegionUS},
	{[]string{"european union", "eu", "european", "mica", "esma", "ecb", "brussels", "digital euro"}, domain.RegionEU},
	{[]string{"united kingdom", "uk", "britain", "british", "fca", "bank of england", "digital pound"}, domain.RegionUK},
	{[]string{"china", "chinese", "beijing", "pboc", "hong kong", "digital yuan", "e-cny"}, domain.RegionChina},
	{[]string{"japan", "japanese", "tokyo"}, domain.RegionJapan},
	{[]string{"south korea", "korea", "korean", "seoul"}, domain.RegionKorea},
	{[]string{"india", "indian", "rbi", "digital rupee"}, domain.RegionIndia},
	{[]string{"brazil", "argentina", "el salvador", "mexico", "venezuela", "latin america"}, domain.RegionLatAm},
	{[]string{"uae", "dubai", "abu dhabi", "saudi", "middle east", "bahrain"}, domain.RegionMiddleEast},
}

// DetectRegion returns the first matching region or RegionGlobal.
func DetectRegion(text string) domain.Region {
	text = normalizeText(text)
	for _, rule := range regionRules {
		if hasAnyTerm(text, rule.terms) {
			return rule.region
		}
	}
	return domain.RegionGlobal
}

var sectorTerms = []struct {
	sector string
	terms  []string
}{
	{"defi", []string{"defi", "decentralized finance", "dex", "lending protocol", "liquidity pool"}},
	{"nft", []string{"nft", "nfts"}},
	{"stablecoin", []string{"stablecoin", "stablecoins", "usdt", "usdc", "tether"}},
	{"exchange", []string{"exchange", "exchanges", "binance", "coinbase", "kraken", "okx"}},
	{"mining", []string{"mining", "miner", "miners", "hashrate"}},
	{"layer2", []string{"layer 2", "layer-2", "l2", "rollup", "rollups"}},
	{"payments", []string{"payments", "payment", "remittance"}},
	{"custody", []string{"custody", "custodian", "wallet"}},
	{"staking", []string{"staking", "validator", "validators"}},
}

// DetectSectors returns every sector with a matching keyword, in table order.
func DetectSectors(text string) []string {
	text = normalizeText(text)
	var out []string
	for _, row := range sectorTerms {
		if hasAnyTerm(text, row.terms) {
			out = append(out, row.sector)
		}
	}
	return out
}

type impactInput struct {
	eventType     domain.EventType
	sentiment     float64
	affectedCoins int
}

var impactRules = []struct {
	match  func(in impactInput) bool
	impact domain.ImpactLevel
}{
	{func(in impactInput) bool { return in.eventType == domain.EventHack && math.Abs(in.sentiment) > 50 }, domain.ImpactCritical},
	{func(in impactInput) bool { return in.eventType == domain.EventEnforcement && in.affectedCoins > 2 }, domain.ImpactCritical},
	{func(in impactInput) bool {
		return in.eventType == domain.EventETF || in.eventType == domain.EventEnforcement
	}, domain.ImpactHigh},
	{func(in impactInput) bool {
		switch in.eventType {
		case domain.EventHack, domain.EventCBDC, domain.EventLegislation, domain.EventRegulation, domain.EventAdoption:
			return true
		}
		return false
	}, domain.ImpactMedium},
}

// ImpactLevel applies the impact rules; anything unmatched is low.
func ImpactLevel(eventType domain.EventType, sentiment float64, affectedCoins int) domain.ImpactLevel {
	in := impactInput{eventType: eventType, sentiment: sentiment, affectedCoins: affectedCoins}
	for _, rule := range impactRules {
		if rule.match(in) {
			return rule.impact
		}
	}
	return domain.ImpactLow
}

var sourceTypeRules = []struct {
	match      func(item provider.ContentItem, host string) bool
	sourceType domain.SourceType
}{
	{func(item provider.ContentItem, _ string) bool { return item.Source == "reddit" }, domain.SourceSocial},
	{func(_ provider.ContentItem, host string) bool {
		return strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov.") || strings.HasSuffix(host, "europa.eu")
	}, domain.SourceGovernment},
	{func(_ provider.ContentItem, host string) bool {
		for _, ex := range []string{"binance.com", "coinbase.com", "kraken.com", "okx.com"} {
			if strings.HasSuffix(host, ex) {
				return true
			}
		}
		return false
	}, domain.SourceExchange},
}

func classifySourceType(item provider.ContentItem) domain.SourceType {
	host, _ := item.Metadata["feed_host"].(string)
	host = strings.ToLower(host)
	for _, rule := range sourceTypeRules {
		if rule.match(item, host) {
			return rule.sourceType
		}
	}
	return domain.SourceNews
}

// ClassifyItem turns one scored item into an immutable news event.
// sentiment is the item's score in [-1, 1].
func ClassifyItem(item provider.ContentItem, sentiment float64, symbols []string) (domain.NewsEvent, bool) {
	text := item.Title + " " + item.Excerpt
	eventType, err := ClassifyEventType(text)
	// Untagged social chatter is not an event.
	if err != nil && item.Source == "reddit" {
		return domain.NewsEvent{}, false
	}

	impact := math.Round(clamp(sentiment, -1, 1) * 100)
	h := sha1.Sum([]byte(item.Source + "|" + item.SourceItemID))
	return domain.NewsEvent{
		ID:              hex.EncodeToString(h[:]),
		Timestamp:       item.PublishedAt.UTC(),
		Title:           item.Title,
		URL:             item.URL,
		Source:          item.Source,
		EventType:       eventType,
		SourceType:      classifySourceType(item),
		Region:          DetectRegion(text),
		ImpactLevel:     ImpactLevel(eventType, impact, len(symbols)),
		SentimentImpact: impact,
		AffectedCoins:   append([]string(nil), symbols...),
		AffectedSectors: DetectSectors(text),
	}, true
}
