package marketintel

import (
	"regexp"
	"sort"
	"strings"

	"market-pulse/internal/domain"
)

var cashtagRx = regexp.MustCompile(`\$[A-Za-z]{2,10}\b`)

// Ticker-like aliases that are also English words only count as cashtags.
var symbolAlias = map[string][]string{
	"BTC":   {"btc", "bitcoin", "xbt"},
	"ETH":   {"eth", "ethereum", "ether"},
	"SOL":   {"solana"},
	"XRP":   {"xrp", "ripple", "xrpl"},
	"ADA":   {"cardano"},
	"DOGE":  {"doge", "dogecoin"},
	"DOT":   {"polkadot"},
	"AVAX":  {"avax", "avalanche"},
	"LINK":  {"chainlink"},
	"MATIC": {"matic", "polygon"},
}

var subredditSymbolHint = map[string]string{
	"bitcoin":        "BTC",
	"ethereum":       "ETH",
	"solana":         "SOL",
	"cardano":        "ADA",
	"ripple":         "XRP",
	"xrpl":           "XRP",
	"dogecoin":       "DOGE",
	"polkadot":       "DOT",
	"chainlink":      "LINK",
	"cryptocurrency": "",
}

// ExtractSymbols returns the sorted supported symbols an item mentions.
func ExtractSymbols(source, title, excerpt string, metadata map[string]any) []string {
	raw := title + " " + excerpt
	text := normalizeText(raw)
	matched := make(map[string]struct{}, 4)

	for _, tag := range cashtagRx.FindAllString(raw, -1) {
		if a, ok := domain.AssetBySymbol(strings.TrimPrefix(tag, "$")); ok {
			matched[a.Symbol] = struct{}{}
		}
	}
	for symbol, aliases := range symbolAlias {
		if hasAnyTerm(text, aliases) {
			matched[symbol] = struct{}{}
		}
	}
	if strings.EqualFold(strings.TrimSpace(source), "reddit") && metadata != nil {
		if sub, ok := metadata["subreddit"].(string); ok {
			if symbol := subredditSymbolHint[strings.ToLower(strings.TrimSpace(sub))]; symbol != "" {
				matched[symbol] = struct{}{}
			}
		}
	}

	if len(matched) == 0 {
		return nil
	}
	out := make([]string, 0, len(matched))
	for symbol := range matched {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func normalizeSymbolList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		a, ok := domain.AssetBySymbol(s)
		if !ok {
			continue
		}
		if _, dup := seen[a.Symbol]; dup {
			continue
		}
		seen[a.Symbol] = struct{}{}
		out = append(out, a.Symbol)
	}
	sort.Strings(out)
	return out
}
