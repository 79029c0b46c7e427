package marketintel

import (
	"reflect"
	"testing"
)

func TestExtractSymbolsKeywordsAndCashtags(t *testing.T) {
	symbols := ExtractSymbols("news", "Bitcoin and ETH rally", "$ADA joins move", nil)
	expected := []string{"ADA", "BTC", "ETH"}
	if !reflect.DeepEqual(symbols, expected) {
		t.Fatalf("expected %v, got %v", expected, symbols)
	}
}

func TestExtractSymbolsIgnoresEmbeddedWords(t *testing.T) {
	if got := ExtractSymbols("news", "Canada solution links dotted", "", nil); got != nil {
		t.Fatalf("expected no symbols, got %v", got)
	}
}

func TestExtractSymbolsSubredditHint(t *testing.T) {
	symbols := ExtractSymbols("reddit", "Daily thread", "no explicit token", map[string]any{"subreddit": "Ripple"})
	if !reflect.DeepEqual(symbols, []string{"XRP"}) {
		t.Fatalf("expected [XRP], got %v", symbols)
	}
}

func TestNormalizeSymbolList(t *testing.T) {
	got := normalizeSymbolList([]string{"btc", "ETH", "ETH", "fake", ""})
	if !reflect.DeepEqual(got, []string{"BTC", "ETH"}) {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestHasTermBoundaries(t *testing.T) {
	cases := []struct {
		text, term string
		want       bool
	}{
		{"spot etf approved", "etf", true},
		{"betfair stats", "etf", false},
		{"the u.s. sec sues", "u.s.", true},
		{"sec-registered", "sec", true},
		{"secure vault", "sec", false},
	}
	for _, c := range cases {
		if got := hasTerm(c.text, c.term); got != c.want {
			t.Fatalf("hasTerm(%q, %q) = %v", c.text, c.term, got)
		}
	}
}
