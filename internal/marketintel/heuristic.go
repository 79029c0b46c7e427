package marketintel

import (
	"fmt"
	"math"
)

const heuristicModel = "heuristic:v1"

// Strong terms count double.
var (
	bullishLexicon = map[string]float64{
		"bull": 1, "bullish": 1, "breakout": 1, "surge": 1, "surges": 1, "rally": 1, "rallies": 1,
		"adoption": 1, "outflow": 1, "outflows": 1, "growth": 1, "buy": 1, "uptrend": 1, "recover": 1,
		"recovers": 1, "gain": 1, "gains": 1, "soar": 1, "soars": 1,
		"approval": 2, "approved": 2, "approves": 2, "record high": 2, "all-time high": 2,
	}
	bearishLexicon = map[string]float64{
		"bear": 1, "bearish": 1, "dump": 1, "sell-off": 1, "selloff": 1, "inflow": 1, "inflows": 1,
		"decline": 1, "declines": 1, "downtrend": 1, "liquidation": 1, "liquidations": 1, "plunge": 1,
		"plunges": 1, "lawsuit": 1, "ban": 1, "bans": 1,
		"crash": 2, "crashes": 2, "hack": 2, "hacked": 2, "exploit": 2, "fraud": 2, "insolvent": 2,
	}
)

func lexiconWeight(text string, lexicon map[string]float64) (float64, int) {
	sum, hits := 0.0, 0
	for term, w := range lexicon {
		if hasTerm(text, term) {
			sum += w
			hits++
		}
	}
	return sum, hits
}

// HeuristicSentiment scores an item in [-1, 1] from weighted keyword hits.
// Confidence stays within [0.25, 0.70] since keywords miss negation.
func HeuristicSentiment(item Item) SentimentScore {
	out := SentimentScore{Key: item.Key, Model: heuristicModel, Label: "neutral"}
	text := normalizeText(item.Title, item.Excerpt)
	if text == "" {
		out.Confidence = 0.25
		out.Reason = "empty-text"
		return out
	}

	bull, bullHits := lexiconWeight(text, bullishLexicon)
	bear, bearHits := lexiconWeight(text, bearishLexicon)

	out.Score = clamp((bull-bear)/(bull+bear+1), -1, 1)
	out.Confidence = clamp(0.35+0.1*math.Abs(float64(bullHits-bearHits)), 0.25, 0.70)
	switch {
	case out.Score > 0.2:
		out.Label = "bullish"
	case out.Score < -0.2:
		out.Label = "bearish"
	}
	out.Reason = fmt.Sprintf("heuristic keywords bull=%d bear=%d", bullHits, bearHits)
	return out
}
