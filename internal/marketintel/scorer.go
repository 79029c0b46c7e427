package marketintel

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// Item is the text a sentiment scorer sees. Key is unique within one call.
type Item struct {
	Key     string
	Title   string
	Excerpt string
}

type SentimentScore struct {
	Key        string
	Score      float64
	Confidence float64
	Label      string
	Model      string
	Reason     string
}

type BatchLLMScorer interface {
	ScoreBatch(ctx context.Context, items []Item) ([]SentimentScore, error)
}

// Scorer scores every item with the keyword heuristic and lets an optional
// LLM override the items it answers for. A failed batch keeps its heuristic
// scores.
type Scorer struct {
	llm       BatchLLMScorer
	batchSize int
}

func NewScorer(llm BatchLLMScorer, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = 24
	}
	return &Scorer{llm: llm, batchSize: batchSize}
}

func (s *Scorer) Score(ctx context.Context, items []Item) ([]SentimentScore, error) {
	if len(items) == 0 {
		return nil, nil
	}

	byKey := make(map[string]SentimentScore, len(items))
	for _, item := range items {
		byKey[item.Key] = HeuristicSentiment(item)
	}

	if s.llm != nil {
		for batch := range slices.Chunk(items, s.batchSize) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scored, err := s.llm.ScoreBatch(ctx, batch)
			if err != nil {
				log.Warn().Err(err).Int("items", len(batch)).Msg("llm sentiment batch failed, keeping heuristic scores")
				continue
			}
			for _, row := range scored {
				if _, ok := byKey[row.Key]; ok {
					byKey[row.Key] = mergeLLM(byKey[row.Key], row)
				}
			}
		}
	}

	out := make([]SentimentScore, 0, len(items))
	for _, item := range items {
		out = append(out, byKey[item.Key])
	}
	return out, nil
}

func mergeLLM(base, row SentimentScore) SentimentScore {
	base.Score = clamp(row.Score, -1, 1)
	base.Confidence = clamp(row.Confidence, 0, 1)
	base.Label = normalizeLabel(row.Label)
	base.Reason = strings.TrimSpace(row.Reason)
	if base.Reason == "" {
		base.Reason = "llm"
	}
	if row.Model != "" {
		base.Model = row.Model
	}
	return base
}

func normalizeLabel(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "bull", "bullish", "positive":
		return "bullish"
	case "bear", "bearish", "negative":
		return "bearish"
	default:
		return "neutral"
	}
}
