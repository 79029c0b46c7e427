package marketintel

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
)

func TestScorerHeuristicFallback(t *testing.T) {
	scorer := NewScorer(nil, 10)
	items := []Item{{Key: "rss:1", Title: "Bitcoin breakout", Excerpt: "bull trend"}}

	out, err := scorer.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 score, got %d", len(out))
	}
	if out[0].Model != "heuristic:v1" {
		t.Fatalf("expected heuristic model, got %s", out[0].Model)
	}
	if out[0].Score <= 0 || out[0].Label != "bullish" {
		t.Fatalf("expected bullish heuristic score, got %+v", out[0])
	}
}

func TestScorerUsesLLMWhenAvailable(t *testing.T) {
	scorer := NewScorer(stubLLMScorer{scores: []SentimentScore{{
		Key:        "rss:1",
		Score:      0.8,
		Confidence: 0.9,
		Label:      "bullish",
		Reason:     "llm",
		Model:      "llm:gpt-4o-mini",
	}}}, 10)
	items := []Item{{Key: "rss:1", Title: "neutral", Excerpt: "neutral"}}

	out, err := scorer.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Model != "llm:gpt-4o-mini" {
		t.Fatalf("expected llm model override, got %s", out[0].Model)
	}
	if out[0].Label != "bullish" {
		t.Fatalf("expected bullish label, got %s", out[0].Label)
	}
}

func TestScorerFallsBackWhenLLMErrors(t *testing.T) {
	scorer := NewScorer(stubLLMScorer{err: errors.New("boom")}, 10)
	items := []Item{{Key: "rss:1", Title: "hack and dump", Excerpt: "bear"}}

	out, err := scorer.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Model != "heuristic:v1" {
		t.Fatalf("expected heuristic fallback, got %s", out[0].Model)
	}
	if out[0].Score >= 0 {
		t.Fatalf("expected negative score, got %f", out[0].Score)
	}
}

func TestHeuristicSentimentEmptyText(t *testing.T) {
	got := HeuristicSentiment(Item{Key: "k", Title: "  "})
	if got.Score != 0 || got.Confidence != 0.25 || got.Label != "neutral" || got.Reason != "empty-text" {
		t.Fatalf("unexpected empty-text result: %+v", got)
	}
}

func TestHeuristicSentimentWeighsStrongTerms(t *testing.T) {
	// "hack" counts double, so one strong bearish term outweighs one bullish term.
	got := HeuristicSentiment(Item{Title: "Exchange hacked despite rally"})
	if got.Score >= 0 {
		t.Fatalf("expected net bearish score, got %+v", got)
	}
	if got.Label != "bearish" || got.Confidence != 0.35 {
		t.Fatalf("expected bearish call with balanced-hit confidence, got %+v", got)
	}
	if HeuristicSentiment(Item{Title: "hackathon winners"}).Score != 0 {
		t.Fatal("expected whole-word matching only")
	}
}

func TestScorerBatchesLLMCalls(t *testing.T) {
	llm := &countingLLM{}
	items := make([]Item, 5)
	for i := range items {
		items[i] = Item{Key: string(rune('a' + i)), Title: "flat"}
	}
	out, err := NewScorer(llm, 2).Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(llm.sizes) != 3 || llm.sizes[0] != 2 || llm.sizes[2] != 1 {
		t.Fatalf("expected batches of 2,2,1, got %v", llm.sizes)
	}
	if len(out) != 5 || out[4].Key != "e" || out[4].Model != "llm:test" {
		t.Fatalf("expected llm scores in input order, got %+v", out)
	}
}

func TestScorerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScorer(&countingLLM{}, 2).Score(ctx, []Item{{Key: "a"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	for in, want := range map[string]string{
		`[]`:                  `[]`,
		"```\n[1]\n```":       `[1]`,
		"```JSON [2] ```":     `[2]`,
		"  ```json\n[3]```  ": `[3]`,
	} {
		if got := stripCodeFence(in); got != want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenAIScorerParsesFencedJSON(t *testing.T) {
	scorer := &OpenAIScorer{
		model: "gpt-4o-mini",
		client: stubChatClient{content: "```json\n" +
			`[{"id":"a","score":1.7,"confidence":0.6,"label":"Positive","reason":"etf"},{"id":"zzz","score":0.1}]` +
			"\n```"},
	}

	out, err := scorer.ScoreBatch(context.Background(), []Item{{Key: "a", Title: "ETF approved"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected unknown ids dropped, got %+v", out)
	}
	if out[0].Score != 1 || out[0].Label != "bullish" || out[0].Model != "llm:gpt-4o-mini" {
		t.Fatalf("unexpected parsed score: %+v", out[0])
	}
}

func TestNewOpenAIScorerRequiresKey(t *testing.T) {
	if NewOpenAIScorer(" ", "") != nil {
		t.Fatalf("expected nil scorer without api key")
	}
}

type stubLLMScorer struct {
	scores []SentimentScore
	err    error
}

func (s stubLLMScorer) ScoreBatch(ctx context.Context, items []Item) ([]SentimentScore, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]SentimentScore(nil), s.scores...), nil
}

type countingLLM struct {
	sizes []int
}

func (c *countingLLM) ScoreBatch(ctx context.Context, items []Item) ([]SentimentScore, error) {
	c.sizes = append(c.sizes, len(items))
	out := make([]SentimentScore, len(items))
	for i, item := range items {
		out[i] = SentimentScore{Key: item.Key, Score: 0.5, Confidence: 0.8, Label: "bullish", Model: "llm:test"}
	}
	return out, nil
}

type stubChatClient struct {
	content string
}

func (s stubChatClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Content: s.content},
	}}}, nil
}
