package marketintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	scoringPrompt      = "You score crypto market sentiment. Return ONLY a JSON array. Each object has: " +
		"id (string, copied verbatim), score (-1..1), confidence (0..1), label (bullish|neutral|bearish), " +
		"reason (short text). No markdown."
)

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIScorer asks a chat model to score a batch of items in one call.
type OpenAIScorer struct {
	client openAIChatClient
	model  string
}

// NewOpenAIScorer returns nil without an API key.
func NewOpenAIScorer(apiKey string, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIScorer{
		client: chatCompletions{client: openai.NewClient(option.WithAPIKey(apiKey))},
		model:  model,
	}
}

type llmRow struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Reason     string  `json:"reason"`
}

func batchPrompt(items []Item) string {
	var b strings.Builder
	b.WriteString("Items:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "id=%s\ntitle=%s\nexcerpt=%s\n\n",
			item.Key, strings.TrimSpace(item.Title), strings.TrimSpace(item.Excerpt))
	}
	return b.String()
}

// ScoreBatch drops rows whose id was not in the batch.
func (s *OpenAIScorer) ScoreBatch(ctx context.Context, items []Item) ([]SentimentScore, error) {
	if s == nil || s.client == nil || len(items) == 0 {
		return nil, nil
	}

	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scoringPrompt),
			openai.UserMessage(batchPrompt(items)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai sentiment: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai sentiment: empty completion")
	}

	var rows []llmRow
	if err := json.Unmarshal([]byte(stripCodeFence(completion.Choices[0].Message.Content)), &rows); err != nil {
		return nil, fmt.Errorf("parse sentiment json: %w", err)
	}

	want := make(map[string]bool, len(items))
	for _, item := range items {
		want[item.Key] = true
	}
	out := make([]SentimentScore, 0, len(rows))
	for _, row := range rows {
		if !want[row.ID] {
			continue
		}
		want[row.ID] = false
		out = append(out, SentimentScore{
			Key:        row.ID,
			Score:      clamp(row.Score, -1, 1),
			Confidence: clamp(row.Confidence, 0, 1),
			Label:      normalizeLabel(row.Label),
			Reason:     strings.TrimSpace(row.Reason),
			Model:      "llm:" + s.model,
		})
	}
	return out, nil
}

// stripCodeFence removes a ```json fence some models wrap answers in.
func stripCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "```") {
		return v
	}
	v = strings.TrimPrefix(v, "```")
	if len(v) >= 4 && strings.EqualFold(v[:4], "json") {
		v = v[4:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "```"))
}

type chatCompletions struct {
	client openai.Client
}

func (c chatCompletions) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
