package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const fearGreedBaseURL = "https://api.alternative.me"

// FearGreedProvider reads the alternative.me crypto Fear & Greed index.
type FearGreedProvider struct {
	client  Doer
	baseURL string
	tracer  trace.Tracer
}

func NewFearGreedProvider(client Doer, tracer trace.Tracer) *FearGreedProvider {
	return &FearGreedProvider{
		client:  orDefaultClient(client),
		baseURL: fearGreedBaseURL,
		tracer:  tracer,
	}
}

// fngRow mirrors one index row; alternative.me sends every field as a string.
type fngRow struct {
	Value           number `json:"value"`
	Classification  string `json:"value_classification"`
	Timestamp       number `json:"timestamp"`
	TimeUntilUpdate number `json:"time_until_update"`
}

func (r fngRow) point() (*FearGreedPoint, error) {
	value, err := r.Value.require("fear & greed value")
	if err != nil {
		return nil, err
	}
	if value < 0 || value > 100 || value != math.Trunc(value) {
		return nil, fmt.Errorf("fear & greed value %v out of range", value)
	}
	rawTS, err := r.Timestamp.require("fear & greed timestamp")
	if err != nil {
		return nil, err
	}
	ts := int64(rawTS)
	if ts <= 0 {
		return nil, errors.New("fear & greed row has no timestamp")
	}
	// Some mirrors answer in milliseconds.
	if ts > 1_000_000_000_000 {
		ts /= 1000
	}
	untilUpdate, _ := r.TimeUntilUpdate.Value()
	return &FearGreedPoint{
		Value:            int(value),
		Classification:   strings.TrimSpace(r.Classification),
		Timestamp:        time.Unix(ts, 0).UTC(),
		TimeUntilUpdateS: max(int(untilUpdate), 0),
	}, nil
}

func (p *FearGreedProvider) FetchLatest(ctx context.Context) (*FearGreedPoint, error) {
	ctx, span := p.tracer.Start(ctx, "feargreed.fetch-latest")
	defer span.End()

	body, err := fetch(ctx, p.client, "fear & greed", strings.TrimRight(p.baseURL, "/")+"/fng/?limit=1", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []fngRow `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode fear & greed response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, errors.New("fear & greed response has no rows")
	}
	point, err := payload.Data[0].point()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("value", point.Value))
	return point, nil
}
