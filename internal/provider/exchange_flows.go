package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const cryptoQuantBaseURL = "https://api.cryptoquant.com/v1"

// ErrProviderNotConfigured means the provider needs an API key it lacks.
var ErrProviderNotConfigured = errors.New("provider not configured")

// ExchangeFlowProvider reads CryptoQuant-compatible exchange flow endpoints.
type ExchangeFlowProvider struct {
	client  Doer
	baseURL string
	apiKey  string
	tracer  trace.Tracer
}

func NewExchangeFlowProvider(client Doer, tracer trace.Tracer, baseURL, apiKey string) *ExchangeFlowProvider {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = cryptoQuantBaseURL
	}
	return &ExchangeFlowProvider{
		client:  orDefaultClient(client),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		tracer:  tracer,
	}
}

// Supports reports whether flow data exists for symbol.
func (p *ExchangeFlowProvider) Supports(symbol string) bool {
	switch strings.ToUpper(symbol) {
	case "BTC", "ETH", "XRP":
		return true
	}
	return false
}

// FetchNetflow returns daily all-exchange netflow in native units, oldest first.
// Positive values are net deposits.
func (p *ExchangeFlowProvider) FetchNetflow(ctx context.Context, symbol string, days int) ([]FlowPoint, error) {
	ctx, span := p.tracer.Start(ctx, "cryptoquant.fetch-netflow")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))
	return p.fetchSeries(ctx, symbol, "exchange-flows/netflow", "netflow_total", days)
}

// FetchWhaleRatio returns the daily exchange whale ratio, oldest first.
func (p *ExchangeFlowProvider) FetchWhaleRatio(ctx context.Context, symbol string, days int) ([]FlowPoint, error) {
	ctx, span := p.tracer.Start(ctx, "cryptoquant.fetch-whale-ratio")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))
	return p.fetchSeries(ctx, symbol, "flow-indicator/exchange-whale-ratio", "exchange_whale_ratio", days)
}

func (p *ExchangeFlowProvider) fetchSeries(ctx context.Context, symbol, path, field string, days int) ([]FlowPoint, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("cryptoquant: %w", ErrProviderNotConfigured)
	}
	if !p.Supports(symbol) {
		return nil, fmt.Errorf("cryptoquant: unsupported symbol %s", symbol)
	}
	if days <= 0 {
		days = 7
	}

	q := url.Values{}
	q.Set("exchange", "all_exchange")
	q.Set("window", "day")
	q.Set("limit", fmt.Sprintf("%d", days))
	u := fmt.Sprintf("%s/%s/%s?%s", p.baseURL, strings.ToLower(symbol), path, q.Encode())

	body, err := fetch(ctx, p.client, "cryptoquant", u, map[string]string{"Authorization": "Bearer " + p.apiKey})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Result struct {
			Data []map[string]json.RawMessage `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode cryptoquant payload: %w", err)
	}

	points := make([]FlowPoint, 0, len(payload.Result.Data))
	for _, row := range payload.Result.Data {
		raw, ok := row[field]
		if !ok || string(raw) == "null" {
			continue
		}
		var date string
		var value number
		if json.Unmarshal(row["date"], &date) != nil || json.Unmarshal(raw, &value) != nil {
			continue
		}
		v, ok := value.Value()
		if !ok {
			continue
		}
		ts, err := time.Parse("2006-01-02", strings.TrimSpace(date))
		if err != nil {
			continue
		}
		points = append(points, FlowPoint{Date: ts.UTC(), Value: v})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("cryptoquant %s payload has no rows", path)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
