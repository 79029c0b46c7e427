package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestExchangeFlowFetchNetflowSortsOldestFirst(t *testing.T) {
	p := NewExchangeFlowProvider(nil, testTracer(), "https://example.com/v1", "secret")
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/btc/exchange-flows/netflow" {
			t.Errorf("unexpected path: %s", req.URL.Path)
		}
		if req.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if req.URL.Query().Get("limit") != "7" {
			t.Errorf("unexpected limit: %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, `{"result":{"data":[
			{"date":"2025-03-02","netflow_total":-1200.5},
			{"date":"2025-03-01","netflow_total":"300"},
			{"date":"bad","netflow_total":1},
			{"date":"2025-02-28","netflow_total":"n/a"},
			{"date":"2025-02-27","netflow_total":""}]}}`), nil
	})

	points, err := p.FetchNetflow(context.Background(), "BTC", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Value != 300 || points[1].Value != -1200.5 {
		t.Fatalf("unexpected ordering: %+v", points)
	}
}

func TestExchangeFlowRequiresKeyAndSupport(t *testing.T) {
	p := NewExchangeFlowProvider(nil, testTracer(), "", "")
	if _, err := p.FetchWhaleRatio(context.Background(), "BTC", 7); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	p.apiKey = "k"
	if _, err := p.FetchWhaleRatio(context.Background(), "DOGE", 7); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported symbol error, got %v", err)
	}
}
