package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLimiterCounters(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.ObserveDispatch("coingecko")
	r.ObserveDispatch("coingecko")
	r.ObserveRetry("coingecko", 1)
	r.ObserveExhausted("reddit")

	if got := testutil.ToFloat64(r.dispatched.WithLabelValues("coingecko")); got != 2 {
		t.Fatalf("expected 2 dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(r.retries.WithLabelValues("coingecko")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(r.exhausted.WithLabelValues("reddit")); got != 1 {
		t.Fatalf("expected 1 exhaustion, got %v", got)
	}
}

func TestObserveRun(t *testing.T) {
	r := New(prometheus.NewRegistry())
	bull := domain.DirectionBullish
	r.ObserveSnapshot("BTC", &bull)
	r.ObserveSnapshot("ETH", nil)
	r.ObserveAssetError("SOL", "persist")
	r.ObserveRun(domain.RunResult{
		State:            domain.StatePartialFailure,
		SnapshotsCreated: 2,
		Errors:           []string{"asset:SOL: save snapshot: boom"},
		Backfill:         domain.BackfillResult{Updated: 3, Errors: 1},
		DurationMs:       1500,
	})

	if got := testutil.ToFloat64(r.snapshots.WithLabelValues("BTC", "BULLISH")); got != 1 {
		t.Fatalf("expected bullish BTC snapshot, got %v", got)
	}
	if got := testutil.ToFloat64(r.snapshots.WithLabelValues("ETH", "none")); got != 1 {
		t.Fatalf("expected unscored ETH snapshot, got %v", got)
	}
	if got := testutil.ToFloat64(r.assetErrors.WithLabelValues("SOL", "persist")); got != 1 {
		t.Fatalf("expected persist error, got %v", got)
	}
	if got := testutil.ToFloat64(r.runs.WithLabelValues(string(domain.StatePartialFailure))); got != 1 {
		t.Fatalf("expected partial failure run, got %v", got)
	}
	if got := testutil.ToFloat64(r.runAssets.WithLabelValues("errors")); got != 1 {
		t.Fatalf("expected last run error gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.backfill.WithLabelValues("updated")); got != 3 {
		t.Fatalf("expected 3 backfilled, got %v", got)
	}
	if n := testutil.CollectAndCount(r.runDuration); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

type queueStub map[string]int

func (q queueStub) QueueLen(bucket string) int { return q[bucket] }

func TestQueueDepthGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterQueueDepth(reg, queueStub{"coingecko": 4}, []string{"coingecko", "reddit"})

	want := `
# HELP market_pulse_limiter_queue_depth Requests waiting in a limiter bucket.
# TYPE market_pulse_limiter_queue_depth gauge
market_pulse_limiter_queue_depth{bucket="coingecko"} 4
market_pulse_limiter_queue_depth{bucket="reddit"} 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "market_pulse_limiter_queue_depth"); err != nil {
		t.Fatalf("unexpected gauge output: %v", err)
	}
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New(prometheus.NewRegistry())
	router := gin.New()
	router.Use(r.GinMiddleware())
	router.GET("/api/snapshots/:asset", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/snapshots/btc", "/api/snapshots/eth", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(r.httpTotal.WithLabelValues("/api/snapshots/:asset", "GET", "204")); got != 2 {
		t.Fatalf("expected 2 templated requests, got %v", got)
	}
	if got := testutil.ToFloat64(r.httpTotal.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}
