// Package metrics exposes ingestion, limiter and HTTP measurements to
// Prometheus.
package metrics

import (
	"strconv"
	"time"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market_pulse"

// Recorder implements provider.LimiterObserver and ingest.RunObserver.
type Recorder struct {
	dispatched  *prometheus.CounterVec
	retries     *prometheus.CounterVec
	exhausted   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	runAssets   *prometheus.GaugeVec
	snapshots   *prometheus.CounterVec
	assetErrors *prometheus.CounterVec
	backfill    *prometheus.CounterVec
	httpTotal   *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_dispatched_total",
			Help:      "Outbound requests dispatched per upstream bucket.",
		}, []string{"bucket"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_retries_total",
			Help:      "Requests re-queued after a 429 or transport error.",
		}, []string{"bucket"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_exhausted_total",
			Help:      "Requests that used their whole retry budget.",
		}, []string{"bucket"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_runs_total",
			Help:      "Completed ingestion runs by final state.",
		}, []string{"state"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		runAssets: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingestion_last_run",
			Help:      "Counts from the most recent ingestion run.",
		}, []string{"field"}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_created_total",
			Help:      "Persisted snapshots by asset and predicted direction.",
		}, []string{"symbol", "direction"}),
		assetErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_asset_errors_total",
			Help:      "Per-asset ingestion failures by kind.",
		}, []string{"symbol", "kind"}),
		backfill: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_outcomes_total",
			Help:      "Realized outcome backfill results.",
		}, []string{"result"}),
		httpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
	}
}

func (r *Recorder) ObserveDispatch(bucket string) {
	r.dispatched.WithLabelValues(bucket).Inc()
}

func (r *Recorder) ObserveRetry(bucket string, retries int) {
	r.retries.WithLabelValues(bucket).Inc()
}

func (r *Recorder) ObserveExhausted(bucket string) {
	r.exhausted.WithLabelValues(bucket).Inc()
}

func (r *Recorder) ObserveRun(res domain.RunResult) {
	r.runs.WithLabelValues(string(res.State)).Inc()
	r.runDuration.Observe(float64(res.DurationMs) / 1000)
	r.runAssets.WithLabelValues("snapshots").Set(float64(res.SnapshotsCreated))
	r.runAssets.WithLabelValues("errors").Set(float64(len(res.Errors)))
	r.runAssets.WithLabelValues("warnings").Set(float64(len(res.Warnings)))
	r.ObserveBackfill(res.Backfill)
}

func (r *Recorder) ObserveBackfill(res domain.BackfillResult) {
	r.backfill.WithLabelValues("updated").Add(float64(res.Updated))
	r.backfill.WithLabelValues("error").Add(float64(res.Errors))
}

func (r *Recorder) ObserveSnapshot(symbol string, direction *domain.Direction) {
	d := "none"
	if direction != nil {
		d = string(*direction)
	}
	r.snapshots.WithLabelValues(symbol, d).Inc()
}

func (r *Recorder) ObserveAssetError(symbol, kind string) {
	r.assetErrors.WithLabelValues(symbol, kind).Inc()
}

// GinMiddleware records request counts and latency using the matched route
// template so raw asset paths do not explode label cardinality.
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// QueueReader is satisfied by provider.HostRateLimiter.
type QueueReader interface {
	QueueLen(bucket string) int
}

// RegisterQueueDepth exposes the waiting request count of each bucket,
// sampled at scrape time.
func RegisterQueueDepth(reg prometheus.Registerer, q QueueReader, buckets []string) {
	f := promauto.With(reg)
	for _, b := range buckets {
		bucket := b
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "limiter_queue_depth",
			Help:        "Requests waiting in a limiter bucket.",
			ConstLabels: prometheus.Labels{"bucket": bucket},
		}, func() float64 { return float64(q.QueueLen(bucket)) })
	}
}
