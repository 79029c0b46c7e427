package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type runnerStub struct {
	mu      sync.Mutex
	running bool
	result  domain.RunResult
	calls   []domain.RunOptions
	done    chan struct{}
}

func (r *runnerStub) RunFullIngestion(ctx context.Context, opts domain.RunOptions) domain.RunResult {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()
	if r.done != nil {
		close(r.done)
	}
	return r.result
}

func (r *runnerStub) Running() bool { return r.running }

type backfillStub struct {
	res domain.BackfillResult
	err error
}

func (b backfillStub) BackfillRealizedOutcomes(ctx context.Context, now time.Time) (domain.BackfillResult, error) {
	return b.res, b.err
}

type snapshotStoreStub struct {
	latest    *domain.Snapshot
	latestErr error
	list      []*domain.Snapshot
	since     time.Time
	limit     int
	assetID   string
}

func (s *snapshotStoreStub) GetLatestSnapshot(ctx context.Context, assetID string) (*domain.Snapshot, error) {
	s.assetID = assetID
	return s.latest, s.latestErr
}

func (s *snapshotStoreStub) ListSnapshots(ctx context.Context, assetID string, since time.Time, limit int) ([]*domain.Snapshot, error) {
	s.assetID, s.since, s.limit = assetID, since, limit
	return s.list, nil
}

type latestStub struct {
	snap *domain.Snapshot
	err  error
}

func (l latestStub) Get(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	return l.snap, l.err
}

type newsStub struct {
	events []domain.NewsEvent
	since  time.Time
}

func (n *newsStub) ListNewsEventsSince(ctx context.Context, since time.Time) ([]domain.NewsEvent, error) {
	n.since = since
	return n.events, nil
}

func newTestRouter(deps Deps, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(trace.NewNoopTracerProvider().Tracer("handler-test"), deps)
	h.now = func() time.Time { return fixedNow }
	r := gin.New()
	h.RegisterRoutes(r, mw...)
	return r
}

func do(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("parse error: %v (%s)", err, w.Body.String())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	r := newTestRouter(Deps{}, APIKeyAuth("secret"))

	if w := do(r, http.MethodGet, "/api/assets", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/assets", "", "X-API-Key", "wrong"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong key, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/assets", "", "X-API-Key", "secret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("expected health to skip auth, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(Deps{}, RateLimit(1, 2))

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodGet, "/api/assets", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := do(r, http.MethodGet, "/api/assets", "")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", w.Code)
	}
}

func TestGetLatestSnapshotPrefersCache(t *testing.T) {
	store := &snapshotStoreStub{latestErr: errors.New("should not be called")}
	r := newTestRouter(Deps{
		Latest:    latestStub{snap: &domain.Snapshot{ID: "cached", Symbol: "BTC"}},
		Snapshots: store,
	})

	w := do(r, http.MethodGet, "/api/snapshots/btc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Source   string          `json:"source"`
		Snapshot domain.Snapshot `json:"snapshot"`
	}
	decode(t, w, &body)
	if body.Source != "cache" || body.Snapshot.ID != "cached" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if store.assetID != "" {
		t.Fatal("expected the database to be skipped on a cache hit")
	}
}

func TestGetLatestSnapshotFallsBackToDatabase(t *testing.T) {
	store := &snapshotStoreStub{latest: &domain.Snapshot{ID: "db", AssetID: "ethereum"}}
	r := newTestRouter(Deps{Latest: latestStub{err: errors.New("redis down")}, Snapshots: store})

	w := do(r, http.MethodGet, "/api/snapshots/ethereum", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Source string `json:"source"`
	}
	decode(t, w, &body)
	if body.Source != "database" || store.assetID != "ethereum" {
		t.Fatalf("unexpected fallback: source=%s asset=%s", body.Source, store.assetID)
	}
}

func TestGetLatestSnapshotErrors(t *testing.T) {
	store := &snapshotStoreStub{latestErr: domain.ErrNotFound}
	r := newTestRouter(Deps{Snapshots: store})

	if w := do(r, http.MethodGet, "/api/snapshots/BTC", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/snapshots/NOPE", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown asset, got %d", w.Code)
	}
	if w := do(newTestRouter(Deps{}), http.MethodGet, "/api/snapshots/BTC", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", w.Code)
	}
}

func TestGetSnapshotHistory(t *testing.T) {
	store := &snapshotStoreStub{list: []*domain.Snapshot{{ID: "a"}, {ID: "b"}}}
	r := newTestRouter(Deps{Snapshots: store})

	w := do(r, http.MethodGet, "/api/snapshots/SOL/history?days=3&limit=9999", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	decode(t, w, &body)
	if body.Count != 2 {
		t.Fatalf("expected 2 snapshots, got %d", body.Count)
	}
	if !store.since.Equal(fixedNow.Add(-72*time.Hour)) || store.limit != maxHistoryLimit {
		t.Fatalf("unexpected query: since=%v limit=%d", store.since, store.limit)
	}

	if w := do(r, http.MethodGet, "/api/snapshots/SOL/history?days=zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad days, got %d", w.Code)
	}
}

func TestGetPolicyRisk(t *testing.T) {
	news := &newsStub{events: []domain.NewsEvent{{
		ID:              "e1",
		Timestamp:       fixedNow.Add(-time.Hour),
		EventType:       domain.EventEnforcement,
		Region:          domain.RegionUS,
		ImpactLevel:     domain.ImpactHigh,
		SentimentImpact: -50,
	}}}
	r := newTestRouter(Deps{News: news})

	w := do(r, http.MethodGet, "/api/policy-risk?asset=BTC", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		WindowDays int                `json:"window_days"`
		Regions    map[string]float64 `json:"regions"`
		Asset      struct {
			Score float64 `json:"policy_risk_score"`
		} `json:"asset"`
	}
	decode(t, w, &body)
	if body.WindowDays != 30 || body.Regions["us"] != 22.5 || body.Asset.Score != 22.5 {
		t.Fatalf("unexpected policy risk: %+v", body)
	}
	if !news.since.Equal(fixedNow.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("unexpected window start: %v", news.since)
	}
}

func TestTriggerIngestionValidation(t *testing.T) {
	runner := &runnerStub{}
	r := newTestRouter(Deps{Runner: runner})

	cases := map[string]string{
		"bad type":     `{"type":"weekly"}`,
		"unknown coin": `{"coins":["BTC","NOTACOIN"]}`,
		"blank coin":   `{"coins":[""]}`,
		"bad json":     `{"type":`,
	}
	for name, body := range cases {
		if w := do(r, http.MethodPost, "/api/ingestion/run", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", name, w.Code, w.Body.String())
		}
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no runs for invalid requests, got %d", len(runner.calls))
	}
}

func TestTriggerIngestionAppliesDefaults(t *testing.T) {
	runner := &runnerStub{result: domain.RunResult{RunID: "run-1", Success: true, State: domain.StateDone, SnapshotsCreated: 10}}
	r := newTestRouter(Deps{Runner: runner, RunDefaults: domain.RunOptions{StoreTrainingData: true}})

	w := do(r, http.MethodPost, "/api/ingestion/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var res domain.RunResult
	decode(t, w, &res)
	if res.RunID != "run-1" || res.SnapshotsCreated != 10 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := runner.calls[0]; got.Type != domain.RunFull || !got.StoreTrainingData {
		t.Fatalf("expected defaults applied, got %+v", got)
	}

	do(r, http.MethodPost, "/api/ingestion/run", `{"type":"quick","coins":["eth"],"store_training_data":false}`)
	if got := runner.calls[1]; got.Type != domain.RunQuick || got.StoreTrainingData || len(got.Coins) != 1 {
		t.Fatalf("expected request overrides, got %+v", got)
	}
}

func TestTriggerIngestionConflict(t *testing.T) {
	runner := &runnerStub{result: domain.RunResult{State: domain.StateIdle, Errors: []string{"ingestion run already in progress"}}}
	r := newTestRouter(Deps{Runner: runner})

	if w := do(r, http.MethodPost, "/api/ingestion/run", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	runner.running = true
	if w := do(r, http.MethodPost, "/api/ingestion/run?async=true", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected async 409, got %d", w.Code)
	}
}

func TestTriggerIngestionAsync(t *testing.T) {
	runner := &runnerStub{done: make(chan struct{}), result: domain.RunResult{RunID: "bg"}}
	r := newTestRouter(Deps{Runner: runner})

	if w := do(r, http.MethodPost, "/api/ingestion/run?async=true", `{"type":"quick"}`); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("expected background run to start")
	}
}

func TestTriggerBackfill(t *testing.T) {
	r := newTestRouter(Deps{Backfiller: backfillStub{res: domain.BackfillResult{Updated: 4}}})
	w := do(r, http.MethodPost, "/api/backfill/run", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"updated_count":4`) {
		t.Fatalf("unexpected response: %d %s", w.Code, w.Body.String())
	}

	r = newTestRouter(Deps{Backfiller: backfillStub{res: domain.BackfillResult{Errors: 2}, err: errors.New("429")}})
	if w := do(r, http.MethodPost, "/api/backfill/run", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("market_pulse_up 1\n"))
	})
	r := newTestRouter(Deps{Metrics: metrics}, APIKeyAuth("secret"))
	w := do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "market_pulse_up") {
		t.Fatalf("unexpected metrics response: %d %s", w.Code, w.Body.String())
	}
}
