package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	r := newTestRouter(Deps{})

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if body != "{\"status\":\"healthy\"}\n" && body != "{\"status\":\"healthy\"}" {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestHealthReportsFailingDependency(t *testing.T) {
	r := newTestRouter(Deps{
		Runner: &runnerStub{running: true},
		Checks: map[string]func(ctx context.Context) error{
			"postgres": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		},
	})

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body struct {
		Status  string            `json:"status"`
		Checks  map[string]string `json:"checks"`
		Running bool              `json:"ingestion_running"`
	}
	decode(t, w, &body)
	if body.Status != "degraded" || body.Checks["postgres"] != "ok" || body.Checks["redis"] != "connection refused" || !body.Running {
		t.Fatalf("unexpected health body: %+v", body)
	}
}
