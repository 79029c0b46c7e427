package handler

import (
	"context"
	"net/http"
	"time"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type IngestionRunner interface {
	RunFullIngestion(ctx context.Context, opts domain.RunOptions) domain.RunResult
	Running() bool
}

type Backfiller interface {
	BackfillRealizedOutcomes(ctx context.Context, now time.Time) (domain.BackfillResult, error)
}

type SnapshotReader interface {
	GetLatestSnapshot(ctx context.Context, assetID string) (*domain.Snapshot, error)
	ListSnapshots(ctx context.Context, assetID string, since time.Time, limit int) ([]*domain.Snapshot, error)
}

type LatestReader interface {
	Get(ctx context.Context, symbol string) (*domain.Snapshot, error)
}

type NewsReader interface {
	ListNewsEventsSince(ctx context.Context, since time.Time) ([]domain.NewsEvent, error)
}

// Deps are the collaborators behind the API. Nil members turn their routes
// into 503 responses.
type Deps struct {
	Runner     IngestionRunner
	Backfiller Backfiller
	Snapshots  SnapshotReader
	Latest     LatestReader
	News       NewsReader
	Checks     map[string]func(ctx context.Context) error
	Metrics    http.Handler

	// RunDefaults fills fields a trigger request leaves out.
	RunDefaults domain.RunOptions
}

type Handler struct {
	tracer trace.Tracer
	deps   Deps
	now    func() time.Time
}

func New(tracer trace.Tracer, deps Deps) *Handler {
	return &Handler{tracer: tracer, deps: deps, now: time.Now}
}

// RegisterRoutes mounts health and metrics at the root and the rest under
// /api behind mw.
func (h *Handler) RegisterRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	r.GET("/health", h.Health)
	if h.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}

	api := r.Group("/api", mw...)
	api.GET("/assets", h.ListAssets)
	api.GET("/snapshots/:asset", h.GetLatestSnapshot)
	api.GET("/snapshots/:asset/history", h.GetSnapshotHistory)
	api.GET("/policy-risk", h.GetPolicyRisk)
	api.POST("/ingestion/run", h.TriggerIngestion)
	api.POST("/backfill/run", h.TriggerBackfill)
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " unavailable"})
}

// ListAssets returns the tracked asset table.
// @Summary      List tracked assets
// @Tags         assets
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/assets [get]
func (h *Handler) ListAssets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": domain.SupportedAssets})
}
