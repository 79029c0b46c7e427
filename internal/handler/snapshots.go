package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultHistoryDays  = 7
	maxHistoryDays      = 90
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

func (h *Handler) resolveAsset(c *gin.Context) (domain.Asset, bool) {
	asset, ok := domain.LookupAsset(c.Param("asset"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported asset: " + c.Param("asset"),
			"supported_symbols": domain.SupportedSymbols,
		})
	}
	return asset, ok
}

// GetLatestSnapshot serves the cached snapshot when present and falls back
// to the database.
// @Summary      Latest snapshot for an asset
// @Tags         snapshots
// @Produce      json
// @Security     ApiKeyAuth
// @Param        asset  path      string  true  "Asset symbol or id"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]interface{}
// @Failure      404    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/snapshots/{asset} [get]
func (h *Handler) GetLatestSnapshot(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-snapshot")
	defer span.End()

	asset, ok := h.resolveAsset(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", asset.Symbol))

	if h.deps.Latest != nil {
		snap, err := h.deps.Latest.Get(ctx, asset.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", asset.Symbol).Msg("latest snapshot cache read failed")
		} else if snap != nil {
			c.JSON(http.StatusOK, gin.H{"source": "cache", "snapshot": snap})
			return
		}
	}

	if h.deps.Snapshots == nil {
		unavailable(c, "snapshot store")
		return
	}
	snap, err := h.deps.Snapshots.GetLatestSnapshot(ctx, asset.ID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for " + asset.Symbol})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": "database", "snapshot": snap})
}

// GetSnapshotHistory lists snapshots newest first. days and limit are
// clamped to their maxima.
// @Summary      Snapshot history for an asset
// @Tags         snapshots
// @Produce      json
// @Security     ApiKeyAuth
// @Param        asset  path      string  true   "Asset symbol or id"
// @Param        days   query     int     false  "Lookback in days (max 90)"  default(7)
// @Param        limit  query     int     false  "Maximum rows (max 500)"     default(100)
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]interface{}
// @Failure      500    {object}  map[string]string
// @Router       /api/snapshots/{asset}/history [get]
func (h *Handler) GetSnapshotHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-snapshot-history")
	defer span.End()

	asset, ok := h.resolveAsset(c)
	if !ok {
		return
	}
	if h.deps.Snapshots == nil {
		unavailable(c, "snapshot store")
		return
	}

	days, err := boundedQueryInt(c, "days", defaultHistoryDays, maxHistoryDays)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := boundedQueryInt(c, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("symbol", asset.Symbol), attribute.Int("days", days))

	since := h.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	snaps, err := h.deps.Snapshots.ListSnapshots(ctx, asset.ID, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snaps == nil {
		snaps = []*domain.Snapshot{}
	}
	c.JSON(http.StatusOK, gin.H{
		"asset_id":  asset.ID,
		"symbol":    asset.Symbol,
		"days":      days,
		"count":     len(snaps),
		"snapshots": snaps,
	})
}

func boundedQueryInt(c *gin.Context, key string, def, ceiling int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}
