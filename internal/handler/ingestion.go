package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

type runRequest struct {
	Type              string   `json:"type" binding:"omitempty,oneof=full quick"`
	Coins             []string `json:"coins" binding:"omitempty,max=50,dive,required"`
	SkipPrediction    *bool    `json:"skip_prediction"`
	StoreTrainingData *bool    `json:"store_training_data"`
}

func (h *Handler) runOptions(req runRequest) domain.RunOptions {
	opts := h.deps.RunDefaults
	if req.Type != "" {
		opts.Type = domain.RunType(req.Type)
	}
	if opts.Type == "" {
		opts.Type = domain.RunFull
	}
	if len(req.Coins) > 0 {
		opts.Coins = req.Coins
	}
	if req.SkipPrediction != nil {
		opts.SkipPrediction = *req.SkipPrediction
	}
	if req.StoreTrainingData != nil {
		opts.StoreTrainingData = *req.StoreTrainingData
	}
	return opts
}

// TriggerIngestion runs one ingestion with the posted options. An empty body
// uses the configured defaults. With ?async=true the run starts in the
// background and the call returns 202.
// @Summary      Trigger an ingestion run
// @Description  Collects, scores and stores one snapshot per requested asset
// @Tags         ingestion
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        async  query     bool        false  "Start the run in the background"
// @Param        body   body      runRequest  false  "Run options"
// @Success      200    {object}  domain.RunResult
// @Success      202    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]interface{}
// @Failure      409    {object}  map[string]interface{}
// @Failure      503    {object}  map[string]string
// @Router       /api/ingestion/run [post]
func (h *Handler) TriggerIngestion(c *gin.Context) {
	if h.deps.Runner == nil {
		unavailable(c, "ingestion")
		return
	}

	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var unknown []string
	for _, coin := range req.Coins {
		if _, ok := domain.LookupAsset(coin); !ok {
			unknown = append(unknown, coin)
		}
	}
	if len(unknown) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported coins: " + strings.Join(unknown, ","),
			"supported_symbols": domain.SupportedSymbols,
		})
		return
	}
	opts := h.runOptions(req)

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-ingestion")
	defer span.End()
	span.SetAttributes(attribute.String("type", string(opts.Type)), attribute.Int("coins", len(opts.Coins)))

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.deps.Runner.Running() {
			c.JSON(http.StatusConflict, gin.H{"error": "ingestion run already in progress"})
			return
		}
		go func(ctx context.Context) {
			res := h.deps.Runner.RunFullIngestion(ctx, opts)
			log.Info().Str("run_id", res.RunID).Str("state", string(res.State)).Msg("background ingestion finished")
		}(context.WithoutCancel(ctx))
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "options": opts})
		return
	}

	res := h.deps.Runner.RunFullIngestion(ctx, opts)
	if res.RunID == "" && res.State == domain.StateIdle {
		c.JSON(http.StatusConflict, gin.H{"error": "ingestion run already in progress", "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

// TriggerBackfill attaches realized outcomes to every matured snapshot.
// @Summary      Backfill realized outcomes
// @Tags         ingestion
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/backfill/run [post]
func (h *Handler) TriggerBackfill(c *gin.Context) {
	if h.deps.Backfiller == nil {
		unavailable(c, "backfill")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-backfill")
	defer span.End()

	res, err := h.deps.Backfiller.BackfillRealizedOutcomes(ctx, h.now().UTC())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "backfill": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backfill": res})
}
