package handler

import (
	"net/http"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/marketintel"

	"github.com/gin-gonic/gin"
)

// GetPolicyRisk aggregates stored regulatory events into per-region scores.
// An optional asset query adds that asset's score.
// @Summary      Regulatory policy risk
// @Tags         policy
// @Produce      json
// @Security     ApiKeyAuth
// @Param        window_days  query     int     false  "Lookback window in days (max 90)"  default(30)
// @Param        asset        query     string  false  "Asset symbol or id"
// @Success      200          {object}  map[string]interface{}
// @Failure      400          {object}  map[string]string
// @Failure      500          {object}  map[string]string
// @Failure      503          {object}  map[string]string
// @Router       /api/policy-risk [get]
func (h *Handler) GetPolicyRisk(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-policy-risk")
	defer span.End()

	if h.deps.News == nil {
		unavailable(c, "news store")
		return
	}
	days, err := boundedQueryInt(c, "window_days", int(marketintel.PolicyWindow/(24*time.Hour)), 90)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := h.now().UTC()
	window := time.Duration(days) * 24 * time.Hour
	events, err := h.deps.News.ListNewsEventsSince(ctx, now.Add(-window))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	risk := marketintel.PolicyRiskByRegion(events, now, window)
	body := gin.H{
		"window_days": days,
		"events":      len(events),
		"regions":     risk,
	}
	if raw := c.Query("asset"); raw != "" {
		asset, ok := domain.LookupAsset(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported asset: " + raw})
			return
		}
		body["asset"] = gin.H{
			"symbol":            asset.Symbol,
			"policy_risk_score": marketintel.PolicyRiskFor(risk, asset.Symbol),
		}
	}
	c.JSON(http.StatusOK, body)
}
