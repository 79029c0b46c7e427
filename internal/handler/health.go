package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Health reports "healthy" when every dependency check passes and 503
// "degraded" otherwise.
// @Summary      Health check
// @Description  Runs every dependency check with a short timeout
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	if len(h.deps.Checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.deps.Checks[name](ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"status": status, "checks": checks}
	if h.deps.Runner != nil {
		body["ingestion_running"] = h.deps.Runner.Running()
	}
	c.JSON(code, body)
}
