package health

import (
	"context"
	"net/http"
	"time"

	"storage-sync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthChecker answers liveness checks, checking the database with a
// bounded timeout.
type HealthChecker struct {
	db      Pinger
	timeout time.Duration
}

func NewHealthChecker(db Pinger, timeout time.Duration) *HealthChecker {
	return &HealthChecker{db: db, timeout: timeout}
}

func (h *HealthChecker) Handler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "unreachable"})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}
