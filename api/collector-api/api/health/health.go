package health_check_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
)

type healthCheckApi struct {
	cfg    *config.AppConfig
	logger commons.Logger
	db     connectors.DatabaseConnector
	redis  connectors.RedisConnector
}

func New(cfg *config.AppConfig, logger commons.Logger, db connectors.DatabaseConnector, redis connectors.RedisConnector) *healthCheckApi {
	return &healthCheckApi{cfg: cfg, logger: logger, db: db, redis: redis}
}

func (h *healthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true, "version": h.cfg.Version})
}

// Readiness reports not ready while an enabled backing store is unreachable.
func (h *healthCheckApi) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	status := gin.H{}
	ready := true
	if h.db != nil {
		ok := h.db.IsConnected(ctx)
		status["ledger"] = ok
		ready = ready && ok
	}
	if h.redis != nil {
		ok := h.redis.IsConnected(ctx)
		status["redis"] = ok
		ready = ready && ok
	}
	status["ready"] = ready
	if !ready {
		h.logger.Warnw("readiness check failed", "status", status)
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
