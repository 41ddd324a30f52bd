package collector_routers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	recordingApi "github.com/rapidaai/speech-collector/api/collector-api/api/recording"
	internal_submission "github.com/rapidaai/speech-collector/api/collector-api/internal/submission"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
	"github.com/rapidaai/speech-collector/pkg/middlewares"
)

// NewEngine builds the gin engine with every collector route. db and redis
// may be nil when the ledger or the duplicate guard is disabled.
func NewEngine(cfg *config.AppConfig, logger commons.Logger,
	db connectors.DatabaseConnector,
	redis connectors.RedisConnector) *gin.Engine {
	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())
	engine.Use(middlewares.NewRequestLoggerMiddleware(cfg.Name, logger))
	engine.Use(cors.New(corsConfig(cfg)))

	engine.NoMethod(recordingApi.MethodNotAllowed)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	HealthCheckRoutes(cfg, engine, logger, db, redis)
	PhraseApiRoute(cfg, engine, logger)
	RecordingApiRoute(cfg, engine, logger, db, redis)
	return engine
}

// MigrateLedger prepares the submissions table; a nil connector means the
// ledger is disabled.
func MigrateLedger(ctx context.Context, db connectors.DatabaseConnector, logger commons.Logger) error {
	if db == nil {
		return nil
	}
	return internal_submission.NewStore(db, logger).Migrate(ctx)
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", middlewares.HEADER_REQUEST_ID},
		ExposeHeaders: []string{middlewares.HEADER_REQUEST_ID},
		MaxAge:        12 * time.Hour,
	}
	origins := cfg.Origins()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
