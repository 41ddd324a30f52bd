package collector_routers

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	phraseApi "github.com/rapidaai/speech-collector/api/collector-api/api/phrase"
	recordingApi "github.com/rapidaai/speech-collector/api/collector-api/api/recording"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
)

func RecordingApiRoute(
	cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger,
	db connectors.DatabaseConnector,
	redis connectors.RedisConnector) {
	api := engine.Group("api")
	recordingRpcApi := recordingApi.NewRecordingApi(cfg, logger, db, redis)
	{
		api.POST("/upload-recordings", recordingRpcApi.UploadRecordings)
		api.GET("/submissions", recordingRpcApi.ListSubmissions)
	}
}

func PhraseApiRoute(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger) {
	api := engine.Group("api")
	phraseRpcApi := phraseApi.NewPhraseApi(cfg, logger)
	{
		api.GET("/phrases", phraseRpcApi.GetPhrases)
		api.GET("/regions", phraseRpcApi.GetRegions)
	}

	// static text assets consumed by the recorder
	engine.StaticFile("/"+cfg.PhrasesFile, filepath.Join(cfg.PublicDir, cfg.PhrasesFile))
	engine.StaticFile("/"+cfg.RegionsFile, filepath.Join(cfg.PublicDir, cfg.RegionsFile))
}
