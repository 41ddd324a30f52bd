package phrase_api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
)

type phraseApi struct {
	cfg    *config.AppConfig
	logger commons.Logger
}

func NewPhraseApi(cfg *config.AppConfig, logger commons.Logger) *phraseApi {
	return &phraseApi{cfg: cfg, logger: logger}
}

// GetPhrases serves the phrase list, one phrase per line.
//
// @Router /api/phrases [get]
// @Produce plain
func (api *phraseApi) GetPhrases(c *gin.Context) {
	api.serveText(c, api.cfg.PhrasesFile, "Failed to read phrases file")
}

// GetRegions serves the region list, one region per line.
//
// @Router /api/regions [get]
// @Produce plain
func (api *phraseApi) GetRegions(c *gin.Context) {
	api.serveText(c, api.cfg.RegionsFile, "Failed to read regions file")
}

func (api *phraseApi) serveText(c *gin.Context, name, failure string) {
	path := filepath.Join(api.cfg.PublicDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		api.logger.Errorf("unable to read %s: %v", path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": failure})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}
