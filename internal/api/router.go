package api

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"haven/internal/composer"
	"haven/internal/config"
)

// SetupRouter builds the HTTP surface over a composed engine.
func SetupRouter(cfg *config.Config, engine *composer.Engine) *gin.Engine {
	r := gin.Default()
	subpath := cfg.Server.Subpath

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)

		group.POST("/support/respond", RespondHandler(engine))
		group.POST("/support/crisis-check", CrisisCheckHandler(engine))
		group.GET("/support/resources", ResourcesHandler())

		group.POST("/knowledge/feedback", KnowledgeFeedbackHandler(engine))

		group.GET("/memory/:user/summary", MemorySummaryHandler(engine))
	}

	// Redirect /subpath/ to /subpath when a subpath is configured.
	if subpath != "" && subpath != "/" {
		r.GET(subpath+"/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, path.Clean(subpath))
		})
	}

	return r
}
