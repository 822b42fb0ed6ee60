package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// NewRouter builds the ingress adapter's gin engine: the three event routes
// (§6) plus a health check, wrapped in recovery and request logging.
func NewRouter(cfg *config.Config, sender EventSender, log *logger.Logger) (*gin.Engine, error) {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestLogger(log, cfg.Logging.LogEvents))

	handlers, err := NewIngressHandlers(sender, cfg.Dispatch.BaseURL, cfg.Ingress.PIIScrubJQFilter, log)
	if err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.POST("/integration/:key/enqueue", handlers.HandleV1Enqueue)
	router.POST("/x-ere/:key", handlers.HandleRoutingEnqueue)
	router.POST("/v2/enqueue", handlers.HandleV2Enqueue)

	return router, nil
}
