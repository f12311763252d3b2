package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docchat/internal/config"
)

// NewRouter builds the engine with middleware, the API routes, the index page
// and static assets.
func NewRouter(h *Handler, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(CORS(cfg.AllowOrigins))
	r.Use(Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.RegisterRoutes(r)

	r.GET("/", func(c *gin.Context) {
		if cfg.IndexFile == "" {
			c.Status(http.StatusNotFound)
			return
		}
		if _, err := os.Stat(cfg.IndexFile); err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(cfg.IndexFile)
	})
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}
	return r
}
