package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/denisAlshanov/mediafetch/internal/api/handlers"
	"github.com/denisAlshanov/mediafetch/internal/api/middleware"
	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/web"
)

type Router struct {
	engine *gin.Engine
	config *config.Config
}

func NewRouter(cfg *config.Config, pageHandler *handlers.PageHandler, mediaHandler *handlers.MediaHandler, healthHandler *handlers.HealthHandler) *Router {
	// Set Gin mode
	if cfg.Server.Host == "0.0.0.0" || cfg.Mode == config.ModeServerless {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Add middleware
	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationIDMiddleware())

	// Front end
	engine.SetHTMLTemplate(web.Templates())
	engine.GET("/", pageHandler.Index)
	engine.StaticFS("/static", web.Static())

	// Health endpoints
	health := engine.Group("/")
	{
		health.GET("/health", healthHandler.Health)
		health.GET("/ready", healthHandler.Readiness)
		health.GET("/live", healthHandler.Liveness)
	}

	// Swagger documentation
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Gateway endpoints
	api := engine.Group("/")
	api.Use(middleware.RateLimitMiddleware(&cfg.API))
	{
		api.POST("/get_video_info", mediaHandler.GetVideoInfo)
		api.POST("/download", mediaHandler.Download)
	}
	engine.GET("/downloads/*filename", mediaHandler.ServeFile)

	return &Router{
		engine: engine,
		config: cfg,
	}
}

func (r *Router) Start() error {
	return r.engine.Run(r.config.Addr())
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
