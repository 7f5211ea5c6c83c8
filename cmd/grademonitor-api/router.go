package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/grademonitor-api/internal/handler"
	"github.com/noah-isme/grademonitor-api/internal/middleware"
	"github.com/noah-isme/grademonitor-api/internal/service"
	"github.com/noah-isme/grademonitor-api/pkg/config"
	"github.com/noah-isme/grademonitor-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grademonitor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/grademonitor-api/pkg/middleware/requestid"
)

type routes struct {
	monitor *handler.MonitorHandler
	metrics *handler.MetricsHandler
	service *service.MetricsService
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.service, "/metrics", "/health", "/ready"))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	r.GET("/metrics/monitor", h.metrics.Stats)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	sessions := api.Group("/monitor/sessions")
	sessions.POST("", h.monitor.OpenSession)
	sessions.GET("/:id", h.monitor.GetSession)
	sessions.POST("/:id/commands", h.monitor.Dispatch)
	sessions.DELETE("/:id", h.monitor.CloseSession)
	sessions.POST("/:id/beacon", h.monitor.Beacon)
	sessions.GET("/:id/export", h.monitor.Export)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return r
}
