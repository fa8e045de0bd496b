package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cvforge/internal/api/middleware"
	"cvforge/internal/auth"
	"cvforge/internal/guest"
	"cvforge/internal/metrics"
)

// Router 聚合全部 handler 并负责路由装配。
type Router struct {
	authService    *auth.AuthService
	sessions       *guest.Manager
	authHandler    *AuthHandler
	guestHandler   *GuestHandler
	resumeHandler  *ResumeHandler
	detailHandler  *DetailHandler
	adminHandler   *AdminHandler
	wsHandler      *WsHandler
	internalSecret string
	logger         *slog.Logger
}

// NewRouter 构造路由装配器。
func NewRouter(
	authService *auth.AuthService,
	sessions *guest.Manager,
	authHandler *AuthHandler,
	guestHandler *GuestHandler,
	resumeHandler *ResumeHandler,
	detailHandler *DetailHandler,
	adminHandler *AdminHandler,
	wsHandler *WsHandler,
	internalSecret string,
	logger *slog.Logger,
) *Router {
	return &Router{
		authService:    authService,
		sessions:       sessions,
		authHandler:    authHandler,
		guestHandler:   guestHandler,
		resumeHandler:  resumeHandler,
		detailHandler:  detailHandler,
		adminHandler:   adminHandler,
		wsHandler:      wsHandler,
		internalSecret: internalSecret,
		logger:         logger,
	}
}

// Engine 构建 gin.Engine 并注册全部路由。
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationIDMiddleware())
	engine.Use(middleware.SlogLoggerMiddleware(r.logger))
	engine.Use(metrics.GinMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.registerRoutes(engine)
	return engine
}
