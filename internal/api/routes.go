package api

import (
	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
)

func (r *Router) registerRoutes(engine *gin.Engine) {
	apiGroup := engine.Group("/api")

	// 认证。注册/登录解析访客会话 Cookie，成功后顺带转正。
	authGroup := apiGroup.Group("/auth")
	authGroup.Use(middleware.GuestSessionMiddleware(r.sessions))
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.GET("/me", middleware.AuthMiddleware(r.authService), r.authHandler.Me)
	}

	// 访客会话。
	guestGroup := apiGroup.Group("/guest")
	guestGroup.Use(middleware.GuestSessionMiddleware(r.sessions))
	{
		guestGroup.POST("/sessions", r.guestHandler.CreateSession)
		guestGroup.GET("/sessions/current", r.guestHandler.CurrentSession)
		guestGroup.POST("/convert",
			middleware.AuthMiddleware(r.authService),
			r.guestHandler.Convert,
		)
	}

	// 简历与变体：登录用户与访客共用，身份由两个中间件分别解析。
	resumeGroup := apiGroup.Group("")
	resumeGroup.Use(
		middleware.OptionalAuthMiddleware(r.authService),
		middleware.GuestSessionMiddleware(r.sessions),
	)
	{
		resumeGroup.GET("/resumes", r.resumeHandler.List)
		resumeGroup.GET("/resumes/:id", r.resumeHandler.Get)
		resumeGroup.PUT("/resumes/:id", r.resumeHandler.Update)
		resumeGroup.DELETE("/resumes/:id", r.resumeHandler.Delete)
		resumeGroup.POST("/resumes/:id/clone", r.resumeHandler.Clone)
		resumeGroup.GET("/resumes/:id/details", r.detailHandler.ListByResume)

		resumeGroup.POST("/details", r.detailHandler.Create)
		resumeGroup.GET("/details/:id", r.detailHandler.Get)
		resumeGroup.PUT("/details/:id", r.detailHandler.Update)
		resumeGroup.DELETE("/details/:id", r.detailHandler.Delete)
		resumeGroup.POST("/details/:id/default", r.detailHandler.SetDefault)
		resumeGroup.POST("/details/:id/translate", r.detailHandler.Translate)
	}

	// 会话事件推送。
	apiGroup.GET("/ws", r.wsHandler.HandleConnection)

	// 运维接口：仅限持有内部密钥的调用方。
	internalGroup := apiGroup.Group("/internal")
	internalGroup.Use(middleware.InternalSecretMiddleware(r.internalSecret))
	{
		internalGroup.GET("/resumes", r.adminHandler.PaginateResumes)
		internalGroup.POST("/cleanup/sessions", r.adminHandler.CleanupSessions)
		internalGroup.POST("/cleanup/resumes", r.adminHandler.CleanupGuestResumes)
	}
}
