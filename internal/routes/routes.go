package routes

import (
	"github.com/gin-gonic/gin"

	"hospitalrecords/internal/authz"
	"hospitalrecords/internal/handlers"
	"hospitalrecords/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	authenticator middleware.Authenticator,
	limiter *middleware.IPRateLimiter, // may be nil
) *gin.Engine {

	r.GET("/healthz", healthHandler.Health)

	// ---- public, rate limited
	public := r.Group("/auth")
	if limiter != nil {
		public.Use(limiter.Middleware())
	}
	{
		public.POST("/login", authHandler.Login)
		public.POST("/verify-otp", authHandler.VerifyOTP)
		public.POST("/password-reset/request", authHandler.RequestPasswordReset)
		public.POST("/password-reset/confirm", authHandler.ResetPassword)
	}

	// ---- protected
	protected := r.Group("/", middleware.AuthMiddleware(authenticator))

	session := protected.Group("/auth")
	{
		session.POST("/logout", authHandler.Logout)
		session.GET("/me", authHandler.Me)
	}

	// ADMIN; auditors get the read-only part
	admin := protected.Group("/admin",
		middleware.RequireRoles(authz.RoleAdmin, authz.RoleAuditor),
		middleware.ReadOnlyGuard(),
	)
	{
		admin.POST("/accounts/:id/unlock", adminHandler.Unlock)
		admin.GET("/accounts/:id/sessions", adminHandler.ListSessions)
		admin.GET("/accounts/:id/sessions/report", adminHandler.SessionReport)
	}

	return r
}
