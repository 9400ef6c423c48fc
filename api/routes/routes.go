package routes

import (
	"time"

	"tickwise/api/handler"
	"tickwise/api/middleware"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Entitlements   *handler.EntitlementHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	entitlementHandler *handler.EntitlementHandler,
	authMiddleware middleware.AuthMiddleware,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		Entitlements:   entitlementHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/register", r.Auth.Register, r.AuthRate.Middleware())
	e.POST("/auth/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())
	e.POST("/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.POST("/auth/login/mfa", r.Auth.LoginWithMFA, r.LoginRate.Middleware())
	e.POST("/auth/refresh", r.Auth.Refresh, r.AuthRate.Middleware())
	e.POST("/auth/logout", r.Auth.Logout)
	e.POST("/auth/logout-all", r.Auth.LogoutAll, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/password/forgot", r.Auth.PasswordForgot, r.LoginRate.Middleware())
	e.POST("/auth/password/reset", r.Auth.PasswordReset, r.AuthRate.Middleware())

	e.POST("/auth/mfa/enable", r.Auth.EnableMFA, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/mfa/confirm", r.Auth.ConfirmMFA, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/mfa/disable", r.Auth.DisableMFA, r.AuthMiddleware.RequireAuth)
	e.GET("/auth/mfa/status", r.Auth.MFAStatus, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/mfa/backup-codes", r.Auth.RegenerateBackupCodes, r.AuthMiddleware.RequireAuth)

	e.GET("/me", r.Auth.Me, r.AuthMiddleware.RequireAuth)
	e.DELETE("/me", r.Auth.DeleteAccount, r.AuthMiddleware.RequireAuth)
	e.GET("/me/sessions", r.Auth.ListSessions, r.AuthMiddleware.RequireAuth)
	e.DELETE("/me/sessions/:id", r.Auth.RevokeSession, r.AuthMiddleware.RequireAuth)
	e.GET("/me/entitlements", r.Entitlements.MyEntitlements, r.AuthMiddleware.RequireAuth)

	e.GET("/admin/users", r.Auth.AdminListUsers, r.AuthMiddleware.RequireAuth, middleware.RequireRole("admin"))
	e.POST("/admin/users/:id/unlock", r.Auth.AdminUnlockUser, r.AuthMiddleware.RequireAuth, middleware.RequireRole("admin"))
	e.POST("/admin/users/:id/revoke-sessions", r.Auth.AdminRevokeUserSessions, r.AuthMiddleware.RequireAuth, middleware.RequireRole("admin"))
	e.POST("/admin/users/:id/entitlements/invalidate", r.Entitlements.AdminInvalidateEntitlements, r.AuthMiddleware.RequireAuth, middleware.RequireRole("admin"))
}
