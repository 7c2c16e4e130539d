package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/ratelimit"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the /auth routes and returns the service so the
// caller can build the Authenticate middleware from it.
func RegisterRoutes(e *echo.Echo, db *bun.DB, jwtSecret string, limiter *ratelimit.KeyedLimiter) *Service {
	authService := NewService(db, jwtSecret)

	h := &handler{
		authService: authService,
	}

	auth := e.Group("/auth")
	auth.POST("/login", h.login, limiter.Middleware())
	auth.POST("/logout", h.logout)
	auth.GET("/status", h.status)
	auth.POST("/setup", h.setup, limiter.Middleware())
	auth.GET("/me", h.me)

	return authService
}
