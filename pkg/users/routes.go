package users

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db)

	h := &handler{
		userService: userService,
	}

	users := e.Group("/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("", h.list, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
	users.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
	users.POST("", h.create, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationWrite))
	users.PATCH("/:id", h.update, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationWrite))
	users.DELETE("/:id", h.deactivate, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationWrite))

	// Users may reset their own password; resetting someone else's is checked
	// in the handler.
	users.POST("/:id/reset-password", h.resetPassword)

	return userService
}
