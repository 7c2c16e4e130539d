package roles

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		roleService: NewService(db),
	}

	roles := e.Group("/roles")
	roles.Use(authMiddleware.Authenticate)

	roles.GET("", h.list, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
	roles.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
}
