package jobs

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers job routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	jobService := NewService(db)

	h := &handler{
		jobService: jobService,
	}

	g.GET("", h.list, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationRead))
	g.POST("", h.create, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationWrite))
}
