package dashboard

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers dashboard routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		dashboardService: NewService(db),
	}

	g.Use(authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead))

	g.GET("/stats", h.stats)
	g.GET("/recent", h.recent)
	g.GET("/popular", h.popular)
}
