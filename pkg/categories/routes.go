package categories

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers category routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		categoryService: NewService(db),
	}

	read := authMiddleware.RequirePermission(models.ResourceCategories, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceCategories, models.OperationWrite)

	g.GET("", h.list, read)
	g.GET("/:id", h.retrieve, read)
	g.GET("/:id/books", h.books, read)
	g.POST("", h.create, write)
	g.PATCH("/:id", h.update, write)
	g.DELETE("/:id", h.deleteCategory, write)
	g.POST("/:id/merge", h.merge, write)
}
