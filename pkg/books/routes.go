package books

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config, authMiddleware *auth.Middleware) {
	h := &handler{
		bookService: NewService(db),
		loanService: loans.NewService(db),
		covers:      newCoverStore(cfg.CacheDir),
	}

	read := authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite)

	g.GET("", h.list, read)
	g.GET("/:id", h.retrieve, read)
	g.POST("", h.create, write)
	g.PATCH("/:id", h.update, write)
	g.DELETE("/:id", h.deleteBook, write)
	g.GET("/:id/cover", h.cover, read)
	g.POST("/:id/cover", h.uploadCover, write)
	g.GET("/:id/loans", h.loanHistory, read, authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead))
}
