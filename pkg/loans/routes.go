package loans

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers loan routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		loanService: NewService(db),
	}

	g.GET("", h.list, authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead))
	g.POST("", h.borrow, authMiddleware.RequirePermission(models.ResourceLoans, models.OperationWrite))
	g.POST("/:id/return", h.returnLoan, authMiddleware.RequirePermission(models.ResourceLoans, models.OperationWrite))
}
