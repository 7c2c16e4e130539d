package members

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers member routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		memberService: NewService(db),
		loanService:   loans.NewService(db),
	}

	read := authMiddleware.RequirePermission(models.ResourceMembers, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceMembers, models.OperationWrite)

	g.GET("", h.list, read)
	g.GET("/:id", h.retrieve, read)
	g.POST("", h.create, write)
	g.PATCH("/:id", h.update, write)
	g.DELETE("/:id", h.deleteMember, write)
	g.GET("/:id/loans", h.memberLoans, read, authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead))
}
