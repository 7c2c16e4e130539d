package csvio

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/jobs"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RegisterRoutes mounts /export and /import on e behind the auth middleware.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, authMiddleware *auth.Middleware) {
	h := &handler{
		exporter:   NewExporter(db),
		jobService: jobs.NewService(db),
		files:      newFileStore(cfg.CacheDir),
	}

	exportGroup := e.Group("/export")
	exportGroup.Use(authMiddleware.Authenticate)
	exportGroup.GET("/books.csv", h.export(EntityBooks), authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead))
	exportGroup.GET("/members.csv", h.export(EntityMembers), authMiddleware.RequirePermission(models.ResourceMembers, models.OperationRead))
	exportGroup.GET("/loans.csv", h.export(EntityLoans), authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead))
	exportGroup.GET("/jobs/:id", h.exportResult, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationRead))

	importGroup := e.Group("/import")
	importGroup.Use(authMiddleware.Authenticate)
	importGroup.POST("/books", h.importFile(models.ImportEntityBooks), authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite))
	importGroup.POST("/members", h.importFile(models.ImportEntityMembers), authMiddleware.RequirePermission(models.ResourceMembers, models.OperationWrite))
}
