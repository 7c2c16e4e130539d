package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/books"
	"github.com/shishobooks/shelf/pkg/categories"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/csvio"
	"github.com/shishobooks/shelf/pkg/dashboard"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/joblogs"
	"github.com/shishobooks/shelf/pkg/jobs"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/members"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/shishobooks/shelf/pkg/ratelimit"
	"github.com/shishobooks/shelf/pkg/roles"
	"github.com/shishobooks/shelf/pkg/search"
	"github.com/shishobooks/shelf/pkg/users"
	"github.com/uptrace/bun"
)

// limiterSweepInterval is how often idle login rate-limit buckets are dropped.
const limiterSweepInterval = 10 * time.Minute

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e, limiter, err := newEcho(cfg, db)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	stop := make(chan struct{})
	go sweepLimiter(limiter, stop)
	srv.RegisterOnShutdown(func() { close(stop) })

	return srv, nil
}

// newEcho builds the router with every route group registered.
func newEcho(cfg *config.Config, db *bun.DB) (*echo.Echo, *ratelimit.KeyedLimiter, error) {
	e := echo.New()
	e.HideBanner = true

	b, err := binder.New()
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	// Register auth routes and get the auth service
	limiter := ratelimit.PerMinute(cfg.LoginRateLimitPerMinute)
	authService := auth.RegisterRoutes(e, db, cfg.JWTSecret, limiter)
	authMiddleware := auth.NewMiddleware(authService)

	// Register user and role management routes
	users.RegisterRoutes(e, db, authMiddleware)
	roles.RegisterRoutes(e, db, authMiddleware)

	// Register protected API routes
	// These routes require authentication and appropriate permissions
	registerProtectedRoutes(e, db, cfg, authMiddleware)

	// CSV import/export routes
	csvio.RegisterRoutes(e, db, cfg, authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, limiter, nil
}

// registerProtectedRoutes registers all protected API routes with proper authentication and authorization.
func registerProtectedRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, authMiddleware *auth.Middleware) {
	// Books routes
	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	books.RegisterRoutesWithGroup(booksGroup, db, cfg, authMiddleware)

	// Members routes
	membersGroup := e.Group("/members")
	membersGroup.Use(authMiddleware.Authenticate)
	members.RegisterRoutesWithGroup(membersGroup, db, authMiddleware)

	// Loans routes
	loansGroup := e.Group("/loans")
	loansGroup.Use(authMiddleware.Authenticate)
	loans.RegisterRoutesWithGroup(loansGroup, db, authMiddleware)

	// Categories routes
	categoriesGroup := e.Group("/categories")
	categoriesGroup.Use(authMiddleware.Authenticate)
	categories.RegisterRoutesWithGroup(categoriesGroup, db, authMiddleware)

	// Dashboard routes
	dashboardGroup := e.Group("/dashboard")
	dashboardGroup.Use(authMiddleware.Authenticate)
	dashboard.RegisterRoutesWithGroup(dashboardGroup, db, authMiddleware)

	// Jobs routes, including their logs
	jobsGroup := e.Group("/jobs")
	jobsGroup.Use(authMiddleware.Authenticate)
	jobs.RegisterRoutesWithGroup(jobsGroup, db, authMiddleware)
	joblogs.RegisterRoutes(jobsGroup, db, authMiddleware)

	// Search routes (books and members)
	searchGroup := e.Group("/search")
	searchGroup.Use(authMiddleware.Authenticate)
	searchGroup.Use(authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead))
	searchGroup.Use(authMiddleware.RequirePermission(models.ResourceMembers, models.OperationRead))
	search.RegisterRoutesWithGroup(searchGroup, db)
}

func sweepLimiter(limiter *ratelimit.KeyedLimiter, stop <-chan struct{}) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
