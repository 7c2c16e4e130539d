package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/shishobooks/shelf/pkg/migrations"
	"github.com/shishobooks/shelf/pkg/server"
	"github.com/shishobooks/shelf/pkg/version"
	"github.com/shishobooks/shelf/pkg/worker"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting shelf", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	// Initialize cache directories
	if err := initCacheDir(cfg.CacheDir); err != nil {
		log.Err(err).Fatal("cache directory error")
	}
	log.Info("cache directory initialized", logger.Data{"path": cfg.CacheDir})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	log.Info("database connected", logger.Data{"driver": cfg.DatabaseDriver})

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	wrkr := worker.New(cfg, db)

	srv, err := server.New(cfg, db)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started", logger.Data{
		"processes":              cfg.WorkerProcesses,
		"sweep_interval_minutes": cfg.SweepIntervalMinutes,
	})

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initCacheDir creates the cache directories and verifies write permissions.
// Creates subdirectories: covers (book covers), imports (pending CSV
// uploads), exports (finished CSV exports).
func initCacheDir(dir string) error {
	subdirs := []string{
		filepath.Join(dir, "covers"),
		filepath.Join(dir, "imports"),
		filepath.Join(dir, "exports"),
	}

	for _, subdir := range subdirs {
		if err := os.MkdirAll(subdir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create cache directory: %s", subdir)
		}
	}

	// Verify write permissions by creating and removing a temp file
	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return errors.Wrapf(err, "cache directory is not writable: %s", dir)
	}
	f.Close()

	if err := os.Remove(testFile); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", testFile)
	}

	return nil
}
