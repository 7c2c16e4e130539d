package main

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

type commands struct {
	log      logger.Logger
	db       *bun.DB
	migrator *migrate.Migrator
}

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	cmds := &commands{
		log:      log,
		db:       db,
		migrator: migrate.NewMigrator(db, migrations.Migrations),
	}

	app := &cli.App{
		Name:  "migrations",
		Usage: "manage the shelf database schema",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "create the migration bookkeeping tables",
				Action: cmds.initTables,
			},
			{
				Name:  "migrate",
				Usage: "apply pending migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reconcile",
						Usage: "re-derive book availability from open loans afterwards",
					},
				},
				Action: cmds.migrate,
			},
			{
				Name:   "rollback",
				Usage:  "roll back the last migration group",
				Action: cmds.rollback,
			},
			{
				Name:      "create",
				Usage:     "create a Go migration",
				ArgsUsage: "<words of the migration name>",
				Action:    cmds.create,
			},
			{
				Name:   "status",
				Usage:  "print migration status",
				Action: cmds.status,
			},
			{
				Name:   "reconcile",
				Usage:  "re-derive book availability from open loans",
				Action: cmds.reconcile,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("migrations failed")
	}
}

func (cmds *commands) initTables(c *cli.Context) error {
	return errors.WithStack(cmds.migrator.Init(c.Context))
}

func (cmds *commands) migrate(c *cli.Context) error {
	if err := cmds.migrator.Init(c.Context); err != nil {
		return errors.WithStack(err)
	}

	group, err := cmds.migrator.Migrate(c.Context)
	if err != nil {
		return errors.WithStack(err)
	}
	if group.IsZero() {
		cmds.log.Info("no new migrations to run")
	} else {
		cmds.log.Info("migrated", logger.Data{"group": group.String()})
	}

	if c.Bool("reconcile") {
		return cmds.reconcile(c)
	}
	return nil
}

func (cmds *commands) rollback(c *cli.Context) error {
	group, err := cmds.migrator.Rollback(c.Context)
	if err != nil {
		return errors.WithStack(err)
	}
	if group.IsZero() {
		cmds.log.Info("no migration groups to roll back")
		return nil
	}
	cmds.log.Info("rolled back", logger.Data{"group": group.String()})
	return nil
}

func (cmds *commands) create(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("a migration name is required")
	}
	name := strings.Join(c.Args().Slice(), "_")
	mf, err := cmds.migrator.CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
	if err != nil {
		return errors.WithStack(err)
	}
	cmds.log.Info("created migration", logger.Data{"name": mf.Name, "path": mf.Path})
	return nil
}

func (cmds *commands) status(c *cli.Context) error {
	ms, err := cmds.migrator.MigrationsWithStatus(c.Context)
	if err != nil {
		return errors.WithStack(err)
	}
	cmds.log.Info("migration status", logger.Data{
		"applied":    len(ms.Applied()),
		"unapplied":  ms.Unapplied().String(),
		"last_group": ms.LastGroup().String(),
	})
	return nil
}

// reconcile repairs books whose available flag disagrees with the loans
// table, e.g. after restoring a partial backup or editing rows by hand.
func (cmds *commands) reconcile(c *cli.Context) error {
	result, err := loans.NewService(cmds.db).ReconcileAvailability(c.Context, time.Now())
	if err != nil {
		return err
	}
	cmds.log.Info("reconciled book availability", logger.Data{
		"freed":   result.Freed,
		"claimed": result.Claimed,
	})
	return nil
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db)
	}

	down := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db)
	}

	Migrations.MustRegister(up, down)
}
`
