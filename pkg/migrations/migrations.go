package migrations

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	err := migrator.Init(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return group, nil
}

var (
	sqliteDDL   = strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT")
	postgresDDL = strings.NewReplacer("{{pk}}", "SERIAL PRIMARY KEY")
)

// execAll runs each statement in order, rewriting the {{pk}} placeholder for
// the connected dialect.
func execAll(ctx context.Context, db *bun.DB, statements ...string) error {
	replacer := postgresDDL
	if database.IsSQLite(db) {
		replacer = sqliteDDL
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return errors.Wrapf(err, "failed to execute %q", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
