package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const pgUniqueViolation = "23505"

type key int

const ctxKey key = 0

func WithLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey, true)
}

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled, ok := ctx.Value(ctxKey).(bool)
	if !ok || !enabled {
		return
	}

	qh.log.Debug(event.Query)
}

// New opens the database selected by cfg.DatabaseDriver and waits until it
// answers a trivial query.
func New(cfg *config.Config) (*bun.DB, error) {
	var db *bun.DB
	var err error

	if cfg.IsPostgres() {
		db, err = openPostgres(cfg)
	} else {
		db, err = openSQLite(cfg)
	}
	if err != nil {
		return nil, err
	}

	// print out all queries in debug mode
	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	// Retry up to a few times to ensure that the database can connect.
	for i := 0; i < cfg.DatabaseConnectRetryCount; i++ {
		_, err = db.Exec("SELECT 1")
		if err != nil {
			time.Sleep(cfg.DatabaseConnectRetryDelay)
			continue
		}
		break
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if IsSQLite(db) {
		if err := checkForeignKeys(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func openSQLite(cfg *config.Config) (*bun.DB, error) {
	drv := sqliteshim.Driver()
	drvCtx, ok := drv.(interface {
		OpenConnector(name string) (driver.Connector, error)
	})

	dsn := sqliteDSN(cfg.DatabaseFilePath, sqliteshim.DriverName(), cfg.DatabaseBusyTimeout)

	var connector driver.Connector
	if ok {
		c, err := drvCtx.OpenConnector(dsn)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		connector = c
	} else {
		connector = &driverConnector{driver: drv, dsn: dsn}
	}

	sqldb := sql.OpenDB(&retryConnector{connector: connector, maxRetries: cfg.DatabaseMaxRetries})

	// SQLite only allows a single writer. Funnelling everything through one
	// connection turns lock contention into queueing inside database/sql, and
	// keeps ":memory:" databases from splitting across connections.
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func openPostgres(cfg *config.Config) (*bun.DB, error) {
	connConfig, err := pgx.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid database_url")
	}

	sqldb := stdlib.OpenDB(*connConfig)
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// checkForeignKeys makes sure the driver honoured the pragmas in the DSN.
// Loans cascade off books and members only while foreign keys are on.
func checkForeignKeys(db *bun.DB) error {
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return errors.Wrap(err, "failed to read foreign_keys pragma")
	}
	if enabled != 1 {
		return errors.New("sqlite foreign keys are disabled")
	}
	return nil
}

// sqliteDSN builds a file URI carrying the per-connection pragmas, so every
// connection database/sql opens (including replacements for broken ones) gets
// foreign keys, busy_timeout and WAL. mattn/go-sqlite3 and modernc.org/sqlite
// spell these differently.
func sqliteDSN(path, driverName string, busyTimeout time.Duration) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	ms := strconv.FormatInt(busyTimeout.Milliseconds(), 10)
	params := url.Values{}
	if driverName == "sqlite3" {
		params.Set("_foreign_keys", "1")
		params.Set("_busy_timeout", ms)
		params.Set("_journal_mode", "WAL")
	} else {
		params.Add("_pragma", "busy_timeout("+ms+")")
		params.Add("_pragma", "foreign_keys(1)")
		params.Add("_pragma", "journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + params.Encode()
}

// IsSQLite reports whether db talks to SQLite. Migrations and a handful of
// queries need dialect-specific SQL.
func IsSQLite(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// IsUniqueViolation reports whether err was caused by a unique constraint or
// unique index rejecting a write, for either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
