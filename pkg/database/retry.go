package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

var busyMarkers = []string{
	"database is locked",
	"database table is locked",
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"(5)",
	"(6)",
}

// isBusyError reports whether err is SQLite telling us another connection
// holds the lock. Both mattn/go-sqlite3 and modernc.org/sqlite are covered.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range busyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// backoff returns the delay before the given retry attempt: exponential from
// retryBaseDelay with up to 25% jitter, capped at retryMaxDelay.
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<attempt)
	if delay >= retryMaxDelay {
		return retryMaxDelay
	}
	delay += time.Duration(rand.Int63n(int64(delay / 4)))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// retryBusy runs fn until it succeeds, fails with a non-busy error, runs out
// of retries or ctx is done.
func retryBusy(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isBusyError(err) || attempt == maxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return err
}

// driverConnector adapts a driver.Driver without OpenConnector support.
type driverConnector struct {
	driver driver.Driver
	dsn    string
}

func (dc *driverConnector) Connect(_ context.Context) (driver.Conn, error) {
	return dc.driver.Open(dc.dsn)
}

func (dc *driverConnector) Driver() driver.Driver {
	return dc.driver
}

// retryConnector hands out connections whose statements and transactions are
// retried on SQLITE_BUSY.
type retryConnector struct {
	connector  driver.Connector
	maxRetries int
}

func (rc *retryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := rc.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &retryConn{conn: conn, maxRetries: rc.maxRetries}, nil
}

func (rc *retryConnector) Driver() driver.Driver {
	return rc.connector.Driver()
}

type retryConn struct {
	conn       driver.Conn
	maxRetries int
}

func (c *retryConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *retryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var stmt driver.Stmt
	var err error
	if pc, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &retryStmt{stmt: stmt, maxRetries: c.maxRetries}, nil
}

func (c *retryConn) Close() error {
	return c.conn.Close()
}

func (c *retryConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *retryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var tx driver.Tx
	err := retryBusy(ctx, c.maxRetries, func() error {
		var err error
		if bc, ok := c.conn.(driver.ConnBeginTx); ok {
			tx, err = bc.BeginTx(ctx, opts)
		} else {
			tx, err = c.conn.Begin() //nolint:staticcheck // fallback for drivers without BeginTx
		}
		return err
	})
	return tx, err
}

func (c *retryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var result driver.Result
	err := retryBusy(ctx, c.maxRetries, func() error {
		var err error
		result, err = ec.ExecContext(ctx, query, args)
		return err
	})
	return result, err
}

func (c *retryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rows driver.Rows
	err := retryBusy(ctx, c.maxRetries, func() error {
		var err error
		rows, err = qc.QueryContext(ctx, query, args)
		return err
	})
	return rows, err
}

func (c *retryConn) Ping(ctx context.Context) error {
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *retryConn) ResetSession(ctx context.Context) error {
	if r, ok := c.conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *retryConn) IsValid() bool {
	if v, ok := c.conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

type retryStmt struct {
	stmt       driver.Stmt
	maxRetries int
}

func (s *retryStmt) Close() error {
	return s.stmt.Close()
}

func (s *retryStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *retryStmt) Exec(args []driver.Value) (driver.Result, error) {
	var result driver.Result
	err := retryBusy(context.Background(), s.maxRetries, func() error {
		var err error
		result, err = s.stmt.Exec(args) //nolint:staticcheck // required by driver.Stmt
		return err
	})
	return result, err
}

func (s *retryStmt) Query(args []driver.Value) (driver.Rows, error) {
	var rows driver.Rows
	err := retryBusy(context.Background(), s.maxRetries, func() error {
		var err error
		rows, err = s.stmt.Query(args) //nolint:staticcheck // required by driver.Stmt
		return err
	})
	return rows, err
}

func (s *retryStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	sec, ok := s.stmt.(driver.StmtExecContext)
	if !ok {
		return s.Exec(namedToValues(args))
	}
	var result driver.Result
	err := retryBusy(ctx, s.maxRetries, func() error {
		var err error
		result, err = sec.ExecContext(ctx, args)
		return err
	})
	return result, err
}

func (s *retryStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	sqc, ok := s.stmt.(driver.StmtQueryContext)
	if !ok {
		return s.Query(namedToValues(args))
	}
	var rows driver.Rows
	err := retryBusy(ctx, s.maxRetries, func() error {
		var err error
		rows, err = sqc.QueryContext(ctx, args)
		return err
	})
	return rows, err
}

func namedToValues(args []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg.Value
	}
	return values
}
