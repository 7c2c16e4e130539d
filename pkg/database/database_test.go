package database

import (
	"context"
	"database/sql/driver"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		driver string
		prefix string
		want   url.Values
	}{
		{
			name:   "modernc file",
			path:   "/data/shelf.db",
			driver: "sqlite",
			prefix: "file:/data/shelf.db?",
			want:   url.Values{"_pragma": {"busy_timeout(5000)", "foreign_keys(1)", "journal_mode(WAL)"}},
		},
		{
			name:   "mattn file",
			path:   "/data/shelf.db",
			driver: "sqlite3",
			prefix: "file:/data/shelf.db?",
			want:   url.Values{"_foreign_keys": {"1"}, "_busy_timeout": {"5000"}, "_journal_mode": {"WAL"}},
		},
		{
			name:   "memory",
			path:   ":memory:",
			driver: "sqlite",
			prefix: "file::memory:?",
			want:   url.Values{"_pragma": {"busy_timeout(5000)", "foreign_keys(1)", "journal_mode(WAL)"}},
		},
		{
			name:   "existing query",
			path:   "file:shelf.db?cache=shared",
			driver: "sqlite",
			prefix: "file:shelf.db?cache=shared&",
			want:   url.Values{"cache": {"shared"}, "_pragma": {"busy_timeout(5000)", "foreign_keys(1)", "journal_mode(WAL)"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dsn := sqliteDSN(tt.path, tt.driver, 5*time.Second)
			assert.True(t, strings.HasPrefix(dsn, tt.prefix), dsn)

			query, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
		})
	}
}

func TestNew_ReplacementConnectionKeepsForeignKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE parents (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE children (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER NOT NULL REFERENCES parents (id) ON DELETE CASCADE
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO parents (id) VALUES (1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO children (id, parent_id) VALUES (1, 1)`)
	require.NoError(t, err)

	// Reporting the only connection as broken makes database/sql discard it
	// and dial a fresh one on the next query.
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()

	var enabled int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	_, err = db.Exec(`DELETE FROM parents WHERE id = 1`)
	require.NoError(t, err)

	var children int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM children`).Scan(&children))
	assert.Equal(t, 0, children)
}
