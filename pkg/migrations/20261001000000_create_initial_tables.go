package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db,
			`CREATE TABLE books (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				isbn TEXT,
				description TEXT,
				cover_filename TEXT,
				available BOOLEAN NOT NULL DEFAULT TRUE
			)`,
			`CREATE INDEX ix_books_title ON books (title)`,
			`CREATE INDEX ix_books_available ON books (available)`,
			`CREATE TABLE members (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				email TEXT NOT NULL,
				phone TEXT
			)`,
			`CREATE UNIQUE INDEX ux_members_email ON members (LOWER(email))`,
			`CREATE TABLE categories (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_categories_name ON categories (LOWER(name))`,
			`CREATE TABLE book_categories (
				id {{pk}},
				book_id INTEGER NOT NULL REFERENCES books (id) ON DELETE CASCADE,
				category_id INTEGER NOT NULL REFERENCES categories (id) ON DELETE CASCADE
			)`,
			`CREATE UNIQUE INDEX ux_book_categories_book_id_category_id ON book_categories (book_id, category_id)`,
			`CREATE INDEX ix_book_categories_category_id ON book_categories (category_id)`,
			`CREATE TABLE loans (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER NOT NULL REFERENCES books (id) ON DELETE CASCADE,
				member_id INTEGER NOT NULL REFERENCES members (id) ON DELETE CASCADE,
				borrow_date TIMESTAMPTZ NOT NULL,
				due_date TIMESTAMPTZ NOT NULL,
				return_date TIMESTAMPTZ,
				status TEXT NOT NULL,
				CHECK (return_date IS NULL OR return_date >= borrow_date)
			)`,
			// At most one open loan per book.
			`CREATE UNIQUE INDEX ux_loans_open_book ON loans (book_id) WHERE return_date IS NULL`,
			`CREATE INDEX ix_loans_member_id ON loans (member_id)`,
			`CREATE INDEX ix_loans_status_due_date ON loans (status, due_date)`,
		)
	}

	down := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db,
			`DROP TABLE IF EXISTS loans`,
			`DROP TABLE IF EXISTS book_categories`,
			`DROP TABLE IF EXISTS categories`,
			`DROP TABLE IF EXISTS members`,
			`DROP TABLE IF EXISTS books`,
		)
	}

	Migrations.MustRegister(up, down)
}
