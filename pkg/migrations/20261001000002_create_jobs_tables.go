package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db,
			`CREATE TABLE jobs (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				data TEXT NOT NULL,
				progress INTEGER NOT NULL DEFAULT 0,
				process_id TEXT
			)`,
			`CREATE INDEX ix_jobs_status ON jobs (status)`,
			`CREATE TABLE job_logs (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				job_id INTEGER NOT NULL REFERENCES jobs (id) ON DELETE CASCADE,
				level TEXT NOT NULL,
				message TEXT NOT NULL,
				data TEXT,
				stack_trace TEXT
			)`,
			`CREATE INDEX ix_job_logs_job_id ON job_logs (job_id)`,
		)
	}

	down := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db,
			`DROP TABLE IF EXISTS job_logs`,
			`DROP TABLE IF EXISTS jobs`,
		)
	}

	Migrations.MustRegister(up, down)
}
