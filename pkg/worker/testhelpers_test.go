package worker

import (
	"context"
	"testing"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/internal/testgen"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/jobs"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// testContext holds all the dependencies needed for testing the worker.
type testContext struct {
	t          *testing.T
	ctx        context.Context
	db         *bun.DB
	cfg        *config.Config
	worker     *Worker
	jobService *jobs.Service
}

// newTestContext creates a worker over a freshly migrated database whose loan
// clock is pinned to testgen.BaseTime.
func newTestContext(t *testing.T) *testContext {
	t.Helper()

	cfg := testgen.Config(t)
	db := testgen.NewDBWithConfig(t, cfg)

	w := New(cfg, db)
	w.loanService.SetNow(func() time.Time { return testgen.BaseTime })

	return &testContext{
		t:          t,
		ctx:        logger.New().WithContext(context.Background()),
		db:         db,
		cfg:        cfg,
		worker:     w,
		jobService: w.jobService,
	}
}

// createJob inserts a pending job and returns it as the fetcher would see it.
func (tc *testContext) createJob(jobType string, data interface{}) *models.Job {
	tc.t.Helper()
	job := &models.Job{Type: jobType, DataParsed: data}
	require.NoError(tc.t, tc.jobService.CreateJob(tc.ctx, job))

	job, err := tc.jobService.RetrieveJob(tc.ctx, jobs.RetrieveJobOptions{ID: &job.ID})
	require.NoError(tc.t, err)
	return job
}

// reload fetches the job's stored state.
func (tc *testContext) reload(job *models.Job) *models.Job {
	tc.t.Helper()
	got, err := tc.jobService.RetrieveJob(tc.ctx, jobs.RetrieveJobOptions{ID: &job.ID})
	require.NoError(tc.t, err)
	return got
}
