package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/csvio"
	"github.com/shishobooks/shelf/pkg/joblogs"
	"github.com/shishobooks/shelf/pkg/jobs"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

const fetchInterval = 5 * time.Second

// processID identifies this process on the jobs it claims.
var processID = uuid.NewString()

type processFunc func(ctx context.Context, job *models.Job, jobLog *joblogs.JobLogger) error

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]processFunc

	jobService    *jobs.Service
	jobLogService *joblogs.Service
	loanService   *loans.Service
	importer      *csvio.Importer
	exporter      *csvio.Exporter

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
	doneScheduling chan struct{}
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	w := &Worker{
		config: cfg,
		log:    logger.New(),

		jobService:    jobs.NewService(db),
		jobLogService: joblogs.NewService(db),
		loanService:   loans.NewService(db),
		importer:      csvio.NewImporter(db),
		exporter:      csvio.NewExporter(db),

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
		doneScheduling: make(chan struct{}),
	}
	w.registerProcessFuncs()

	return w
}

func (w *Worker) registerProcessFuncs() {
	w.processFuncs = map[string]processFunc{
		models.JobTypeImport: w.ProcessImportJob,
		models.JobTypeExport: w.ProcessExportJob,
		models.JobTypeSweep:  w.ProcessSweepJob,
	}
}

func (w *Worker) Start() {
	go w.fetchJobs()
	go w.scheduleSweeps()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	timer := time.NewTimer(fetchInterval)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			timer.Stop()
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(fetchInterval)
				continue
			}
			for _, job := range j {
				// Claim before queueing so the next fetch can't hand the
				// same job out again while it waits for a free processor.
				job.Status = models.JobStatusInProgress
				job.ProcessID = &processID
				err := w.jobService.UpdateJob(context.Background(), job, jobs.UpdateJobOptions{
					Columns: []string{"status", "process_id"},
				})
				if err != nil {
					w.log.Err(err).Error("claim job error", logger.Data{"job_id": job.ID})
					continue
				}
				select {
				case w.queue <- job:
				case <-w.shutdown:
					timer.Stop()
					w.doneFetching <- struct{}{}
					return
				}
			}
			timer.Reset(fetchInterval)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			w.runJob(job)
		}
	}
}

// runJob runs the process function for a claimed job and records the outcome.
// A panic inside the process function fails the job instead of killing the
// worker.
func (w *Worker) runJob(job *models.Job) {
	// Prep the context to be passed down to the process function.
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
	ctx := log.WithContext(context.Background())
	jobLog := w.jobLogService.NewJobLogger(ctx, job.ID, log)

	// Find and invoke the appropriate process function.
	fn, ok := w.processFuncs[job.Type]
	if !ok {
		err = errors.Errorf("no process function for job type %q", job.Type)
	} else {
		err = w.invoke(ctx, fn, job, jobLog)
	}

	job.Status = models.JobStatusCompleted
	if err != nil {
		jobLog.Error("job failed", err, nil)
		job.Status = models.JobStatusFailed
	}
	job.Progress = 100

	// Mark the job finished so that it's not picked up anymore.
	err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"status", "progress", "data"},
	})
	if err != nil {
		log.Err(err).Error("update job error")
	}
}

func (w *Worker) invoke(ctx context.Context, fn processFunc, job *models.Job, jobLog *joblogs.JobLogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
			jobLog.Fatal("job panicked", err, nil)
		}
	}()
	return fn(ctx, job, jobLog)
}

// scheduleSweeps runs the overdue sweep every SweepInterval. A zero interval
// disables the schedule; sweeps can still be queued through the jobs API.
func (w *Worker) scheduleSweeps() {
	interval := w.config.SweepInterval()
	if interval <= 0 {
		<-w.shutdown
		w.doneScheduling <- struct{}{}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			w.doneScheduling <- struct{}{}
			return
		case <-ticker.C:
			w.runScheduledSweep(context.Background())
		}
	}
}

// runScheduledSweep sweeps unless a queued sweep job is about to do the same.
func (w *Worker) runScheduledSweep(ctx context.Context) {
	log := w.log.Root(logger.Data{"process_id": processID, "type": models.JobTypeSweep})

	hasActive, err := w.jobService.HasActiveJobByType(ctx, models.JobTypeSweep)
	if err != nil {
		log.Err(err).Error("check active sweep error")
		return
	}
	if hasActive {
		log.Info("sweep job already queued, skipping scheduled sweep")
		return
	}

	start := time.Now()
	flipped, err := w.sweep(ctx)
	if err != nil {
		log.Err(err).Error("scheduled sweep error", logger.Data{"flipped": flipped})
		return
	}
	log.Info("scheduled sweep finished", logger.Data{"flipped": flipped, "duration": time.Since(start).String()})
}

func (w *Worker) sweep(ctx context.Context) (int, error) {
	return w.loanService.SweepOverdue(ctx, loans.SweepOptions{
		Now:       w.loanService.Now(),
		BatchSize: w.config.SweepBatchSize,
	})
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	<-w.doneScheduling
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

func jobDataError(job *models.Job, want interface{}) error {
	return errors.Errorf("job %d has %T data, expected %T", job.ID, job.DataParsed, want)
}
