package worker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/csvio"
	"github.com/shishobooks/shelf/pkg/joblogs"
	"github.com/shishobooks/shelf/pkg/models"
)

// ProcessImportJob loads the uploaded CSV into the database and removes the
// upload once it has been read.
func (w *Worker) ProcessImportJob(ctx context.Context, job *models.Job, jobLog *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobImportData)
	if !ok {
		return jobDataError(job, &models.JobImportData{})
	}

	jobLog.Info("import started", logger.Data{"entity": data.Entity})

	f, err := os.Open(data.FilePath)
	if err != nil {
		return errors.Wrap(err, "failed to open import file")
	}
	defer func() {
		f.Close()
		if err := os.Remove(data.FilePath); err != nil && !os.IsNotExist(err) {
			jobLog.Warn("failed to remove import file", logger.Data{"path": data.FilePath, "error": err.Error()})
		}
	}()

	result, err := w.importer.Import(ctx, data.Entity, f, jobLog)
	if result != nil {
		data.Imported = result.Imported
		data.Skipped = result.Skipped
	}
	if err != nil {
		return errors.WithStack(err)
	}

	jobLog.Info("import finished", logger.Data{"entity": data.Entity, "imported": data.Imported, "skipped": data.Skipped})
	return nil
}

// ProcessExportJob writes a CSV snapshot under the cache dir. It is written to
// a temp file first so a half-written export is never served.
func (w *Worker) ProcessExportJob(ctx context.Context, job *models.Job, jobLog *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobExportData)
	if !ok {
		return jobDataError(job, &models.JobExportData{})
	}

	path := csvio.ExportPath(w.config.CacheDir, job.ID, data.Entity)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	rows, err := w.exporter.Export(ctx, data.Entity, tmp, w.loanService.Now())
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WithStack(err)
	}

	data.FilePath = path
	data.Rows = rows
	jobLog.Info("export finished", logger.Data{"entity": data.Entity, "rows": rows})
	return nil
}

// ProcessSweepJob runs an overdue sweep on demand.
func (w *Worker) ProcessSweepJob(ctx context.Context, job *models.Job, jobLog *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobSweepData)
	if !ok {
		return jobDataError(job, &models.JobSweepData{})
	}

	flipped, err := w.sweep(ctx)
	data.Flipped = flipped
	if err != nil {
		return errors.WithStack(err)
	}

	jobLog.Info("sweep finished", logger.Data{"flipped": flipped})
	return nil
}
