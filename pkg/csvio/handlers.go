package csvio

import (
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/jobs"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	exporter   *Exporter
	jobService *jobs.Service
	files      *fileStore
}

// export streams entity as an attachment. Once the first byte is out the
// status can no longer change, so later failures are only logged.
func (h *handler) export(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := logger.FromContext(ctx)

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.csv"`, entity))
		res.WriteHeader(http.StatusOK)

		rows, err := h.exporter.Export(ctx, entity, res, h.exporter.loanService.Now())
		if err != nil {
			log.Err(err).Error("csv export failed", logger.Data{"entity": entity, "rows": rows})
			return nil
		}
		log.Info("csv exported", logger.Data{"entity": entity, "rows": rows})
		return nil
	}
}

// importFile stores the upload and queues an import job for the worker.
func (h *handler) importFile(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		params := ImportPayload{}
		if err := c.Bind(&params); err != nil {
			return errors.WithStack(err)
		}
		header, ok := params.FormFiles["file"]
		if !ok {
			return errcodes.ValidationError("A CSV file is required in the \"file\" field.")
		}

		file, err := header.Open()
		if err != nil {
			return errors.WithStack(err)
		}
		defer file.Close()

		path, err := h.files.saveImport(entity, file)
		if err != nil {
			return errors.WithStack(err)
		}

		job := &models.Job{
			Type:   models.JobTypeImport,
			Status: models.JobStatusPending,
			DataParsed: &models.JobImportData{
				Entity:   entity,
				FilePath: path,
			},
		}
		if err := h.jobService.CreateJob(ctx, job); err != nil {
			_ = os.Remove(path)
			return errors.WithStack(err)
		}

		return errors.WithStack(c.JSON(http.StatusAccepted, job))
	}
}

// exportResult serves the file written by a completed export job.
func (h *handler) exportResult(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Job")
	if err != nil {
		return err
	}

	job, err := h.jobService.RetrieveJob(ctx, jobs.RetrieveJobOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	data, ok := job.DataParsed.(*models.JobExportData)
	if !ok || job.Status != models.JobStatusCompleted || data.FilePath == "" {
		return errcodes.NotFound("Export")
	}

	return errors.WithStack(c.Attachment(data.FilePath, data.Entity+".csv"))
}
