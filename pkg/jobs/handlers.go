package jobs

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	jobService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := CreateJobPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	job := &models.Job{
		Type:   params.Type,
		Status: models.JobStatusPending,
	}

	switch params.Type {
	case models.JobTypeExport:
		if params.Entity == "" {
			return errcodes.ValidationError("Entity is required for export jobs.")
		}
		job.DataParsed = &models.JobExportData{Entity: params.Entity}
	case models.JobTypeSweep:
		// Only one sweep needs to be queued at a time.
		hasActive, err := h.jobService.HasActiveJobByType(ctx, models.JobTypeSweep)
		if err != nil {
			return errors.WithStack(err)
		}
		if hasActive {
			return errcodes.Conflict("A sweep job is already running or pending.")
		}
		job.DataParsed = &models.JobSweepData{}
	}

	err := h.jobService.CreateJob(ctx, job)
	if err != nil {
		return errors.WithStack(err)
	}

	job, err = h.jobService.RetrieveJob(ctx, RetrieveJobOptions{
		ID: &job.ID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, job))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Job")
	if err != nil {
		return err
	}

	job, err := h.jobService.RetrieveJob(ctx, RetrieveJobOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, job))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListJobsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	jobs, total, err := h.jobService.ListJobsWithTotal(ctx, ListJobsOptions{
		Limit:       &params.Limit,
		Offset:      &params.Offset,
		Statuses:    params.Status,
		Type:        params.Type,
		NewestFirst: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ListJobsResponse{jobs, total}))
}
