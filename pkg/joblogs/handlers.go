package joblogs

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/jobs"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	jobLogService *Service
	jobService    *jobs.Service
}

func (h *handler) listLogs(c echo.Context) error {
	ctx := c.Request().Context()

	jobID, err := binder.PathID(c, "Job")
	if err != nil {
		return err
	}

	// Verify job exists
	job, err := h.jobService.RetrieveJob(ctx, jobs.RetrieveJobOptions{
		ID: &jobID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Bind query params
	params := ListJobLogsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	logs, err := h.jobLogService.ListJobLogs(ctx, ListJobLogsOptions{
		JobID:   jobID,
		AfterID: params.AfterID,
		Levels:  params.Level,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Logs []*models.JobLog `json:"logs"`
		Job  *models.Job      `json:"job"`
	}{logs, job}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
