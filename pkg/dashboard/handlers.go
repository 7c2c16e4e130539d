package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	dashboardService *Service
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.dashboardService.Stats(ctx, h.dashboardService.Now())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}

func (h *handler) recent(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	recent, err := h.dashboardService.Recent(ctx, params.Limit, h.dashboardService.Now())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, recent))
}

func (h *handler) popular(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	popular, err := h.dashboardService.Popular(ctx, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, popular))
}
