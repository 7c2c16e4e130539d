package roles

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	roleService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := binder.PathID(c, "Role")
	if err != nil {
		return err
	}

	role, err := h.roleService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, role)
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	roles, err := h.roleService.List(ctx)
	if err != nil {
		return err
	}

	resp := struct {
		Roles []*models.Role `json:"roles"`
		Total int            `json:"total"`
	}{roles, len(roles)}

	return c.JSON(http.StatusOK, resp)
}
