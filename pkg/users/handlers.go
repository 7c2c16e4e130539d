package users

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	userService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.userService.Create(ctx, CreateUserOptions(params))
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("user created", logger.Data{"user_id": user.ID, "role": params.Role})

	return c.JSON(http.StatusCreated, user)
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := binder.PathID(c, "User")
	if err != nil {
		return err
	}

	user, err := h.userService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListUsersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	users, total, err := h.userService.List(ctx, ListOptions(params))
	if err != nil {
		return err
	}

	resp := struct {
		Users []*models.User `json:"users"`
		Total int            `json:"total"`
	}{users, total}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := binder.PathID(c, "User")
	if err != nil {
		return err
	}

	params := UpdateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	currentUserID, _ := c.Get("user_id").(int)
	if currentUserID == id && params.IsActive != nil && !*params.IsActive {
		return errcodes.ValidationError("You cannot deactivate your own account")
	}

	user, err := h.userService.Update(ctx, id, UpdateOptions(params))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) resetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := binder.PathID(c, "User")
	if err != nil {
		return err
	}

	params := ResetPasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	currentUser, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	if currentUser.ID == id {
		if !currentUser.MustChangePassword {
			if params.CurrentPassword == nil || *params.CurrentPassword == "" {
				return errcodes.ValidationError("Current password is required when resetting your own password")
			}

			valid, err := h.userService.VerifyPassword(ctx, id, *params.CurrentPassword)
			if err != nil {
				return err
			}
			if !valid {
				return errcodes.ValidationError("Current password is incorrect")
			}
		}
		// Users can't flag themselves for another forced reset.
		params.RequirePasswordReset = false
	} else if !currentUser.HasPermission(models.ResourceUsers, models.OperationWrite) {
		return errcodes.Forbidden("Resetting other users' passwords")
	}

	err = h.userService.ResetPassword(ctx, id, params.NewPassword, params.RequirePasswordReset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (h *handler) deactivate(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := binder.PathID(c, "User")
	if err != nil {
		return err
	}

	currentUserID, _ := c.Get("user_id").(int)
	if currentUserID == id {
		return errcodes.ValidationError("You cannot deactivate your own account")
	}

	err = h.userService.Deactivate(ctx, id)
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
