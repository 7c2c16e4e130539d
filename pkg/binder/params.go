package binder

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/errcodes"
)

// PathID parses the ":id" path parameter. Anything other than a positive
// integer is a validation error naming resource.
func PathID(c echo.Context, resource string) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return 0, errcodes.ValidationError(resource + " id must be a positive integer.")
	}
	return id, nil
}
