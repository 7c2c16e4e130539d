package categories

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/binder"
)

type handler struct {
	categoryService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListCategoriesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	categories, total, err := h.categoryService.ListCategoriesWithTotal(ctx, ListCategoriesOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"categories": categories,
		"total":      total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Category")
	if err != nil {
		return err
	}

	category, err := h.categoryService.RetrieveCategory(ctx, RetrieveCategoryOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, category))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateCategoryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	category, err := h.categoryService.CreateCategory(ctx, params.Name)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, category))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Category")
	if err != nil {
		return err
	}

	params := UpdateCategoryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if params.Name == nil {
		category, err := h.categoryService.RetrieveCategory(ctx, RetrieveCategoryOptions{ID: &id})
		if err != nil {
			return errors.WithStack(err)
		}
		return errors.WithStack(c.JSON(http.StatusOK, category))
	}

	category, err := h.categoryService.RenameCategory(ctx, id, *params.Name)
	if err != nil {
		return errors.WithStack(err)
	}
	if category.ID != id {
		logger.FromContext(ctx).Info("category merged on rename", logger.Data{"source_id": id, "target_id": category.ID})
	}

	return errors.WithStack(c.JSON(http.StatusOK, category))
}

func (h *handler) books(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Category")
	if err != nil {
		return err
	}

	if _, err := h.categoryService.RetrieveCategory(ctx, RetrieveCategoryOptions{ID: &id}); err != nil {
		return errors.WithStack(err)
	}

	books, err := h.categoryService.ListBooks(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, books))
}

func (h *handler) merge(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Category")
	if err != nil {
		return err
	}

	params := MergeCategoriesPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Merge source category into target (this) category
	err = h.categoryService.MergeCategories(ctx, id, params.SourceID)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) deleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Category")
	if err != nil {
		return err
	}

	if err := h.categoryService.DeleteCategory(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
