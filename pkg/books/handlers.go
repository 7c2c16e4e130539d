package books

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/htmlutil"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	bookService *Service
	loanService *loans.Service
	covers      *coverStore
}

// cleanDescription strips markup pasted in from publisher pages. Blank
// descriptions are stored as NULL.
func cleanDescription(s *string) *string {
	if s == nil {
		return nil
	}
	text := htmlutil.StripTags(*s)
	if text == "" {
		return nil
	}
	return &text
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:      &params.Limit,
		Offset:     &params.Offset,
		Search:     params.Search,
		CategoryID: params.CategoryID,
		Available:  params.Available,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Book")
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book := &models.Book{
		Title:       params.Title,
		Author:      params.Author,
		ISBN:        emptyToNil(params.ISBN),
		Description: cleanDescription(params.Description),
	}
	if err := h.bookService.CreateBook(ctx, book, params.CategoryIDs); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Book")
	if err != nil {
		return err
	}

	// Bind params.
	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Fetch the book.
	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Keep track of what's been changed.
	opts := UpdateBookOptions{Columns: []string{}, CategoryIDs: params.CategoryIDs}

	if params.Title != nil && *params.Title != book.Title {
		book.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Author != nil && *params.Author != book.Author {
		book.Author = *params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.ISBN != nil {
		book.ISBN = emptyToNil(params.ISBN)
		opts.Columns = append(opts.Columns, "isbn")
	}
	if params.Description != nil {
		book.Description = cleanDescription(params.Description)
		opts.Columns = append(opts.Columns, "description")
	}

	// Update the model.
	err = h.bookService.UpdateBook(ctx, book, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	// Reload the model.
	book, err = h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) deleteBook(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Book")
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.bookService.DeleteBook(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	if book.CoverFilename != nil {
		if err := h.covers.remove(*book.CoverFilename); err != nil {
			logger.FromContext(ctx).Warn("failed to remove cover", logger.Data{"book_id": id, "error": err.Error()})
		}
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) uploadCover(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	id, err := binder.PathID(c, "Book")
	if err != nil {
		return err
	}

	params := UploadCoverPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	header, ok := params.FormFiles["file"]
	if !ok {
		return errcodes.ValidationError("A cover image is required in the \"file\" field.")
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	file, err := header.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	filename, err := h.covers.save(book.ID, file)
	if err != nil {
		return errors.WithStack(err)
	}

	// A new format leaves the old file behind under a different extension.
	if book.CoverFilename != nil && *book.CoverFilename != filename {
		if err := h.covers.remove(*book.CoverFilename); err != nil {
			log.Warn("failed to remove previous cover", logger.Data{"book_id": id, "error": err.Error()})
		}
	}

	book.CoverFilename = &filename
	if err := h.bookService.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"cover_filename"}}); err != nil {
		return errors.WithStack(err)
	}

	log.Info("cover uploaded", logger.Data{"book_id": id, "filename": filename, "size": header.Size})

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) cover(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Book")
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	if book.CoverFilename == nil {
		return errcodes.NotFound("Cover")
	}

	return errors.WithStack(c.File(h.covers.path(*book.CoverFilename)))
}

func (h *handler) loanHistory(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Book")
	if err != nil {
		return err
	}

	params := loans.ListLoansQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if _, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id}); err != nil {
		return errors.WithStack(err)
	}

	offset := params.Offset()
	history, total, err := h.loanService.ListLoansWithTotal(ctx, loans.ListLoansOptions{
		Limit:  &params.Limit,
		Offset: &offset,
		Status: params.StatusFilter(),
		Search: params.Search,
		BookID: &id,
		Now:    h.loanService.Now(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, loans.ListLoansResponse{
		Loans: history,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}))
}
