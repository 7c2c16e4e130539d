package csvio

import (
	"context"
	"io"
	"strings"

	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/books"
	"github.com/shishobooks/shelf/pkg/categories"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/members"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// RowLogger receives a warning for every row that gets skipped.
// joblogs.JobLogger satisfies it.
type RowLogger interface {
	Warn(msg string, data logger.Data)
}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type bookRow struct {
	Title       string `mod:"trim" validate:"required,max=500"`
	Author      string `mod:"trim" validate:"required,max=300"`
	ISBN        string `mod:"isbn" validate:"omitempty,isbn"`
	Description string `mod:"trim" validate:"max=10000"`
	Categories  []string
}

type memberRow struct {
	Name  string `mod:"trim" validate:"required,max=200"`
	Email string `mod:"trim,lcase" validate:"required,email"`
	Phone string `mod:"trim" validate:"max=50"`
}

// Importer inserts rows parsed from CSV uploads. Rows that fail validation or
// already exist are skipped rather than aborting the whole file.
type Importer struct {
	db              *bun.DB
	bookService     *books.Service
	memberService   *members.Service
	categoryService *categories.Service
	conform         *mold.Transformer
	validate        *validator.Validate
}

func NewImporter(db *bun.DB) *Importer {
	conform := modifiers.New()
	conform.Register("isbn", binder.ISBNModifier)

	return &Importer{
		db:              db,
		bookService:     books.NewService(db),
		memberService:   members.NewService(db),
		categoryService: categories.NewService(db),
		conform:         conform,
		validate:        validator.New(),
	}
}

// Import dispatches to the importer for entity.
func (imp *Importer) Import(ctx context.Context, entity string, r io.Reader, log RowLogger) (*ImportResult, error) {
	switch entity {
	case models.ImportEntityBooks:
		return imp.ImportBooks(ctx, r, log)
	case models.ImportEntityMembers:
		return imp.ImportMembers(ctx, r, log)
	default:
		return nil, errors.Errorf("unknown import entity %q", entity)
	}
}

func (imp *Importer) ImportBooks(ctx context.Context, r io.Reader, log RowLogger) (*ImportResult, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require("title", "author"); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	// The header is line 1.
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return result, errors.WithStack(err)
		}
		record, err := cr.Read()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			log.Warn("skipping malformed csv row", logger.Data{"line": line, "error": err.Error()})
			result.Skipped++
			continue
		}

		row := bookRow{
			Title:       h.value(record, "title"),
			Author:      h.value(record, "author"),
			ISBN:        h.value(record, "isbn"),
			Description: h.value(record, "description"),
			Categories:  splitCategories(h.value(record, "categories")),
		}
		if reason := imp.check(ctx, &row); reason != "" {
			log.Warn("skipping invalid book row", logger.Data{"line": line, "reason": reason})
			result.Skipped++
			continue
		}

		dup, err := imp.bookExists(ctx, &row)
		if err != nil {
			return result, err
		}
		if dup {
			log.Warn("skipping duplicate book", logger.Data{"line": line, "title": row.Title})
			result.Skipped++
			continue
		}

		categoryIDs := make([]int, 0, len(row.Categories))
		for _, name := range row.Categories {
			category, err := imp.categoryService.FindOrCreateCategory(ctx, name)
			if err != nil {
				return result, errors.WithStack(err)
			}
			categoryIDs = append(categoryIDs, category.ID)
		}

		book := &models.Book{
			Title:       row.Title,
			Author:      row.Author,
			ISBN:        nilIfEmpty(row.ISBN),
			Description: nilIfEmpty(row.Description),
		}
		if err := imp.bookService.CreateBook(ctx, book, categoryIDs); err != nil {
			return result, errors.WithStack(err)
		}
		result.Imported++
	}
}

func (imp *Importer) ImportMembers(ctx context.Context, r io.Reader, log RowLogger) (*ImportResult, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require("name", "email"); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return result, errors.WithStack(err)
		}
		record, err := cr.Read()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			log.Warn("skipping malformed csv row", logger.Data{"line": line, "error": err.Error()})
			result.Skipped++
			continue
		}

		row := memberRow{
			Name:  h.value(record, "name"),
			Email: h.value(record, "email"),
			Phone: h.value(record, "phone"),
		}
		if reason := imp.check(ctx, &row); reason != "" {
			log.Warn("skipping invalid member row", logger.Data{"line": line, "reason": reason})
			result.Skipped++
			continue
		}

		member := &models.Member{
			Name:  row.Name,
			Email: row.Email,
			Phone: nilIfEmpty(row.Phone),
		}
		err = imp.memberService.CreateMember(ctx, member)
		if errors.Is(err, errcodes.Conflict("")) {
			log.Warn("skipping duplicate member", logger.Data{"line": line, "email": row.Email})
			result.Skipped++
			continue
		}
		if err != nil {
			return result, errors.WithStack(err)
		}
		result.Imported++
	}
}

// check normalizes row in place and returns why it is invalid, or "".
func (imp *Importer) check(ctx context.Context, row interface{}) string {
	if err := imp.conform.Struct(ctx, row); err != nil {
		return err.Error()
	}
	err := imp.validate.Struct(row)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reasons = append(reasons, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(reasons, "; ")
}

func (imp *Importer) bookExists(ctx context.Context, row *bookRow) (bool, error) {
	q := imp.db.NewSelect().Model((*models.Book)(nil))
	if row.ISBN != "" {
		q = q.Where("b.isbn = ?", row.ISBN)
	} else {
		q = q.
			Where("LOWER(b.title) = ?", strings.ToLower(row.Title)).
			Where("LOWER(b.author) = ?", strings.ToLower(row.Author))
	}
	exists, err := q.Exists(ctx)
	return exists, errors.WithStack(err)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
