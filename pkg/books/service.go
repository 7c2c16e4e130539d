package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/shishobooks/shelf/pkg/search"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID *int
}

type ListBooksOptions struct {
	Limit      *int
	Offset     *int
	Search     *string
	CategoryID *int
	Available  *bool

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
	// CategoryIDs replaces the book's categories when set.
	CategoryIDs *[]int
}

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book, categoryIDs []int) error {
	now := svc.now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	book.Available = true

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(book).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return setCategories(ctx, tx, book.ID, categoryIDs)
	})
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("BookCategories.Category")

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	book.FlattenCategories()
	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("BookCategories.Category").
		Order("b.title ASC", "b.id ASC")

	if opts.Search != nil {
		q = search.WhereContains(q, *opts.Search, "b.title", "b.author", "b.isbn")
	}
	if opts.CategoryID != nil {
		q = q.Where("b.id IN (SELECT book_id FROM book_categories WHERE category_id = ?)", *opts.CategoryID)
	}
	if opts.Available != nil {
		q = q.Where("b.available = ?", *opts.Available)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, book := range books {
		book.FlattenCategories()
	}

	return books, total, nil
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 && opts.CategoryIDs == nil {
		return nil
	}

	book.UpdatedAt = svc.now().UTC()
	columns := append(opts.Columns, "updated_at")

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.
			NewUpdate().
			Model(book).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.NotFound("Book")
		}

		if opts.CategoryIDs != nil {
			return setCategories(ctx, tx, book.ID, *opts.CategoryIDs)
		}
		return nil
	})
}

// DeleteBook deletes a book. Its loans and category links go with it through
// the foreign keys.
func (svc *Service) DeleteBook(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Book)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("Book")
	}
	return nil
}

// setCategories replaces the categories linked to bookID. Unknown category
// ids fail the whole write.
func setCategories(ctx context.Context, tx bun.Tx, bookID int, categoryIDs []int) error {
	ids := uniqueIDs(categoryIDs)

	if len(ids) > 0 {
		count, err := tx.NewSelect().
			Model((*models.Category)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if count != len(ids) {
			return errcodes.NotFound("Category")
		}
	}

	_, err := tx.NewDelete().
		Model((*models.BookCategory)(nil)).
		Where("book_id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if len(ids) == 0 {
		return nil
	}

	links := make([]*models.BookCategory, 0, len(ids))
	for _, id := range ids {
		links = append(links, &models.BookCategory{BookID: bookID, CategoryID: id})
	}
	_, err = tx.NewInsert().
		Model(&links).
		Exec(ctx)
	return errors.WithStack(err)
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
