package categories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/shishobooks/shelf/pkg/search"
	"github.com/uptrace/bun"
)

const bookCountExpr = "(SELECT COUNT(*) FROM book_categories AS bc WHERE bc.category_id = c.id) AS book_count"

type RetrieveCategoryOptions struct {
	ID   *int
	Name *string
}

type ListCategoriesOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errcodes.ValidationError("Category name cannot be empty.")
	}

	now := time.Now().UTC()
	category := &models.Category{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      name,
	}
	_, err := svc.db.
		NewInsert().
		Model(category).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errcodes.Conflict("A category named " + name + " already exists.")
		}
		return nil, errors.WithStack(err)
	}
	return category, nil
}

func (svc *Service) RetrieveCategory(ctx context.Context, opts RetrieveCategoryOptions) (*models.Category, error) {
	category := &models.Category{}

	q := svc.db.
		NewSelect().
		Model(category).
		ColumnExpr("c.*").
		ColumnExpr(bookCountExpr)

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		// Case-insensitive match
		q = q.Where("LOWER(c.name) = ?", strings.ToLower(strings.TrimSpace(*opts.Name)))
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Category")
		}
		return nil, errors.WithStack(err)
	}

	return category, nil
}

// FindOrCreateCategory finds an existing category or creates a new one
// (case-insensitive match).
func (svc *Service) FindOrCreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("category name cannot be empty")
	}

	category, err := svc.RetrieveCategory(ctx, RetrieveCategoryOptions{Name: &name})
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, errcodes.NotFound("Category")) {
		return nil, err
	}

	return svc.CreateCategory(ctx, name)
}

func (svc *Service) ListCategories(ctx context.Context, opts ListCategoriesOptions) ([]*models.Category, error) {
	c, _, err := svc.listCategoriesWithTotal(ctx, opts)
	return c, errors.WithStack(err)
}

func (svc *Service) ListCategoriesWithTotal(ctx context.Context, opts ListCategoriesOptions) ([]*models.Category, int, error) {
	opts.includeTotal = true
	return svc.listCategoriesWithTotal(ctx, opts)
}

func (svc *Service) listCategoriesWithTotal(ctx context.Context, opts ListCategoriesOptions) ([]*models.Category, int, error) {
	var categories []*models.Category
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&categories).
		ColumnExpr("c.*").
		ColumnExpr(bookCountExpr).
		Order("c.name ASC")

	if opts.Search != nil {
		q = search.WhereContains(q, *opts.Search, "c.name")
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

	return categories, total, nil
}

// RenameCategory changes the name of a category. If another category already
// has the new name, the category is merged into that one instead and the
// surviving category is returned.
func (svc *Service) RenameCategory(ctx context.Context, id int, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errcodes.ValidationError("Category name cannot be empty.")
	}

	category, err := svc.RetrieveCategory(ctx, RetrieveCategoryOptions{ID: &id})
	if err != nil {
		return nil, err
	}
	if category.Name == name {
		return category, nil
	}

	existing, err := svc.RetrieveCategory(ctx, RetrieveCategoryOptions{Name: &name})
	if err != nil && !errors.Is(err, errcodes.NotFound("Category")) {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		if err := svc.MergeCategories(ctx, existing.ID, id); err != nil {
			return nil, err
		}
		return svc.RetrieveCategory(ctx, RetrieveCategoryOptions{ID: &existing.ID})
	}

	category.Name = name
	category.UpdatedAt = time.Now().UTC()
	_, err = svc.db.
		NewUpdate().
		Model(category).
		Column("name", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return category, nil
}

// DeleteCategory deletes a category and all book associations.
func (svc *Service) DeleteCategory(ctx context.Context, id int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.BookCategory)(nil)).
			Where("category_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		res, err := tx.NewDelete().
			Model((*models.Category)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.NotFound("Category")
		}
		return nil
	})
}

// ListBooks returns all books tagged with the category.
func (svc *Service) ListBooks(ctx context.Context, id int) ([]*models.Book, error) {
	books := []*models.Book{}

	err := svc.db.NewSelect().
		Model(&books).
		Join("INNER JOIN book_categories AS bc ON bc.book_id = b.id").
		Where("bc.category_id = ?", id).
		Order("b.title ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return books, nil
}

// MergeCategories moves every book tagged with sourceID onto targetID and
// deletes the source category.
func (svc *Service) MergeCategories(ctx context.Context, targetID, sourceID int) error {
	if targetID == sourceID {
		return errcodes.ValidationError("Cannot merge a category into itself.")
	}

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, id := range []int{targetID, sourceID} {
			exists, err := tx.NewSelect().
				Model((*models.Category)(nil)).
				Where("id = ?", id).
				Exists(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			if !exists {
				return errcodes.NotFound("Category")
			}
		}

		// Skip books already tagged with the target to keep (book_id,
		// category_id) unique.
		_, err := tx.NewRaw(`
			UPDATE book_categories
			SET category_id = ?
			WHERE category_id = ?
			AND book_id NOT IN (SELECT book_id FROM book_categories WHERE category_id = ?)
		`, targetID, sourceID, targetID).Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.BookCategory)(nil)).
			Where("category_id = ?", sourceID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.Category)(nil)).
			Where("id = ?", sourceID).
			Exec(ctx)
		return errors.WithStack(err)
	})
}
