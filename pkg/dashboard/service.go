package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// Stats are the headline counts. ActiveLoans and OverdueLoans partition the
// open loans using the same rule as the loan list filters.
type Stats struct {
	TotalBooks   int `json:"total_books"`
	TotalMembers int `json:"total_members"`
	ActiveLoans  int `json:"active_loans"`
	OverdueLoans int `json:"overdue_loans"`
}

type PopularBook struct {
	ID        int    `bun:"id" json:"id"`
	Title     string `bun:"title" json:"title"`
	Author    string `bun:"author" json:"author"`
	Available bool   `bun:"available" json:"available"`
	LoanCount int    `bun:"loan_count" json:"loan_count"`
}

type Service struct {
	db          *bun.DB
	loanService *loans.Service
	now         func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, loanService: loans.NewService(db), now: time.Now}
}

func (svc *Service) Now() time.Time {
	return svc.now().UTC()
}

func (svc *Service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	now = now.UTC()
	stats := &Stats{}
	var err error

	stats.TotalBooks, err = svc.db.NewSelect().Model((*models.Book)(nil)).Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats.TotalMembers, err = svc.db.NewSelect().Model((*models.Member)(nil)).Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats.ActiveLoans, err = svc.db.NewSelect().
		Model((*models.Loan)(nil)).
		Where("return_date IS NULL").
		Where("due_date >= ?", now).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats.OverdueLoans, err = svc.db.NewSelect().
		Model((*models.Loan)(nil)).
		Where("return_date IS NULL").
		Where("due_date < ?", now).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return stats, nil
}

// Recent returns the latest loans, newest first.
func (svc *Service) Recent(ctx context.Context, limit int, now time.Time) ([]*models.Loan, error) {
	return svc.loanService.ListLoans(ctx, loans.ListLoansOptions{
		Limit: &limit,
		Now:   now,
	})
}

// Popular returns the books borrowed most often, counting returned loans.
func (svc *Service) Popular(ctx context.Context, limit int) ([]*PopularBook, error) {
	popular := []*PopularBook{}

	err := svc.db.NewSelect().
		TableExpr("books AS b").
		ColumnExpr("b.id, b.title, b.author, b.available").
		ColumnExpr("COUNT(l.id) AS loan_count").
		Join("JOIN loans AS l ON l.book_id = b.id").
		GroupExpr("b.id, b.title, b.author, b.available").
		OrderExpr("loan_count DESC, b.title ASC").
		Limit(limit).
		Scan(ctx, &popular)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return popular, nil
}
