package loans

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/shishobooks/shelf/pkg/search"
	"github.com/uptrace/bun"
)

const defaultSweepBatchSize = 200

type BorrowOptions struct {
	BookID   int
	MemberID int
	Now      time.Time
}

type ReturnOptions struct {
	LoanID int
	Now    time.Time
}

type SweepOptions struct {
	Now       time.Time
	BatchSize int
}

type RetrieveLoanOptions struct {
	ID  int
	Now time.Time
}

type ListLoansOptions struct {
	Limit    *int
	Offset   *int
	Status   *string
	Search   *string
	BookID   *int
	MemberID *int
	Now      time.Time

	includeTotal bool
}

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Now returns the service clock in UTC. Handlers pass it into every
// operation so one request sees one instant.
func (svc *Service) Now() time.Time {
	return svc.now().UTC()
}

// SetNow replaces the service clock.
func (svc *Service) SetNow(now func() time.Time) {
	svc.now = now
}

// Borrow opens a loan for an available book. The book is claimed with a
// conditional update inside the same transaction as the insert, so of two
// racing borrows exactly one succeeds.
func (svc *Service) Borrow(ctx context.Context, opts BorrowOptions) (*models.Loan, error) {
	now := opts.Now.UTC()
	loan := &models.Loan{
		CreatedAt:  now,
		UpdatedAt:  now,
		BookID:     opts.BookID,
		MemberID:   opts.MemberID,
		BorrowDate: now,
		DueDate:    DueDate(now),
		Status:     models.LoanStatusActive,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Member)(nil)).
			Where("id = ?", opts.MemberID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Member")
		}

		exists, err = tx.NewSelect().
			Model((*models.Book)(nil)).
			Where("id = ?", opts.BookID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Book")
		}

		res, err := tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("available = ?", false).
			Set("updated_at = ?", now).
			Where("id = ?", opts.BookID).
			Where("available = ?", true).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			return errcodes.BookUnavailable(opts.BookID)
		}

		_, err = tx.NewInsert().
			Model(loan).
			Returning("*").
			Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.BookUnavailable(opts.BookID)
			}
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// Return closes an open loan and makes its book available again. Returning
// a closed loan fails with AlreadyReturned.
func (svc *Service) Return(ctx context.Context, opts ReturnOptions) (*models.Loan, error) {
	now := opts.Now.UTC()
	loan := &models.Loan{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(loan).
			Where("l.id = ?", opts.LoanID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Loan")
			}
			return errors.WithStack(err)
		}
		if !loan.IsOpen() {
			return errcodes.AlreadyReturned(opts.LoanID)
		}

		returnedAt := now
		if returnedAt.Before(loan.BorrowDate) {
			returnedAt = loan.BorrowDate.UTC()
		}

		res, err := tx.NewUpdate().
			Model((*models.Loan)(nil)).
			Set("return_date = ?", returnedAt).
			Set("status = ?", models.LoanStatusReturned).
			Set("updated_at = ?", now).
			Where("id = ?", opts.LoanID).
			Where("return_date IS NULL").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			return errcodes.AlreadyReturned(opts.LoanID)
		}

		_, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("available = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", loan.BookID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		loan.ReturnDate = &returnedAt
		loan.Status = models.LoanStatusReturned
		loan.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// SweepOverdue flips active loans that are past due to overdue, one short
// transaction per batch. It returns how many loans were flipped.
func (svc *Service) SweepOverdue(ctx context.Context, opts SweepOptions) (int, error) {
	now := opts.Now.UTC()
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, errors.WithStack(err)
		}

		var found, flipped int
		err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			var ids []int
			err := tx.NewSelect().
				Model((*models.Loan)(nil)).
				Column("id").
				Where("return_date IS NULL").
				Where("status = ?", models.LoanStatusActive).
				Where("due_date < ?", now).
				Order("id ASC").
				Limit(batchSize).
				Scan(ctx, &ids)
			if err != nil {
				return errors.WithStack(err)
			}
			found = len(ids)
			if found == 0 {
				return nil
			}

			res, err := tx.NewUpdate().
				Model((*models.Loan)(nil)).
				Set("status = ?", models.LoanStatusOverdue).
				Set("updated_at = ?", now).
				Where("id IN (?)", bun.In(ids)).
				Where("return_date IS NULL").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.WithStack(err)
			}
			flipped = int(n)
			return nil
		})
		if err != nil {
			return total, err
		}

		total += flipped
		if found < batchSize {
			return total, nil
		}
	}
}

// ReconcileResult reports how many books ReconcileAvailability corrected in
// each direction.
type ReconcileResult struct {
	Freed   int
	Claimed int
}

// ReconcileAvailability re-derives books.available from the open loans. Books
// marked unavailable without an open loan are freed; books marked available
// while an open loan exists are claimed.
func (svc *Service) ReconcileAvailability(ctx context.Context, now time.Time) (*ReconcileResult, error) {
	now = now.UTC()
	result := &ReconcileResult{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("available = ?", true).
			Set("updated_at = ?", now).
			Where("available = ?", false).
			Where("id NOT IN (SELECT book_id FROM loans WHERE return_date IS NULL)").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		freed, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}

		res, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("available = ?", false).
			Set("updated_at = ?", now).
			Where("available = ?", true).
			Where("id IN (SELECT book_id FROM loans WHERE return_date IS NULL)").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}

		result.Freed = int(freed)
		result.Claimed = int(claimed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (svc *Service) RetrieveLoan(ctx context.Context, opts RetrieveLoanOptions) (*models.Loan, error) {
	loan := &models.Loan{}

	err := svc.selectWithNames(svc.db.NewSelect().Model(loan)).
		Where("l.id = ?", opts.ID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Loan")
		}
		return nil, errors.WithStack(err)
	}

	loan.Status = Classify(loan, opts.Now)
	return loan, nil
}

func (svc *Service) ListLoans(ctx context.Context, opts ListLoansOptions) ([]*models.Loan, error) {
	l, _, err := svc.listLoansWithTotal(ctx, opts)
	return l, errors.WithStack(err)
}

func (svc *Service) ListLoansWithTotal(ctx context.Context, opts ListLoansOptions) ([]*models.Loan, int, error) {
	opts.includeTotal = true
	return svc.listLoansWithTotal(ctx, opts)
}

func (svc *Service) listLoansWithTotal(ctx context.Context, opts ListLoansOptions) ([]*models.Loan, int, error) {
	loans := []*models.Loan{}
	var total int
	var err error

	now := opts.Now.UTC()
	q := svc.selectWithNames(svc.db.NewSelect().Model(&loans)).
		Order("l.borrow_date DESC", "l.id DESC")

	if opts.Status != nil {
		q = whereStatus(q, *opts.Status, now)
	}
	if opts.Search != nil {
		q = search.WhereContains(q, *opts.Search, "b.title", "m.name")
	}
	if opts.BookID != nil {
		q = q.Where("l.book_id = ?", *opts.BookID)
	}
	if opts.MemberID != nil {
		q = q.Where("l.member_id = ?", *opts.MemberID)
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

	for _, loan := range loans {
		loan.Status = Classify(loan, now)
	}

	return loans, total, nil
}

// selectWithNames adds the denormalized book title and member name to a loan
// query.
func (svc *Service) selectWithNames(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		ColumnExpr("l.*").
		ColumnExpr("b.title AS book_title").
		ColumnExpr("m.name AS member_name").
		Join("JOIN books AS b ON b.id = l.book_id").
		Join("JOIN members AS m ON m.id = l.member_id")
}

// whereStatus filters on the classified status rather than the stored one,
// so results stay correct between sweeps.
func whereStatus(q *bun.SelectQuery, status string, now time.Time) *bun.SelectQuery {
	switch status {
	case models.LoanStatusActive:
		return q.Where("l.return_date IS NULL").Where("l.due_date >= ?", now)
	case models.LoanStatusOverdue:
		return q.Where("l.return_date IS NULL").Where("l.due_date < ?", now)
	case models.LoanStatusReturned:
		return q.Where("l.return_date IS NOT NULL")
	}
	return q
}
