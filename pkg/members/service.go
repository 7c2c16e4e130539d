package members

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

const activeLoansExpr = "(SELECT COUNT(*) FROM loans AS ol WHERE ol.member_id = m.id AND ol.return_date IS NULL) AS active_loans"

type RetrieveMemberOptions struct {
	ID    *int
	Email *string
}

type ListMembersOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type UpdateMemberOptions struct {
	Columns []string
}

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func duplicateEmail(email string) error {
	return errcodes.Conflict("A member with email " + email + " already exists.")
}

func (svc *Service) CreateMember(ctx context.Context, member *models.Member) error {
	now := svc.now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = member.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(member).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return duplicateEmail(member.Email)
		}
		return errors.WithStack(err)
	}
	return nil
}

func (svc *Service) RetrieveMember(ctx context.Context, opts RetrieveMemberOptions) (*models.Member, error) {
	member := &models.Member{}

	q := svc.db.
		NewSelect().
		Model(member).
		ColumnExpr("m.*").
		ColumnExpr(activeLoansExpr)

	if opts.ID != nil {
		q = q.Where("m.id = ?", *opts.ID)
	}
	if opts.Email != nil {
		q = q.Where("LOWER(m.email) = ?", strings.ToLower(strings.TrimSpace(*opts.Email)))
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Member")
		}
		return nil, errors.WithStack(err)
	}

	return member, nil
}

func (svc *Service) ListMembers(ctx context.Context, opts ListMembersOptions) ([]*models.Member, error) {
	m, _, err := svc.listMembersWithTotal(ctx, opts)
	return m, errors.WithStack(err)
}

func (svc *Service) ListMembersWithTotal(ctx context.Context, opts ListMembersOptions) ([]*models.Member, int, error) {
	opts.includeTotal = true
	return svc.listMembersWithTotal(ctx, opts)
}

func (svc *Service) listMembersWithTotal(ctx context.Context, opts ListMembersOptions) ([]*models.Member, int, error) {
	members := []*models.Member{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&members).
		ColumnExpr("m.*").
		ColumnExpr(activeLoansExpr).
		Order("m.name ASC", "m.id ASC")

	if opts.Search != nil {
		q = search.WhereContains(q, *opts.Search, "m.name", "m.email")
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

	return members, total, nil
}

func (svc *Service) UpdateMember(ctx context.Context, member *models.Member, opts UpdateMemberOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	member.UpdatedAt = svc.now().UTC()
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(member).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return duplicateEmail(member.Email)
		}
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("Member")
	}
	return nil
}

// DeleteMember deletes a member together with their loans, and makes the
// books they still had out available again in the same transaction.
func (svc *Service) DeleteMember(ctx context.Context, id int) error {
	now := svc.now().UTC()

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var bookIDs []int
		err := tx.NewSelect().
			Model((*models.Loan)(nil)).
			Column("book_id").
			Where("member_id = ?", id).
			Where("return_date IS NULL").
			Scan(ctx, &bookIDs)
		if err != nil {
			return errors.WithStack(err)
		}

		res, err := tx.NewDelete().
			Model((*models.Member)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.NotFound("Member")
		}

		if len(bookIDs) == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("available = ?", true).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(bookIDs)).
			Where("id NOT IN (SELECT book_id FROM loans WHERE return_date IS NULL)").
			Exec(ctx)
		return errors.WithStack(err)
	})
}
