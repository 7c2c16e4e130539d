package members

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/shishobooks/shelf/internal/testgen"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func bookAvailable(t *testing.T, db bun.IDB, bookID int) bool {
	t.Helper()
	book := &models.Book{}
	require.NoError(t, db.NewSelect().Model(book).Where("b.id = ?", bookID).Scan(context.Background()))
	return book.Available
}

func TestCreateMember_DuplicateEmail(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	require.NoError(t, svc.CreateMember(ctx, &models.Member{Name: "Ada", Email: "ada@example.com"}))

	err := svc.CreateMember(ctx, &models.Member{Name: "Other Ada", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, errcodes.Conflict(""))
}

func TestRetrieveMember_CountsActiveLoans(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	member := testgen.CreateMember(t, db, testgen.MemberOptions{Email: "reader@example.com"})
	testgen.CreateOpenLoan(t, db, testgen.CreateBook(t, db, testgen.BookOptions{}), member, testgen.BaseTime)
	testgen.CreateOpenLoan(t, db, testgen.CreateBook(t, db, testgen.BookOptions{}), member, testgen.BaseTime)
	testgen.CreateReturnedLoan(t, db, testgen.CreateBook(t, db, testgen.BookOptions{}), member, testgen.BaseTime.AddDate(0, 0, -9), testgen.BaseTime)

	stored, err := svc.RetrieveMember(ctx, RetrieveMemberOptions{ID: &member.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ActiveLoans)

	email := "READER@example.com"
	byEmail, err := svc.RetrieveMember(ctx, RetrieveMemberOptions{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, member.ID, byEmail.ID)

	missing := 9999
	_, err = svc.RetrieveMember(ctx, RetrieveMemberOptions{ID: &missing})
	assert.ErrorIs(t, err, errcodes.NotFound("Member"))
}

func TestListMembersWithTotal(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Charlie", Email: "c@example.com"})
	testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Alice", Email: "alice@library.org"})
	testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Bob", Email: "bob@library.org"})

	members, total, err := svc.ListMembersWithTotal(ctx, ListMembersOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Alice", members[0].Name)

	q := "library.org"
	members, total, err = svc.ListMembersWithTotal(ctx, ListMembersOptions{Search: &q})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"Alice", "Bob"}, []string{members[0].Name, members[1].Name})
}

func TestUpdateMember_DuplicateEmail(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	testgen.CreateMember(t, db, testgen.MemberOptions{Email: "taken@example.com"})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})

	member.Email = "taken@example.com"
	err := svc.UpdateMember(ctx, member, UpdateMemberOptions{Columns: []string{"email"}})
	assert.ErrorIs(t, err, errcodes.Conflict(""))
}

// Deleting a member holding an open loan removes the loan and frees the book.
func TestDeleteMember_CascadesLoansAndFreesBooks(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	loanService := loans.NewService(db)
	ctx := context.Background()

	m1 := testgen.CreateMember(t, db, testgen.MemberOptions{})
	m2 := testgen.CreateMember(t, db, testgen.MemberOptions{})
	held := testgen.CreateBook(t, db, testgen.BookOptions{})
	returned := testgen.CreateBook(t, db, testgen.BookOptions{})
	otherHeld := testgen.CreateBook(t, db, testgen.BookOptions{})

	loan, err := loanService.Borrow(ctx, loans.BorrowOptions{BookID: held.ID, MemberID: m1.ID, Now: testgen.BaseTime})
	require.NoError(t, err)
	old, err := loanService.Borrow(ctx, loans.BorrowOptions{BookID: returned.ID, MemberID: m1.ID, Now: testgen.BaseTime})
	require.NoError(t, err)
	_, err = loanService.Return(ctx, loans.ReturnOptions{LoanID: old.ID, Now: testgen.BaseTime.AddDate(0, 0, 1)})
	require.NoError(t, err)
	_, err = loanService.Borrow(ctx, loans.BorrowOptions{BookID: otherHeld.ID, MemberID: m2.ID, Now: testgen.BaseTime})
	require.NoError(t, err)
	require.False(t, bookAvailable(t, db, held.ID))

	require.NoError(t, svc.DeleteMember(ctx, m1.ID))

	_, err = loanService.RetrieveLoan(ctx, loans.RetrieveLoanOptions{ID: loan.ID, Now: testgen.BaseTime})
	assert.ErrorIs(t, err, errcodes.NotFound("Loan"))
	assert.True(t, bookAvailable(t, db, held.ID))
	assert.True(t, bookAvailable(t, db, returned.ID))
	// Someone else's loan is untouched.
	assert.False(t, bookAvailable(t, db, otherHeld.ID))

	remaining, err := db.NewSelect().Model((*models.Loan)(nil)).Where("member_id = ?", m1.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// The freed book can be borrowed again.
	_, err = loanService.Borrow(ctx, loans.BorrowOptions{BookID: held.ID, MemberID: m2.ID, Now: testgen.BaseTime.AddDate(0, 0, 2)})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteMember(ctx, m1.ID), errcodes.NotFound("Member"))
}

func TestDeleteMember_CascadesAfterConnectionReplaced(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	loanService := loans.NewService(db)
	ctx := context.Background()

	member := testgen.CreateMember(t, db, testgen.MemberOptions{})
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	_, err := loanService.Borrow(ctx, loans.BorrowOptions{BookID: book.ID, MemberID: member.ID, Now: testgen.BaseTime})
	require.NoError(t, err)

	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()

	require.NoError(t, svc.DeleteMember(ctx, member.ID))

	orphans, err := db.NewSelect().Model((*models.Loan)(nil)).Where("member_id = ?", member.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, orphans)
	assert.True(t, bookAvailable(t, db, book.ID))
}
