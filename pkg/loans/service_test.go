package loans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shishobooks/shelf/internal/testgen"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()
	db := testgen.NewDB(t)
	svc := NewService(db)
	svc.now = func() time.Time { return testgen.BaseTime }
	return svc, db
}

func bookAvailable(t *testing.T, db bun.IDB, bookID int) bool {
	t.Helper()
	book := &models.Book{}
	err := db.NewSelect().Model(book).Where("b.id = ?", bookID).Scan(context.Background())
	require.NoError(t, err)
	return book.Available
}

func openLoanCount(t *testing.T, db bun.IDB, bookID int) int {
	t.Helper()
	n, err := db.NewSelect().
		Model((*models.Loan)(nil)).
		Where("book_id = ?", bookID).
		Where("return_date IS NULL").
		Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestBorrow_OpensLoanAndClaimsBook(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})
	t0 := testgen.BaseTime

	loan, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: member.ID, Now: t0})
	require.NoError(t, err)

	assert.NotZero(t, loan.ID)
	assert.True(t, t0.Equal(loan.BorrowDate))
	assert.True(t, t0.AddDate(0, 0, 14).Equal(loan.DueDate))
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.False(t, bookAvailable(t, db, book.ID))
	assert.Equal(t, 1, openLoanCount(t, db, book.ID))
}

func TestBorrow_BookAlreadyOnLoan(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	m1 := testgen.CreateMember(t, db, testgen.MemberOptions{})
	m2 := testgen.CreateMember(t, db, testgen.MemberOptions{})

	_, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: m1.ID, Now: testgen.BaseTime})
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: m2.ID, Now: testgen.BaseTime.Add(time.Minute)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.BookUnavailable(book.ID))
	assert.Equal(t, 1, openLoanCount(t, db, book.ID))
}

func TestBorrow_NotFound(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})

	_, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: 9999, Now: testgen.BaseTime})
	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, "Member not found.", codeErr.Message)

	_, err = svc.Borrow(ctx, BorrowOptions{BookID: 9999, MemberID: member.ID, Now: testgen.BaseTime})
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, "Book not found.", codeErr.Message)

	// Failed borrows leave the book untouched.
	assert.True(t, bookAvailable(t, db, book.ID))
	assert.Equal(t, 0, openLoanCount(t, db, book.ID))
}

func TestBorrow_OpenLoanIndexRejectsSecondLoan(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	m1 := testgen.CreateMember(t, db, testgen.MemberOptions{})
	m2 := testgen.CreateMember(t, db, testgen.MemberOptions{})
	testgen.CreateOpenLoan(t, db, book, m1, testgen.BaseTime)

	// Simulate a stale availability flag: the partial unique index still
	// refuses a second open loan.
	_, err := db.NewUpdate().Model((*models.Book)(nil)).Set("available = ?", true).Where("id = ?", book.ID).Exec(ctx)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: m2.ID, Now: testgen.BaseTime})
	assert.ErrorIs(t, err, errcodes.BookUnavailable(book.ID))
	assert.Equal(t, 1, openLoanCount(t, db, book.ID))
	// The claim was rolled back along with the insert.
	assert.True(t, bookAvailable(t, db, book.ID))
}

func TestBorrow_Concurrent(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})

	const attempts = 8
	members := make([]*models.Member, attempts)
	for i := range members {
		members[i] = testgen.CreateMember(t, db, testgen.MemberOptions{})
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: members[i].ID, Now: testgen.BaseTime})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, errcodes.BookUnavailable(book.ID))
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, openLoanCount(t, db, book.ID))
	assert.False(t, bookAvailable(t, db, book.ID))
}

func TestReturn_ClosesLoanOnce(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})
	t0 := testgen.BaseTime
	t1 := t0.AddDate(0, 0, 3)

	loan, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: member.ID, Now: t0})
	require.NoError(t, err)

	returned, err := svc.Return(ctx, ReturnOptions{LoanID: loan.ID, Now: t1})
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, t1.Equal(*returned.ReturnDate))
	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	assert.True(t, bookAvailable(t, db, book.ID))
	assert.Equal(t, 0, openLoanCount(t, db, book.ID))

	_, err = svc.Return(ctx, ReturnOptions{LoanID: loan.ID, Now: t1.Add(time.Hour)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.AlreadyReturned(loan.ID))

	// The first return date stands.
	stored, err := svc.RetrieveLoan(ctx, RetrieveLoanOptions{ID: loan.ID, Now: t1})
	require.NoError(t, err)
	assert.True(t, t1.Equal(*stored.ReturnDate))
}

func TestReturn_NotFound(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Return(context.Background(), ReturnOptions{LoanID: 9999, Now: testgen.BaseTime})
	assert.ErrorIs(t, err, errcodes.NotFound("Loan"))
}

func TestReturn_ClampsToBorrowDate(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})
	t0 := testgen.BaseTime

	loan, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: member.ID, Now: t0})
	require.NoError(t, err)

	// A clock running behind the one used at borrow time.
	returned, err := svc.Return(ctx, ReturnOptions{LoanID: loan.ID, Now: t0.Add(-time.Hour)})
	require.NoError(t, err)
	assert.True(t, t0.Equal(*returned.ReturnDate))
	assert.False(t, returned.ReturnDate.Before(returned.BorrowDate))
}

func TestReturn_ThenBorrowAgain(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	m1 := testgen.CreateMember(t, db, testgen.MemberOptions{})
	m2 := testgen.CreateMember(t, db, testgen.MemberOptions{})

	first, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: m1.ID, Now: testgen.BaseTime})
	require.NoError(t, err)
	_, err = svc.Return(ctx, ReturnOptions{LoanID: first.ID, Now: testgen.BaseTime.AddDate(0, 0, 1)})
	require.NoError(t, err)

	second, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: m2.ID, Now: testgen.BaseTime.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, bookAvailable(t, db, book.ID))
}

func TestRetrieveLoan_ReportsOverdueAfterDueDate(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	book := testgen.CreateBook(t, db, testgen.BookOptions{Title: "Dune"})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Paul"})
	t0 := testgen.BaseTime

	loan, err := svc.Borrow(ctx, BorrowOptions{BookID: book.ID, MemberID: member.ID, Now: t0})
	require.NoError(t, err)

	current, err := svc.RetrieveLoan(ctx, RetrieveLoanOptions{ID: loan.ID, Now: t0.AddDate(0, 0, 13)})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusActive, current.Status)
	assert.Equal(t, "Dune", current.BookTitle)
	assert.Equal(t, "Paul", current.MemberName)

	late, err := svc.RetrieveLoan(ctx, RetrieveLoanOptions{ID: loan.ID, Now: t0.AddDate(0, 0, 15)})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusOverdue, late.Status)

	_, err = svc.RetrieveLoan(ctx, RetrieveLoanOptions{ID: 9999, Now: t0})
	assert.ErrorIs(t, err, errcodes.NotFound("Loan"))
}

func TestSweepOverdue(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	t0 := testgen.BaseTime
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})

	// Five loans past due, one due exactly now, one current, one returned.
	var late []*models.Loan
	for i := 0; i < 5; i++ {
		book := testgen.CreateBook(t, db, testgen.BookOptions{})
		late = append(late, testgen.CreateOpenLoan(t, db, book, member, t0.AddDate(0, 0, -20-i)))
	}
	boundary := testgen.CreateOpenLoan(t, db, testgen.CreateBook(t, db, testgen.BookOptions{}), member, t0.AddDate(0, 0, -14))
	current := testgen.CreateOpenLoan(t, db, testgen.CreateBook(t, db, testgen.BookOptions{}), member, t0.AddDate(0, 0, -1))
	returnedBook := testgen.CreateBook(t, db, testgen.BookOptions{})
	returned := testgen.CreateReturnedLoan(t, db, returnedBook, member, t0.AddDate(0, 0, -30), t0.AddDate(0, 0, -25))

	flipped, err := svc.SweepOverdue(ctx, SweepOptions{Now: t0, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, flipped)

	storedStatus := func(id int) string {
		loan := &models.Loan{}
		require.NoError(t, db.NewSelect().Model(loan).Where("l.id = ?", id).Scan(ctx))
		return loan.Status
	}
	for _, loan := range late {
		assert.Equal(t, models.LoanStatusOverdue, storedStatus(loan.ID))
	}
	assert.Equal(t, models.LoanStatusActive, storedStatus(boundary.ID))
	assert.Equal(t, models.LoanStatusActive, storedStatus(current.ID))
	assert.Equal(t, models.LoanStatusReturned, storedStatus(returned.ID))

	// A second pass has nothing left to do.
	flipped, err = svc.SweepOverdue(ctx, SweepOptions{Now: t0})
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)

	// Time passing flips the boundary loan with no other mutation.
	flipped, err = svc.SweepOverdue(ctx, SweepOptions{Now: t0.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)
	assert.Equal(t, models.LoanStatusOverdue, storedStatus(boundary.ID))
}

func TestSweepOverdue_CanceledContext(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SweepOverdue(ctx, SweepOptions{Now: testgen.BaseTime})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListLoansWithTotal(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	t0 := testgen.BaseTime

	alice := testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Alice"})
	bob := testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Bob"})
	dune := testgen.CreateBook(t, db, testgen.BookOptions{Title: "Dune"})
	emma := testgen.CreateBook(t, db, testgen.BookOptions{Title: "Emma"})
	hobbit := testgen.CreateBook(t, db, testgen.BookOptions{Title: "The Hobbit"})

	overdue := testgen.CreateOpenLoan(t, db, dune, alice, t0.AddDate(0, 0, -20))
	active := testgen.CreateOpenLoan(t, db, emma, bob, t0.AddDate(0, 0, -2))
	returned := testgen.CreateReturnedLoan(t, db, hobbit, alice, t0.AddDate(0, 0, -40), t0.AddDate(0, 0, -30))

	ids := func(loans []*models.Loan) []int {
		out := make([]int, 0, len(loans))
		for _, l := range loans {
			out = append(out, l.ID)
		}
		return out
	}
	status := func(s string) *string { return &s }

	t.Run("all, newest first, classified", func(t *testing.T) {
		loans, total, err := svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []int{active.ID, overdue.ID, returned.ID}, ids(loans))
		// Stored status is still active; the response reports overdue.
		assert.Equal(t, models.LoanStatusOverdue, loans[1].Status)
		assert.Equal(t, "Dune", loans[1].BookTitle)
		assert.Equal(t, "Alice", loans[1].MemberName)
	})

	t.Run("status filters", func(t *testing.T) {
		loans, total, err := svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0, Status: status(models.LoanStatusActive)})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []int{active.ID}, ids(loans))

		loans, _, err = svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0, Status: status(models.LoanStatusOverdue)})
		require.NoError(t, err)
		assert.Equal(t, []int{overdue.ID}, ids(loans))

		loans, _, err = svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0, Status: status(models.LoanStatusReturned)})
		require.NoError(t, err)
		assert.Equal(t, []int{returned.ID}, ids(loans))
	})

	t.Run("search matches book title or member name", func(t *testing.T) {
		q := "ALI"
		loans, total, err := svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0, Search: &q})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []int{overdue.ID, returned.ID}, ids(loans))

		q = "emm"
		loans, _, err = svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0, Search: &q})
		require.NoError(t, err)
		assert.Equal(t, []int{active.ID}, ids(loans))
	})

	t.Run("pagination keeps the total", func(t *testing.T) {
		limit, offset := 2, 2
		loans, total, err := svc.ListLoansWithTotal(ctx, ListLoansOptions{Now: t0, Limit: &limit, Offset: &offset})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []int{returned.ID}, ids(loans))
	})

	t.Run("book and member filters", func(t *testing.T) {
		loans, err := svc.ListLoans(ctx, ListLoansOptions{Now: t0, MemberID: &alice.ID})
		require.NoError(t, err)
		assert.Equal(t, []int{overdue.ID, returned.ID}, ids(loans))

		loans, err = svc.ListLoans(ctx, ListLoansOptions{Now: t0, BookID: &emma.ID})
		require.NoError(t, err)
		assert.Equal(t, []int{active.ID}, ids(loans))
	})
}

func TestReturn_ReturnDateNeverBeforeBorrowDate(t *testing.T) {
	t.Parallel()
	_, db := newTestService(t)
	book := testgen.CreateBook(t, db, testgen.BookOptions{})
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})

	returnedAt := testgen.BaseTime.Add(-time.Hour)
	loan := &models.Loan{
		BookID:     book.ID,
		MemberID:   member.ID,
		BorrowDate: testgen.BaseTime,
		DueDate:    DueDate(testgen.BaseTime),
		ReturnDate: &returnedAt,
		Status:     models.LoanStatusReturned,
	}
	_, err := db.NewInsert().Model(loan).Exec(context.Background())
	assert.Error(t, err)
}

func TestReconcileAvailability(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	ctx := context.Background()
	member := testgen.CreateMember(t, db, testgen.MemberOptions{})

	stuck := testgen.CreateBook(t, db, testgen.BookOptions{Unavailable: true})
	onLoan := testgen.CreateBook(t, db, testgen.BookOptions{})
	testgen.CreateOpenLoan(t, db, onLoan, member, testgen.BaseTime)
	_, err := db.NewUpdate().Model((*models.Book)(nil)).Set("available = ?", true).Where("id = ?", onLoan.ID).Exec(ctx)
	require.NoError(t, err)
	fine := testgen.CreateBook(t, db, testgen.BookOptions{})

	result, err := svc.ReconcileAvailability(ctx, testgen.BaseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Freed)
	assert.Equal(t, 1, result.Claimed)

	assert.True(t, bookAvailable(t, db, stuck.ID))
	assert.False(t, bookAvailable(t, db, onLoan.ID))
	assert.True(t, bookAvailable(t, db, fine.ID))

	result, err = svc.ReconcileAvailability(ctx, testgen.BaseTime)
	require.NoError(t, err)
	assert.Equal(t, &ReconcileResult{}, result)
}
