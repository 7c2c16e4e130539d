package loans

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/binder"
)

type handler struct {
	loanService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListLoansQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	offset := params.Offset()
	loans, total, err := h.loanService.ListLoansWithTotal(ctx, ListLoansOptions{
		Limit:  &params.Limit,
		Offset: &offset,
		Status: params.StatusFilter(),
		Search: params.Search,
		Now:    h.loanService.Now(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ListLoansResponse{
		Loans: loans,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Loan")
	if err != nil {
		return err
	}

	loan, err := h.loanService.RetrieveLoan(ctx, RetrieveLoanOptions{
		ID:  id,
		Now: h.loanService.Now(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, loan))
}

func (h *handler) borrow(c echo.Context) error {
	ctx := c.Request().Context()

	params := BorrowPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	now := h.loanService.Now()
	loan, err := h.loanService.Borrow(ctx, BorrowOptions{
		BookID:   params.BookID,
		MemberID: params.MemberID,
		Now:      now,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Reload for the book title and member name.
	loan, err = h.loanService.RetrieveLoan(ctx, RetrieveLoanOptions{ID: loan.ID, Now: now})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, loan))
}

func (h *handler) returnLoan(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Loan")
	if err != nil {
		return err
	}

	now := h.loanService.Now()
	loan, err := h.loanService.Return(ctx, ReturnOptions{LoanID: id, Now: now})
	if err != nil {
		return errors.WithStack(err)
	}

	loan, err = h.loanService.RetrieveLoan(ctx, RetrieveLoanOptions{ID: loan.ID, Now: now})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, loan))
}
