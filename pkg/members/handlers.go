package members

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/binder"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/models"
)

type handler struct {
	memberService *Service
	loanService   *loans.Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListMembersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	members, total, err := h.memberService.ListMembersWithTotal(ctx, ListMembersOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Members []*models.Member `json:"members"`
		Total   int              `json:"total"`
	}{members, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Member")
	if err != nil {
		return err
	}

	member, err := h.memberService.RetrieveMember(ctx, RetrieveMemberOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, member))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateMemberPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	member := &models.Member{
		Name:  params.Name,
		Email: params.Email,
	}
	if params.Phone != nil && *params.Phone != "" {
		member.Phone = params.Phone
	}
	if err := h.memberService.CreateMember(ctx, member); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, member))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Member")
	if err != nil {
		return err
	}

	params := UpdateMemberPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	member, err := h.memberService.RetrieveMember(ctx, RetrieveMemberOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	// Keep track of what's been changed.
	opts := UpdateMemberOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != member.Name {
		member.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Email != nil && *params.Email != member.Email {
		member.Email = *params.Email
		opts.Columns = append(opts.Columns, "email")
	}
	if params.Phone != nil {
		member.Phone = params.Phone
		if *params.Phone == "" {
			member.Phone = nil
		}
		opts.Columns = append(opts.Columns, "phone")
	}

	if err := h.memberService.UpdateMember(ctx, member, opts); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, member))
}

func (h *handler) deleteMember(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Member")
	if err != nil {
		return err
	}

	member, err := h.memberService.RetrieveMember(ctx, RetrieveMemberOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.memberService.DeleteMember(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	if member.ActiveLoans > 0 {
		logger.FromContext(ctx).Info("deleted member with open loans", logger.Data{"member_id": id, "open_loans": member.ActiveLoans})
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) memberLoans(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := binder.PathID(c, "Member")
	if err != nil {
		return err
	}

	params := loans.ListLoansQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if _, err := h.memberService.RetrieveMember(ctx, RetrieveMemberOptions{ID: &id}); err != nil {
		return errors.WithStack(err)
	}

	offset := params.Offset()
	loanList, total, err := h.loanService.ListLoansWithTotal(ctx, loans.ListLoansOptions{
		Limit:    &params.Limit,
		Offset:   &offset,
		Status:   params.StatusFilter(),
		Search:   params.Search,
		MemberID: &id,
		Now:      h.loanService.Now(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, loans.ListLoansResponse{
		Loans: loanList,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}))
}
