package loans

import "github.com/shishobooks/shelf/pkg/models"

type BorrowPayload struct {
	BookID   int `json:"book_id" validate:"required,min=1"`
	MemberID int `json:"member_id" validate:"required,min=1"`
}

type ListLoansQuery struct {
	Status string  `query:"status" json:"status,omitempty" validate:"omitempty,oneof=active overdue returned" tstype:"LoanStatus"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" tstype:"string"`
	Page   int     `query:"page" json:"page,omitempty" default:"1" validate:"min=1"`
	Limit  int     `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
}

// StatusFilter returns nil when no status was requested.
func (q ListLoansQuery) StatusFilter() *string {
	if q.Status == "" {
		return nil
	}
	return &q.Status
}

// Offset converts the 1-indexed page into a row offset.
func (q ListLoansQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type ListLoansResponse struct {
	Loans []*models.Loan `json:"loans"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
