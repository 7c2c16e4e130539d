package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	//tygo:emit export type LoanStatus = typeof LoanStatusActive | typeof LoanStatusOverdue | typeof LoanStatusReturned;
	LoanStatusActive   = "active"
	LoanStatusOverdue  = "overdue"
	LoanStatusReturned = "returned"
)

type Loan struct {
	bun.BaseModel `bun:"table:loans,alias:l" tstype:"-"`

	ID         int        `bun:",pk,autoincrement" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	BookID     int        `bun:",nullzero" json:"book_id"`
	MemberID   int        `bun:",nullzero" json:"member_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Status     string     `bun:",nullzero" json:"status" tstype:"LoanStatus"`

	BookTitle  string `bun:",scanonly" json:"book_title,omitempty"`
	MemberName string `bun:",scanonly" json:"member_name,omitempty"`

	Book   *Book   `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty" tstype:"Book"`
	Member *Member `bun:"rel:belongs-to,join:member_id=id" json:"member,omitempty" tstype:"Member"`
}

// IsOpen reports whether the loan has not been returned yet.
func (l *Loan) IsOpen() bool {
	return l.ReturnDate == nil
}
