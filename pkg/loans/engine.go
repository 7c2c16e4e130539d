package loans

import (
	"time"

	"github.com/shishobooks/shelf/pkg/models"
)

// LoanPeriodDays is the fixed lending window. Due dates are computed in
// calendar days, so LoanPeriod is only exact for UTC timestamps.
const (
	LoanPeriodDays = 14
	LoanPeriod     = LoanPeriodDays * 24 * time.Hour
)

// DueDate returns the due date for a loan borrowed at borrowedAt.
func DueDate(borrowedAt time.Time) time.Time {
	return borrowedAt.AddDate(0, 0, LoanPeriodDays)
}

// IsOverdue reports whether loan is open and its due date lies strictly
// before now. A loan due exactly now is not overdue.
func IsOverdue(loan *models.Loan, now time.Time) bool {
	return loan.IsOpen() && loan.DueDate.Before(now)
}

// Classify derives a loan's status from its dates, ignoring whatever was last
// stored in the status column.
func Classify(loan *models.Loan, now time.Time) string {
	switch {
	case !loan.IsOpen():
		return models.LoanStatusReturned
	case IsOverdue(loan, now):
		return models.LoanStatusOverdue
	default:
		return models.LoanStatusActive
	}
}
