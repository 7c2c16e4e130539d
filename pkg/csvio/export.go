package csvio

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/books"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/members"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// exportBatchSize is how many rows are loaded per query while streaming.
const exportBatchSize = 500

// Exporter streams tables to CSV in batches so large libraries never sit in
// memory all at once.
type Exporter struct {
	bookService   *books.Service
	memberService *members.Service
	loanService   *loans.Service
}

func NewExporter(db *bun.DB) *Exporter {
	return &Exporter{
		bookService:   books.NewService(db),
		memberService: members.NewService(db),
		loanService:   loans.NewService(db),
	}
}

// Export writes the given entity and returns the number of data rows written.
func (e *Exporter) Export(ctx context.Context, entity string, w io.Writer, now time.Time) (int, error) {
	switch entity {
	case EntityBooks:
		return e.ExportBooks(ctx, w)
	case EntityMembers:
		return e.ExportMembers(ctx, w)
	case EntityLoans:
		return e.ExportLoans(ctx, w, now)
	default:
		return 0, errors.Errorf("unknown export entity %q", entity)
	}
}

func (e *Exporter) ExportBooks(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(bookColumns); err != nil {
		return 0, errors.WithStack(err)
	}

	rows := 0
	for offset := 0; ; offset += exportBatchSize {
		limit, off := exportBatchSize, offset
		batch, err := e.bookService.ListBooks(ctx, books.ListBooksOptions{Limit: &limit, Offset: &off})
		if err != nil {
			return rows, errors.WithStack(err)
		}
		for _, b := range batch {
			names := make([]string, 0, len(b.Categories))
			for _, c := range b.Categories {
				names = append(names, c.Name)
			}
			err := cw.Write([]string{
				strconv.Itoa(b.ID),
				b.Title,
				b.Author,
				deref(b.ISBN),
				deref(b.Description),
				strings.Join(names, categorySeparator),
				strconv.FormatBool(b.Available),
			})
			if err != nil {
				return rows, errors.WithStack(err)
			}
			rows++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return rows, errors.WithStack(err)
		}
		if len(batch) < exportBatchSize {
			return rows, nil
		}
	}
}

func (e *Exporter) ExportMembers(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(memberColumns); err != nil {
		return 0, errors.WithStack(err)
	}

	rows := 0
	for offset := 0; ; offset += exportBatchSize {
		limit, off := exportBatchSize, offset
		batch, err := e.memberService.ListMembers(ctx, members.ListMembersOptions{Limit: &limit, Offset: &off})
		if err != nil {
			return rows, errors.WithStack(err)
		}
		for _, m := range batch {
			err := cw.Write([]string{
				strconv.Itoa(m.ID),
				m.Name,
				m.Email,
				deref(m.Phone),
				strconv.Itoa(m.ActiveLoans),
			})
			if err != nil {
				return rows, errors.WithStack(err)
			}
			rows++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return rows, errors.WithStack(err)
		}
		if len(batch) < exportBatchSize {
			return rows, nil
		}
	}
}

// ExportLoans writes every loan with the status it has at now.
func (e *Exporter) ExportLoans(ctx context.Context, w io.Writer, now time.Time) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(loanColumns); err != nil {
		return 0, errors.WithStack(err)
	}

	rows := 0
	for offset := 0; ; offset += exportBatchSize {
		limit, off := exportBatchSize, offset
		batch, err := e.loanService.ListLoans(ctx, loans.ListLoansOptions{Limit: &limit, Offset: &off, Now: now})
		if err != nil {
			return rows, errors.WithStack(err)
		}
		for _, l := range batch {
			if err := cw.Write(loanRecord(l)); err != nil {
				return rows, errors.WithStack(err)
			}
			rows++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return rows, errors.WithStack(err)
		}
		if len(batch) < exportBatchSize {
			return rows, nil
		}
	}
}

func loanRecord(l *models.Loan) []string {
	returned := ""
	if l.ReturnDate != nil {
		returned = l.ReturnDate.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.Itoa(l.ID),
		strconv.Itoa(l.BookID),
		l.BookTitle,
		strconv.Itoa(l.MemberID),
		l.MemberName,
		l.BorrowDate.UTC().Format(time.RFC3339),
		l.DueDate.UTC().Format(time.RFC3339),
		returned,
		l.Status,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
