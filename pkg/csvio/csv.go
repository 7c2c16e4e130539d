// Package csvio moves books, members and loans in and out of CSV files.
package csvio

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	EntityBooks   = "books"
	EntityMembers = "members"
	EntityLoans   = "loans"
)

// categorySeparator splits the categories column of a book row.
const categorySeparator = ";"

var (
	bookColumns   = []string{"id", "title", "author", "isbn", "description", "categories", "available"}
	memberColumns = []string{"id", "name", "email", "phone", "active_loans"}
	loanColumns   = []string{"id", "book_id", "book_title", "member_id", "member_name", "borrow_date", "due_date", "return_date", "status"}
)

// header maps lowercased column names to their index in a row.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	row, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("csv file is empty")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	h := make(header, len(row))
	for idx, name := range row {
		// Spreadsheet exports often lead with a UTF-8 BOM.
		name = strings.TrimPrefix(name, "\ufeff")
		h[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return h, nil
}

func (h header) require(columns ...string) error {
	missing := []string{}
	for _, col := range columns {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("csv header is missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h header) value(row []string, column string) string {
	idx, ok := h[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func splitCategories(s string) []string {
	names := []string{}
	seen := map[string]struct{}{}
	for _, part := range strings.Split(s, categorySeparator) {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	return names
}
