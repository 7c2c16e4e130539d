package csvio

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/shishobooks/shelf/internal/testgen"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, b []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportBooks(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	isbn := "0441172717"
	dune := testgen.CreateBook(t, db, testgen.BookOptions{Title: "Dune", Author: "Frank Herbert", ISBN: &isbn})
	testgen.CreateBook(t, db, testgen.BookOptions{Title: "Emma, a Novel", Author: "Jane Austen", Unavailable: true})
	testgen.CreateCategory(t, db, "Classics", dune)
	testgen.CreateCategory(t, db, "Sci-Fi", dune)

	var buf bytes.Buffer
	rows, err := NewExporter(db).ExportBooks(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	records := readAll(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, bookColumns, records[0])
	assert.Equal(t, "Dune", records[1][1])
	assert.Equal(t, "0441172717", records[1][3])
	assert.ElementsMatch(t, []string{"Classics", "Sci-Fi"}, splitCategories(records[1][5]))
	assert.Equal(t, "true", records[1][6])
	assert.Equal(t, "Emma, a Novel", records[2][1])
	assert.Equal(t, "false", records[2][6])
}

func TestExportMembers_CountsOpenLoans(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	member := testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Ada", Email: "ada@example.com"})
	testgen.CreateOpenLoan(t, db, testgen.CreateBook(t, db, testgen.BookOptions{}), member, testgen.BaseTime)

	var buf bytes.Buffer
	rows, err := NewExporter(db).Export(context.Background(), EntityMembers, &buf, testgen.BaseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	records := readAll(t, buf.Bytes())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Ada", "ada@example.com", "", "1"}, records[1][1:])
}

func TestExportLoans_ClassifiesAtNow(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	member := testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Ada"})
	book := testgen.CreateBook(t, db, testgen.BookOptions{Title: "Dune"})
	other := testgen.CreateBook(t, db, testgen.BookOptions{Title: "Emma"})
	borrowed := testgen.BaseTime.AddDate(0, 0, -20)
	testgen.CreateOpenLoan(t, db, book, member, borrowed)
	testgen.CreateReturnedLoan(t, db, other, member, borrowed, borrowed.AddDate(0, 0, 3))

	var buf bytes.Buffer
	rows, err := NewExporter(db).ExportLoans(context.Background(), &buf, testgen.BaseTime)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	statuses := map[string]string{}
	for _, r := range readAll(t, buf.Bytes())[1:] {
		statuses[r[2]] = r[8]
		assert.Equal(t, "Ada", r[4])
	}
	assert.Equal(t, models.LoanStatusOverdue, statuses["Dune"])
	assert.Equal(t, models.LoanStatusReturned, statuses["Emma"])
}

func TestExport_UnknownEntity(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)

	_, err := NewExporter(db).Export(context.Background(), "users", &bytes.Buffer{}, testgen.BaseTime)
	require.Error(t, err)
}
