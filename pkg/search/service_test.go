package search

import (
	"context"
	"testing"

	"github.com/shishobooks/shelf/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalSearch(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	testgen.CreateBook(t, db, testgen.BookOptions{Title: "Dune", Author: "Frank Herbert"})
	testgen.CreateBook(t, db, testgen.BookOptions{Title: "Children of Dune", Author: "Frank Herbert"})
	testgen.CreateBook(t, db, testgen.BookOptions{Title: "100% Done", Author: "Someone"})
	testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Duncan Idaho", Email: "duncan@example.com"})
	testgen.CreateMember(t, db, testgen.MemberOptions{Name: "Paul", Email: "paul@example.com"})

	t.Run("matches titles and names case-insensitively", func(t *testing.T) {
		resp, err := svc.GlobalSearch(ctx, "DUN")
		require.NoError(t, err)
		require.Len(t, resp.Books, 2)
		assert.Equal(t, "Children of Dune", resp.Books[0].Title)
		require.Len(t, resp.Members, 1)
		assert.Equal(t, "Duncan Idaho", resp.Members[0].Name)
	})

	t.Run("matches authors", func(t *testing.T) {
		resp, err := svc.GlobalSearch(ctx, "herbert")
		require.NoError(t, err)
		assert.Len(t, resp.Books, 2)
		assert.Empty(t, resp.Members)
	})

	t.Run("treats wildcards literally", func(t *testing.T) {
		resp, err := svc.GlobalSearch(ctx, "%")
		require.NoError(t, err)
		require.Len(t, resp.Books, 1)
		assert.Equal(t, "100% Done", resp.Books[0].Title)
	})

	t.Run("blank query returns nothing", func(t *testing.T) {
		resp, err := svc.GlobalSearch(ctx, " ")
		require.NoError(t, err)
		assert.Equal(t, []BookSearchResult{}, resp.Books)
		assert.Equal(t, []MemberSearchResult{}, resp.Members)
	})
}
