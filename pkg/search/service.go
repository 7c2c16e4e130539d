package search

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

const globalSearchLimit = 5

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// GlobalSearch returns up to five books and five members matching query.
func (svc *Service) GlobalSearch(ctx context.Context, query string) (*GlobalSearchResponse, error) {
	resp := &GlobalSearchResponse{
		Books:   []BookSearchResult{},
		Members: []MemberSearchResult{},
	}
	if ContainsPattern(query) == "" {
		return resp, nil
	}

	var books []*models.Book
	q := svc.db.NewSelect().
		Model(&books).
		Column("b.id", "b.title", "b.author", "b.available").
		Order("b.title ASC").
		Limit(globalSearchLimit)
	err := WhereContains(q, query, "b.title", "b.author", "b.isbn").Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, b := range books {
		resp.Books = append(resp.Books, BookSearchResult{
			ID:        b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Available: b.Available,
		})
	}

	var members []*models.Member
	q = svc.db.NewSelect().
		Model(&members).
		Column("m.id", "m.name", "m.email").
		Order("m.name ASC").
		Limit(globalSearchLimit)
	err = WhereContains(q, query, "m.name", "m.email").Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, m := range members {
		resp.Members = append(resp.Members, MemberSearchResult{
			ID:    m.ID,
			Name:  m.Name,
			Email: m.Email,
		})
	}

	return resp, nil
}
