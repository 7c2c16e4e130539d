package roles

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// Service exposes the seeded system roles. Roles are fixed: admin and member.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Retrieve(ctx context.Context, id int) (*models.Role, error) {
	role := &models.Role{}
	err := s.db.NewSelect().
		Model(role).
		Relation("Permissions").
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Role")
		}
		return nil, errors.WithStack(err)
	}
	return role, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Role, error) {
	roles := []*models.Role{}
	err := s.db.NewSelect().
		Model(&roles).
		Relation("Permissions").
		Order("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return roles, nil
}
