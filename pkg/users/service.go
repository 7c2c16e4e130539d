package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/auth"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

type CreateUserOptions struct {
	Username             string
	Email                *string
	Password             string
	Role                 string
	RequirePasswordReset bool
}

func (s *Service) roleByName(ctx context.Context, name string) (*models.Role, error) {
	role := &models.Role{}
	err := s.db.NewSelect().
		Model(role).
		Where("r.name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.ValidationError("Invalid role " + name)
		}
		return nil, errors.WithStack(err)
	}
	return role, nil
}

func (s *Service) usernameTaken(ctx context.Context, username string, exceptID int) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Where("id != ?", exceptID).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

func (s *Service) Create(ctx context.Context, opts CreateUserOptions) (*models.User, error) {
	taken, err := s.usernameTaken(ctx, opts.Username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errcodes.Conflict("Username already exists.")
	}

	role, err := s.roleByName(ctx, opts.Role)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := auth.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		CreatedAt:          now,
		UpdatedAt:          now,
		Username:           opts.Username,
		Email:              opts.Email,
		PasswordHash:       hashedPassword,
		RoleID:             role.ID,
		IsActive:           true,
		MustChangePassword: opts.RequirePasswordReset,
	}

	_, err = s.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return s.Retrieve(ctx, user.ID)
}

func (s *Service) Retrieve(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Relation("Role").
		Relation("Role.Permissions").
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

type ListOptions struct {
	Limit  int
	Offset int
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]*models.User, int, error) {
	users := []*models.User{}

	query := s.db.NewSelect().
		Model(&users).
		Relation("Role").
		Order("u.id ASC")

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	total, err := query.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return users, total, nil
}

type UpdateOptions struct {
	Username *string
	Email    *string
	Role     *string
	IsActive *bool
}

// Update applies the set fields of opts. Demoting or deactivating the last
// active admin is rejected.
func (s *Service) Update(ctx context.Context, id int, opts UpdateOptions) (*models.User, error) {
	user, err := s.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}

	columns := []string{}
	losesAdmin := false

	if opts.Username != nil && *opts.Username != user.Username {
		taken, err := s.usernameTaken(ctx, *opts.Username, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errcodes.Conflict("Username already exists.")
		}
		user.Username = *opts.Username
		columns = append(columns, "username")
	}
	if opts.Email != nil {
		user.Email = opts.Email
		columns = append(columns, "email")
	}
	if opts.Role != nil && (user.Role == nil || *opts.Role != user.Role.Name) {
		role, err := s.roleByName(ctx, *opts.Role)
		if err != nil {
			return nil, err
		}
		losesAdmin = user.IsAdmin()
		user.RoleID = role.ID
		columns = append(columns, "role_id")
	}
	if opts.IsActive != nil && *opts.IsActive != user.IsActive {
		losesAdmin = losesAdmin || (!*opts.IsActive && user.IsAdmin())
		user.IsActive = *opts.IsActive
		columns = append(columns, "is_active")
	}

	if len(columns) == 0 {
		return user, nil
	}

	if losesAdmin {
		if err := s.ensureAnotherAdmin(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	user.UpdatedAt = s.now()
	columns = append(columns, "updated_at")
	_, err = s.db.NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return s.Retrieve(ctx, id)
}

func (s *Service) ensureAnotherAdmin(ctx context.Context, userID int) error {
	count, err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Join("JOIN roles AS r ON r.id = u.role_id").
		Where("r.name = ?", models.RoleAdmin).
		Where("u.is_active = ?", true).
		Where("u.id != ?", userID).
		Count(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if count == 0 {
		return errcodes.ValidationError("At least one active admin is required")
	}
	return nil
}

// ResetPassword changes a user's password and sets whether they must change
// it again on next login.
func (s *Service) ResetPassword(ctx context.Context, userID int, newPassword string, requirePasswordReset bool) error {
	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hashedPassword).
		Set("must_change_password = ?", requirePasswordReset).
		Set("updated_at = ?", s.now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("User")
	}

	return nil
}

func (s *Service) VerifyPassword(ctx context.Context, userID int, password string) (bool, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Column("password_hash").
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, errcodes.NotFound("User")
		}
		return false, errors.WithStack(err)
	}

	return auth.CheckPassword(password, user.PasswordHash), nil
}

// Deactivate soft-deletes a user.
func (s *Service) Deactivate(ctx context.Context, userID int) error {
	inactive := false
	_, err := s.Update(ctx, userID, UpdateOptions{IsActive: &inactive})
	return err
}
