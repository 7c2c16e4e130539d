package migrations

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
)

// defaultRoles lists the permissions seeded for each system role.
var defaultRoles = map[string][]*models.Permission{
	models.RoleAdmin: {
		{Resource: models.ResourceBooks, Operation: models.OperationRead},
		{Resource: models.ResourceBooks, Operation: models.OperationWrite},
		{Resource: models.ResourceMembers, Operation: models.OperationRead},
		{Resource: models.ResourceMembers, Operation: models.OperationWrite},
		{Resource: models.ResourceLoans, Operation: models.OperationRead},
		{Resource: models.ResourceLoans, Operation: models.OperationWrite},
		{Resource: models.ResourceCategories, Operation: models.OperationRead},
		{Resource: models.ResourceCategories, Operation: models.OperationWrite},
		{Resource: models.ResourceUsers, Operation: models.OperationRead},
		{Resource: models.ResourceUsers, Operation: models.OperationWrite},
		{Resource: models.ResourceJobs, Operation: models.OperationRead},
		{Resource: models.ResourceJobs, Operation: models.OperationWrite},
	},
	models.RoleMember: {
		{Resource: models.ResourceBooks, Operation: models.OperationRead},
		{Resource: models.ResourceMembers, Operation: models.OperationRead},
		{Resource: models.ResourceLoans, Operation: models.OperationRead},
		{Resource: models.ResourceCategories, Operation: models.OperationRead},
	},
}

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		err := execAll(ctx, db,
			`CREATE TABLE roles (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				is_system BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE UNIQUE INDEX ux_roles_name ON roles (name)`,
			`CREATE TABLE permissions (
				id {{pk}},
				role_id INTEGER NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
				resource TEXT NOT NULL,
				operation TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_permissions_role_resource_operation ON permissions (role_id, resource, operation)`,
			`CREATE TABLE users (
				id {{pk}},
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				username TEXT NOT NULL,
				email TEXT,
				password_hash TEXT NOT NULL,
				role_id INTEGER NOT NULL REFERENCES roles (id),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				must_change_password BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE UNIQUE INDEX ux_users_username ON users (LOWER(username))`,
		)
		if err != nil {
			return err
		}

		now := time.Now()
		for _, name := range []string{models.RoleAdmin, models.RoleMember} {
			role := &models.Role{
				CreatedAt: now,
				UpdatedAt: now,
				Name:      name,
				IsSystem:  true,
			}
			_, err := db.NewInsert().Model(role).Returning("id").Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			perms := make([]*models.Permission, 0, len(defaultRoles[name]))
			for _, p := range defaultRoles[name] {
				perms = append(perms, &models.Permission{
					RoleID:    role.ID,
					Resource:  p.Resource,
					Operation: p.Operation,
				})
			}
			_, err = db.NewInsert().Model(&perms).Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	}

	down := func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db,
			`DROP TABLE IF EXISTS users`,
			`DROP TABLE IF EXISTS permissions`,
			`DROP TABLE IF EXISTS roles`,
		)
	}

	Migrations.MustRegister(up, down)
}
