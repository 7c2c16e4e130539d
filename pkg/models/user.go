package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" tstype:"-"`

	ID                 int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Username           string    `bun:",nullzero" json:"username"`
	Email              *string   `json:"email,omitempty"`
	PasswordHash       string    `json:"-"`
	RoleID             int       `json:"role_id"`
	IsActive           bool      `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`

	Role *Role `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty" tstype:"Role"`
}

// HasPermission checks if the user has a specific permission.
func (u *User) HasPermission(resource, operation string) bool {
	if u.Role == nil {
		return false
	}
	return u.Role.HasPermission(resource, operation)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role != nil && u.Role.Name == RoleAdmin
}
