package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Member struct {
	bun.BaseModel `bun:"table:members,alias:m" tstype:"-"`

	ID          int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `bun:",nullzero" json:"name"`
	Email       string    `bun:",nullzero" json:"email"`
	Phone       *string   `json:"phone"`
	ActiveLoans int       `bun:",scanonly" json:"active_loans"`
}
