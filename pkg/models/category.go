package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c" tstype:"-"`

	ID        int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `bun:",nullzero" json:"name"`
	BookCount int       `bun:",scanonly" json:"book_count"`
}

type BookCategory struct {
	bun.BaseModel `bun:"table:book_categories,alias:bc" tstype:"-"`

	ID         int       `bun:",pk,autoincrement" json:"id"`
	BookID     int       `bun:",nullzero" json:"book_id"`
	CategoryID int       `bun:",nullzero" json:"category_id"`
	Category   *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty" tstype:"Category"`
}
