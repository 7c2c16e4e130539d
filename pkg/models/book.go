package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b" tstype:"-"`

	ID             int             `bun:",pk,autoincrement" json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Title          string          `bun:",nullzero" json:"title"`
	Author         string          `bun:",nullzero" json:"author"`
	ISBN           *string         `bun:"isbn" json:"isbn"`
	Description    *string         `json:"description"`
	CoverFilename  *string         `json:"cover_filename"`
	Available      bool            `bun:",notnull" json:"available"`
	BookCategories []*BookCategory `bun:"rel:has-many,join:id=book_id" json:"-" tstype:"-"`
	Categories     []*Category     `bun:"-" json:"categories,omitempty" tstype:"Category[]"`
}

// FlattenCategories copies the categories loaded through BookCategories onto
// Categories so they serialize as a plain list.
func (b *Book) FlattenCategories() {
	b.Categories = make([]*Category, 0, len(b.BookCategories))
	for _, bc := range b.BookCategories {
		if bc.Category != nil {
			b.Categories = append(b.Categories, bc.Category)
		}
	}
}
