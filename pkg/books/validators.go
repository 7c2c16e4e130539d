package books

import "mime/multipart"

type ListBooksQuery struct {
	Limit      int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset     int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search     *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" tstype:"string"`
	CategoryID *int    `query:"category_id" json:"category_id,omitempty" validate:"omitempty,min=1" tstype:"number"`
	Available  *bool   `query:"available" json:"available,omitempty" tstype:"boolean"`
}

type CreateBookPayload struct {
	Title       string  `json:"title" mod:"trim" validate:"required,max=300"`
	Author      string  `json:"author" mod:"trim" validate:"required,max=200"`
	ISBN        *string `json:"isbn,omitempty" mod:"isbn" validate:"omitempty,isbn_or_empty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	CategoryIDs []int   `json:"category_ids,omitempty" validate:"omitempty,dive,min=1"`
}

type UpdateBookPayload struct {
	Title       *string `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=300"`
	Author      *string `json:"author,omitempty" mod:"trim" validate:"omitempty,min=1,max=200"`
	ISBN        *string `json:"isbn,omitempty" mod:"isbn" validate:"omitempty,isbn_or_empty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	CategoryIDs *[]int  `json:"category_ids,omitempty" validate:"omitempty,dive,min=1"`
}

type UploadCoverPayload struct {
	FormFiles map[string]*multipart.FileHeader `json:"-" tstype:"-"`
}
