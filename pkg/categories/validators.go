package categories

type ListCategoriesQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" tstype:"string"`
}

type CreateCategoryPayload struct {
	Name string `json:"name" mod:"trim" validate:"required,min=1,max=100"`
}

type UpdateCategoryPayload struct {
	Name *string `json:"name,omitempty" mod:"trim" validate:"omitempty,min=1,max=100"`
}

type MergeCategoriesPayload struct {
	SourceID int `json:"source_id" validate:"required,min=1"`
}
