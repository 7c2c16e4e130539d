package members

type ListMembersQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" tstype:"string"`
}

type CreateMemberPayload struct {
	Name  string  `json:"name" mod:"trim" validate:"required,max=200"`
	Email string  `json:"email" mod:"trim,lcase" validate:"required,email,max=254"`
	Phone *string `json:"phone,omitempty" mod:"trim" validate:"omitempty,max=40"`
}

type UpdateMemberPayload struct {
	Name  *string `json:"name,omitempty" mod:"trim" validate:"omitempty,min=1,max=200"`
	Email *string `json:"email,omitempty" mod:"trim,lcase" validate:"omitempty,email,max=254"`
	Phone *string `json:"phone,omitempty" mod:"trim" validate:"omitempty,max=40"`
}
