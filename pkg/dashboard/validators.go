package dashboard

type ListQuery struct {
	Limit int `query:"limit" json:"limit,omitempty" default:"5" validate:"min=1,max=50"`
}
