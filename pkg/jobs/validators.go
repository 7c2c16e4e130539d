package jobs

import "github.com/shishobooks/shelf/pkg/models"

type CreateJobPayload struct {
	Type   string `json:"type" validate:"required,oneof=export sweep"`
	Entity string `json:"entity,omitempty" validate:"omitempty,oneof=books members loans" tstype:"'books' | 'members' | 'loans'"`
}

type ListJobsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=pending in_progress completed failed"`
	Type   *string  `query:"type" json:"type,omitempty" validate:"omitempty,oneof=import export sweep"`
}

type ListJobsResponse struct {
	Jobs  []*models.Job `json:"jobs"`
	Total int           `json:"total"`
}
