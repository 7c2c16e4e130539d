package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	//tygo:emit export type JobStatus = typeof JobStatusPending | typeof JobStatusInProgress | typeof JobStatusCompleted | typeof JobStatusFailed;
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	//tygo:emit export type JobType = typeof JobTypeImport | typeof JobTypeExport | typeof JobTypeSweep;
	JobTypeImport = "import"
	JobTypeExport = "export"
	JobTypeSweep  = "sweep"
)

const (
	//tygo:emit export type ImportEntity = typeof ImportEntityBooks | typeof ImportEntityMembers;
	ImportEntityBooks   = "books"
	ImportEntityMembers = "members"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j" tstype:"-"`

	ID         int         `bun:",pk,autoincrement" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type" tstype:"JobType"`
	Status     string      `bun:",nullzero" json:"status" tstype:"JobStatus"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data" tstype:"JobImportData | JobExportData | JobSweepData"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeImport:
		job.DataParsed = &JobImportData{}
	case JobTypeExport:
		job.DataParsed = &JobExportData{}
	case JobTypeSweep:
		job.DataParsed = &JobSweepData{}
	default:
		return errors.Errorf("unknown job type %q", job.Type)
	}

	if job.Data == "" {
		return nil
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// MarshalData serializes DataParsed back into Data.
func (job *Job) MarshalData() error {
	if job.DataParsed == nil {
		job.Data = "{}"
		return nil
	}
	b, err := json.Marshal(job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	job.Data = string(b)
	return nil
}

// JobImportData describes a CSV upload waiting to be imported. Imported and
// Skipped are filled in by the worker.
type JobImportData struct {
	Entity   string `json:"entity" tstype:"ImportEntity"`
	FilePath string `json:"file_path"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// JobExportData describes a CSV snapshot written by the worker.
type JobExportData struct {
	Entity   string `json:"entity"`
	FilePath string `json:"file_path,omitempty"`
	Rows     int    `json:"rows"`
}

// JobSweepData records the outcome of an overdue sweep.
type JobSweepData struct {
	Flipped int `json:"flipped"`
}
