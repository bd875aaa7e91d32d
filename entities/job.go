package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"video-branding-worker/constant"
)

type Job struct {
	ID           uuid.UUID          `json:"id" gorm:"type:uuid;primary_key"`
	OwnerId      uuid.UUID          `json:"owner_id" gorm:"type:uuid;index:idx_jobs_owner_id"`
	Name         string             `json:"name" gorm:"type:varchar(255);not null"`
	Speciality   string             `json:"speciality" gorm:"type:varchar(255);not null"`
	Hospital     string             `json:"hospital" gorm:"type:varchar(255);not null"`
	City         string             `json:"city" gorm:"type:varchar(255);not null"`
	ImageRef     string             `json:"image_ref" gorm:"type:varchar(1024)"`
	VideoRef     string             `json:"video_ref" gorm:"type:varchar(1024);not null"`
	Status       constant.JobStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index:idx_jobs_status"`
	OutputRef    *string            `json:"output_ref" gorm:"type:varchar(1024)"`
	ErrorMessage *string            `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time          `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string {
	return "jobs"
}

// predecessors lists, per target status, the statuses a job may move from.
// Processing -> Processing is a re-claim after the broker redelivers a
// message whose worker died mid-job.
var predecessors = map[constant.JobStatus][]constant.JobStatus{
	constant.JobStatusProcessing: {constant.JobStatusPending, constant.JobStatusProcessing},
	constant.JobStatusCompleted:  {constant.JobStatusProcessing},
	constant.JobStatusFailed:     {constant.JobStatusPending, constant.JobStatusProcessing},
}

// Predecessors returns the statuses from which to is reachable.
func Predecessors(to constant.JobStatus) []constant.JobStatus {
	return append([]constant.JobStatus(nil), predecessors[to]...)
}

func CanTransition(from, to constant.JobStatus) bool {
	for _, s := range predecessors[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Validate checks the record invariants: a known status, and an output
// reference present exactly when the job is completed.
func (j *Job) Validate() error {
	switch j.Status {
	case constant.JobStatusPending, constant.JobStatusProcessing, constant.JobStatusCompleted, constant.JobStatusFailed:
	default:
		return fmt.Errorf("job %s: unknown status %q", j.ID, j.Status)
	}
	hasOutput := j.OutputRef != nil && *j.OutputRef != ""
	if hasOutput != (j.Status == constant.JobStatusCompleted) {
		return fmt.Errorf("job %s: output ref must be set iff status is %s", j.ID, constant.JobStatusCompleted)
	}
	return nil
}
