package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job statuses. A job is non-terminal while pending or running.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusError   = "error"
)

// Job is one unit of background work. The dedupe key is globally unique:
// enqueueing an already-known unit of work is a no-op, and a terminal row is
// reused (reset to pending) when the same unit is requeued.
type Job struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	JobType string `gorm:"type:varchar(50);not null;index"`
	Status  string `gorm:"type:varchar(10);not null;index;default:'pending'"`

	Priority  int    `gorm:"not null;default:100"`
	DedupeKey string `gorm:"type:varchar(300);not null;uniqueIndex"`

	Payload datatypes.JSON `gorm:"type:jsonb"`

	Attempts    int     `gorm:"not null;default:0"`
	MaxAttempts int     `gorm:"not null;default:3"`
	LastError   *string `gorm:"type:text"`

	// RunAfter hides the job from claimers until the given instant; retry
	// backoff and deferrals are both expressed through it.
	RunAfter  *time.Time `gorm:"type:timestamptz;index"`
	ClaimedBy *string    `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Job) TableName() string {
	return "jobs"
}

// Terminal reports whether the job can no longer be claimed.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusError
}
