package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks the fan-out of one root order.
type Job struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	RootOrderID snowflake.ID `json:"root_order_id" gorm:"not null;uniqueIndex"`
	Status      JobStatus    `json:"status" gorm:"type:text;not null;index"`
	Attempts    int          `json:"attempts" gorm:"not null;default:0"`
	LastError   string       `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string { return "fanout_jobs" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByRoot(ctx context.Context, db *gorm.DB, rootOrderID snowflake.ID) (*Job, error)
	Update(ctx context.Context, db *gorm.DB, job *Job) error
	// ListRetryable returns unfinished jobs with fewer than maxAttempts runs, oldest first.
	ListRetryable(ctx context.Context, db *gorm.DB, maxAttempts, limit int) ([]Job, error)
}

var (
	ErrJobNotFound   = errors.New("fanout_job_not_found")
	ErrDepthExceeded = errors.New("fanout_depth_exceeded")
	ErrMissingClient = errors.New("fanout_client_missing")
	ErrSourcePrice   = errors.New("fanout_source_price_missing")
)
