package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	fanoutdomain "github.com/smallbiznis/tradeway/internal/fanout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() fanoutdomain.Repository {
	return &repo{}
}

const jobColumns = `id, org_id, root_order_id, status, attempts, last_error, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *fanoutdomain.Job) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fanout_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.OrgID,
		job.RootOrderID,
		job.Status,
		job.Attempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) FindByRoot(ctx context.Context, db *gorm.DB, rootOrderID snowflake.ID) (*fanoutdomain.Job, error) {
	var job fanoutdomain.Job
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM fanout_jobs WHERE root_order_id = ?`,
		rootOrderID,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, job *fanoutdomain.Job) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fanout_jobs SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		job.Status,
		job.Attempts,
		job.LastError,
		job.UpdatedAt,
		job.ID,
	).Error
}

func (r *repo) ListRetryable(ctx context.Context, db *gorm.DB, maxAttempts, limit int) ([]fanoutdomain.Job, error) {
	var items []fanoutdomain.Job
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM fanout_jobs
		 WHERE status IN (?, ?) AND attempts < ?
		 ORDER BY updated_at ASC, id ASC
		 LIMIT ?`,
		fanoutdomain.JobPending,
		fanoutdomain.JobFailed,
		maxAttempts,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
