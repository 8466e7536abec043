package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DBBackend keeps jobs in the jobs table and polls it for work
type DBBackend struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBBackend creates a database-backed queue store
func NewDBBackend(db *gorm.DB) *DBBackend {
	return &DBBackend{db: db, now: time.Now}
}

func (b *DBBackend) Push(ctx context.Context, job *Job) error {
	return b.db.WithContext(ctx).Create(job).Error
}

func (b *DBBackend) Pop(ctx context.Context) (*Job, error) {
	var job Job
	err := b.db.WithContext(ctx).
		Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, b.now()).
		Order("created_at ASC").
		Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b.claim(ctx, job.ID.String())
}

// claim moves a pending job to processing. It returns nil when another worker won.
func (b *DBBackend) claim(ctx context.Context, id string) (*Job, error) {
	res := b.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobStatusPending).
		Updates(map[string]interface{}{
			"status":     JobStatusProcessing,
			"updated_at": b.now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var job Job
	if err := b.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (b *DBBackend) Complete(ctx context.Context, job *Job, result json.RawMessage) error {
	return b.update(ctx, job, map[string]interface{}{
		"status":     JobStatusCompleted,
		"result":     result,
		"error":      "",
		"next_retry": nil,
	})
}

func (b *DBBackend) Retry(ctx context.Context, job *Job, at time.Time, cause error) error {
	return b.update(ctx, job, map[string]interface{}{
		"status":      JobStatusPending,
		"retry_count": job.RetryCount + 1,
		"next_retry":  at,
		"error":       cause.Error(),
	})
}

func (b *DBBackend) Fail(ctx context.Context, job *Job, cause error) error {
	return b.update(ctx, job, map[string]interface{}{
		"status":     JobStatusFailed,
		"error":      cause.Error(),
		"next_retry": nil,
	})
}

func (b *DBBackend) update(ctx context.Context, job *Job, fields map[string]interface{}) error {
	fields["updated_at"] = b.now()
	return b.db.WithContext(ctx).Model(&Job{}).Where("id = ?", job.ID).Updates(fields).Error
}

// RecoverStale returns jobs stuck in processing for longer than olderThan to pending
func (b *DBBackend) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res := b.db.WithContext(ctx).Model(&Job{}).
		Where("status = ? AND updated_at < ?", JobStatusProcessing, b.now().Add(-olderThan)).
		Updates(map[string]interface{}{
			"status":     JobStatusPending,
			"updated_at": b.now(),
		})
	return res.RowsAffected, res.Error
}

// GetJob retrieves a job by ID
func (b *DBBackend) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := b.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
