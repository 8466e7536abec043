package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/softwarepar/backend/internal/monitoring"
	"go.uber.org/zap"
)

// JobType defines the type of job
type JobType string

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultMaxRetries applies when a job is enqueued without WithMaxRetry
const DefaultMaxRetries = 3

// Job represents a background job
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type" gorm:"type:varchar(100);not null;index"`
	Payload    json.RawMessage `json:"payload" gorm:"type:jsonb"`
	Status     JobStatus       `json:"status" gorm:"type:varchar(20);not null;index"`
	RetryCount int             `json:"retryCount" gorm:"not null;default:0"`
	MaxRetries int             `json:"maxRetries" gorm:"not null"`
	NextRetry  *time.Time      `json:"nextRetry,omitempty" gorm:"index"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Error      string          `json:"error,omitempty" gorm:"type:text"`
	Result     json.RawMessage `json:"result,omitempty" gorm:"type:jsonb"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) (interface{}, error)

// Backend stores jobs and hands them out to workers
type Backend interface {
	Push(ctx context.Context, job *Job) error
	// Pop claims the next runnable job, or returns nil when there is none
	Pop(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, job *Job, result json.RawMessage) error
	Retry(ctx context.Context, job *Job, at time.Time, cause error) error
	Fail(ctx context.Context, job *Job, cause error) error
}

// Enqueuer is the producer side of the queue
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType JobType, payload interface{}, opts ...EnqueueOption) (string, error)
}

// Queue dispatches jobs from a backend to registered handlers
type Queue struct {
	backend  Backend
	handlers map[JobType]JobHandler
	mu       sync.RWMutex
	backoff  func(retry int) time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewQueue creates a new queue
func NewQueue(backend Backend, logger *zap.Logger) *Queue {
	return &Queue{
		backend:  backend,
		handlers: make(map[JobType]JobHandler),
		backoff:  calculateBackoff,
		now:      time.Now,
		logger:   logger,
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

func (q *Queue) handler(jobType JobType) (JobHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Enqueue adds a job to the queue and returns its id
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload interface{}, opts ...EnqueueOption) (string, error) {
	options := EnqueueOptions{maxRetry: DefaultMaxRetries}
	for _, opt := range opts {
		opt(&options)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: options.maxRetry,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if options.delay > 0 {
		runAt := now.Add(options.delay)
		job.NextRetry = &runAt
	}

	if err := q.backend.Push(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}

	q.logger.Debug("job enqueued", zap.String("job_id", job.ID.String()), zap.String("type", string(jobType)))
	return job.ID.String(), nil
}

// ProcessNext runs at most one job. It reports whether a job was found.
func (q *Queue) ProcessNext(ctx context.Context) (bool, error) {
	job, err := q.backend.Pop(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := q.logger.With(zap.String("job_id", job.ID.String()), zap.String("type", string(job.Type)))

	handler, ok := q.handler(job.Type)
	if !ok {
		log.Error("no handler registered for job type")
		monitoring.JobsProcessed.WithLabelValues(string(job.Type), "unhandled").Inc()
		return true, q.backend.Fail(ctx, job, fmt.Errorf("no handler registered for job type %s", job.Type))
	}

	result, runErr := q.run(ctx, handler, *job)
	if runErr != nil {
		return true, q.handleFailure(ctx, log, job, runErr)
	}

	var resultJSON json.RawMessage
	if result != nil {
		if resultJSON, err = json.Marshal(result); err != nil {
			log.Warn("failed to marshal job result", zap.Error(err))
			resultJSON = nil
		}
	}

	monitoring.JobsProcessed.WithLabelValues(string(job.Type), "completed").Inc()
	log.Info("job completed")
	return true, q.backend.Complete(ctx, job, resultJSON)
}

func (q *Queue) run(ctx context.Context, handler JobHandler, job Job) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) handleFailure(ctx context.Context, log *zap.Logger, job *Job, cause error) error {
	retryCount := job.RetryCount + 1
	if retryCount > job.MaxRetries {
		log.Error("job exceeded maximum retry attempts", zap.Int("max_retries", job.MaxRetries), zap.Error(cause))
		monitoring.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		return q.backend.Fail(ctx, job, cause)
	}

	delay := q.backoff(retryCount)
	log.Warn("scheduling job retry",
		zap.Int("attempt", retryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	monitoring.JobsProcessed.WithLabelValues(string(job.Type), "retried").Inc()
	return q.backend.Retry(ctx, job, q.now().Add(delay), cause)
}
