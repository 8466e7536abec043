package queue

import (
	"math"
	"math/rand"
	"time"
)

// RecurringJob enqueues a job on a fixed schedule
type RecurringJob struct {
	Name    string
	Type    JobType
	Payload interface{}
	// At runs the job daily at HH:MM UTC. When empty, Every is used.
	At    string
	Every time.Duration
}

// EnqueueOptions represents options for enqueueing a job
type EnqueueOptions struct {
	delay    time.Duration
	maxRetry int
}

// EnqueueOption is a function that modifies EnqueueOptions
type EnqueueOption func(*EnqueueOptions)

// WithDelay adds a delay to a job
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.delay = delay
	}
}

// WithMaxRetry sets the maximum number of retries for a job
func WithMaxRetry(maxRetry int) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.maxRetry = maxRetry
	}
}

// calculateBackoff returns 5s * 2^retry capped at one hour, with ±20% jitter
func calculateBackoff(retry int) time.Duration {
	base := 5.0
	max := 3600.0

	seconds := math.Min(max, base*math.Pow(2, float64(retry)))

	jitter := seconds * 0.2
	seconds = seconds - jitter + (rand.Float64() * jitter * 2)

	return time.Duration(seconds * float64(time.Second))
}
