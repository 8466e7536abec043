package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// staleAfter is how long a job may stay in processing before it is handed out again
const staleAfter = 15 * time.Minute

// StaleRecoverer is implemented by backends that can requeue abandoned jobs
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Worker processes jobs from a queue
type Worker struct {
	queue        *Queue
	numWorkers   int
	pollInterval time.Duration
	wg           sync.WaitGroup
	quit         chan struct{}
	scheduler    *gocron.Scheduler
	logger       *zap.Logger
}

// NewWorker creates a new worker pool
func NewWorker(queue *Queue, numWorkers int, pollInterval time.Duration, logger *zap.Logger) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Worker{
		queue:        queue,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		quit:         make(chan struct{}),
		scheduler:    gocron.NewScheduler(time.UTC),
		logger:       logger,
	}
}

// AddRecurring schedules rj to be enqueued on its interval
func (w *Worker) AddRecurring(rj RecurringJob) error {
	enqueue := func() {
		if _, err := w.queue.Enqueue(context.Background(), rj.Type, rj.Payload); err != nil {
			w.logger.Error("failed to enqueue recurring job", zap.String("name", rj.Name), zap.Error(err))
		}
	}

	var err error
	switch {
	case rj.At != "":
		_, err = w.scheduler.Every(1).Day().At(rj.At).Do(enqueue)
	case rj.Every > 0:
		_, err = w.scheduler.Every(rj.Every).Do(enqueue)
	default:
		err = fmt.Errorf("recurring job %s has no schedule", rj.Name)
	}
	return err
}

// Start starts the worker goroutines and the scheduler
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting queue workers", zap.Int("workers", w.numWorkers))

	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(ctx, i)
	}

	w.startScheduler(ctx)
}

// Stop stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("stopping queue workers")
	close(w.quit)
	w.wg.Wait()
	w.scheduler.Stop()
}

func (w *Worker) process(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.quit:
			return
		case <-ctx.Done():
			return
		default:
		}

		found, err := w.queue.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("error processing job", zap.Int("worker", workerID), zap.Error(err))
		}
		if found && err == nil {
			continue
		}

		select {
		case <-w.quit:
			return
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *Worker) startScheduler(ctx context.Context) {
	if recoverer, ok := w.queue.backend.(StaleRecoverer); ok {
		_, err := w.scheduler.Every(1).Minute().Do(func() {
			n, err := recoverer.RecoverStale(ctx, staleAfter)
			if err != nil {
				w.logger.Error("failed to recover stale jobs", zap.Error(err))
				return
			}
			if n > 0 {
				w.logger.Warn("requeued stale jobs", zap.Int64("count", n))
			}
		})
		if err != nil {
			w.logger.Error("failed to schedule stale job recovery", zap.Error(err))
		}
	}

	w.scheduler.StartAsync()
}
