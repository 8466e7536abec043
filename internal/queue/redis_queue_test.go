package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisQueue(t *testing.T) (*Queue, *RedisBackend, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := NewRedisBackend(client, setupTestDB(t))
	q := NewQueue(backend, zap.NewNop())
	q.backoff = func(int) time.Duration { return time.Minute }
	return q, backend, mr
}

// readyIDs and delayedIDs read the signal keys, empty when the key is missing
func readyIDs(mr *miniredis.Miniredis) []string {
	ids, _ := mr.List(readyKey)
	return ids
}

func delayedIDs(mr *miniredis.Miniredis) []string {
	ids, _ := mr.ZMembers(delayedKey)
	return ids
}

func TestRedisBackendSignalsAndRunsJob(t *testing.T) {
	q, backend, mr := setupRedisQueue(t)
	handled := make(chan string, 1)
	q.RegisterHandler(testJobType, func(ctx context.Context, job Job) (interface{}, error) {
		handled <- job.ID.String()
		return map[string]string{"ok": "yes"}, nil
	})

	jobID, err := q.Enqueue(context.Background(), testJobType, TestJob{ID: "1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{jobID}, readyIDs(mr))
	assert.Empty(t, delayedIDs(mr))

	found, err := q.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, jobID, <-handled)
	assert.Empty(t, readyIDs(mr))

	job, err := backend.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
}

func TestRedisBackendDelayedJobIsPromotedWhenDue(t *testing.T) {
	q, backend, mr := setupRedisQueue(t)

	jobID, err := q.Enqueue(context.Background(), testJobType, nil, WithDelay(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, readyIDs(mr))
	assert.Equal(t, []string{jobID}, delayedIDs(mr))

	require.NoError(t, backend.promoteDue(context.Background()))
	assert.Empty(t, readyIDs(mr), "not due yet")

	backend.store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, backend.promoteDue(context.Background()))
	assert.Equal(t, []string{jobID}, readyIDs(mr))
	assert.Empty(t, delayedIDs(mr))
}

func TestRedisBackendRetrySchedulesJob(t *testing.T) {
	q, backend, mr := setupRedisQueue(t)
	q.RegisterHandler(testJobType, func(ctx context.Context, job Job) (interface{}, error) {
		return nil, errors.New("gateway down")
	})

	jobID, err := q.Enqueue(context.Background(), testJobType, nil, WithMaxRetry(2))
	require.NoError(t, err)

	found, err := q.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, found)

	job, err := backend.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.NextRetry)
	assert.Empty(t, readyIDs(mr))
	assert.Equal(t, []string{jobID}, delayedIDs(mr))

	backend.store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	popped, err := backend.Pop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, jobID, popped.ID.String())
	assert.Equal(t, JobStatusProcessing, popped.Status)
}

func TestRedisBackendRecoverStaleSignalsAgain(t *testing.T) {
	q, backend, mr := setupRedisQueue(t)

	jobID, err := q.Enqueue(context.Background(), testJobType, nil)
	require.NoError(t, err)

	job, err := backend.Pop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Empty(t, readyIDs(mr))

	n, err := backend.RecoverStale(context.Background(), staleAfter)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "fresh jobs are left alone")

	backend.store.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = backend.RecoverStale(context.Background(), staleAfter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{jobID}, readyIDs(mr))

	stored, err := backend.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}
