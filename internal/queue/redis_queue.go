package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Redis key names
const (
	readyKey   = "queue:jobs"
	delayedKey = "delayed:jobs"
)

// RedisBackend keeps job records in the database and signals runnable job ids
// through Redis so workers block instead of polling.
type RedisBackend struct {
	store        *DBBackend
	client       *redis.Client
	blockTimeout time.Duration
}

// NewRedisBackend creates a Redis-signalled queue store
func NewRedisBackend(client *redis.Client, db *gorm.DB) *RedisBackend {
	return &RedisBackend{
		store:        NewDBBackend(db),
		client:       client,
		blockTimeout: time.Second,
	}
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DB = db
	return redis.NewClient(opts), nil
}

func (b *RedisBackend) Push(ctx context.Context, job *Job) error {
	if err := b.store.Push(ctx, job); err != nil {
		return err
	}
	if job.NextRetry != nil && job.NextRetry.After(b.store.now()) {
		return b.schedule(ctx, job.ID.String(), *job.NextRetry)
	}
	return b.client.LPush(ctx, readyKey, job.ID.String()).Err()
}

func (b *RedisBackend) Pop(ctx context.Context) (*Job, error) {
	if err := b.promoteDue(ctx); err != nil {
		return nil, err
	}

	res, err := b.client.BRPop(ctx, b.blockTimeout, readyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if len(res) != 2 {
		return nil, nil
	}
	return b.store.claim(ctx, res[1])
}

func (b *RedisBackend) Complete(ctx context.Context, job *Job, result json.RawMessage) error {
	return b.store.Complete(ctx, job, result)
}

func (b *RedisBackend) Retry(ctx context.Context, job *Job, at time.Time, cause error) error {
	if err := b.store.Retry(ctx, job, at, cause); err != nil {
		return err
	}
	return b.schedule(ctx, job.ID.String(), at)
}

func (b *RedisBackend) Fail(ctx context.Context, job *Job, cause error) error {
	return b.store.Fail(ctx, job, cause)
}

// RecoverStale resets stuck jobs and signals them again
func (b *RedisBackend) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	var ids []string
	err := b.store.db.WithContext(ctx).Model(&Job{}).
		Where("status = ? AND updated_at < ?", JobStatusProcessing, b.store.now().Add(-olderThan)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	n, err := b.store.RecoverStale(ctx, olderThan)
	if err != nil {
		return n, err
	}
	for _, id := range ids {
		if err := b.client.LPush(ctx, readyKey, id).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (b *RedisBackend) schedule(ctx context.Context, id string, at time.Time) error {
	return b.client.ZAdd(ctx, delayedKey, &redis.Z{
		Score:  float64(at.Unix()),
		Member: id,
	}).Err()
}

// promoteDue moves delayed jobs whose time has come onto the ready list
func (b *RedisBackend) promoteDue(ctx context.Context) error {
	max := strconv.FormatInt(b.store.now().Unix(), 10)
	ids, err := b.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	for _, id := range ids {
		removed, err := b.client.ZRem(ctx, delayedKey, id).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // another worker promoted it
		}
		if err := b.client.LPush(ctx, readyKey, id).Err(); err != nil {
			return err
		}
	}
	return nil
}
