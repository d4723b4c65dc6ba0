package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openshorts/openshorts/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis keyed get/set-with-expiry service.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client (shared with the rate
// limiter).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// IncrWithExpiry atomically increments a counter and refreshes its expiry.
// Used by the API rate limiter.
func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Create persists the full record with a fresh retention TTL. It is an
// upsert: writing an existing id replaces the record and refreshes expiry.
func (s *RedisStore) Create(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, JobKey(job.ID), data, RetentionTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	data, err := s.client.Get(ctx, JobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// mutate is the shared read-modify-write cycle: load the full record, apply
// fn, write the full record back with a reset TTL. Records in a terminal
// state are left untouched.
func (s *RedisStore) mutate(ctx context.Context, id uuid.UUID, fn func(*models.Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	fn(job)
	return s.Create(ctx, job)
}

func (s *RedisStore) AppendLog(ctx context.Context, id uuid.UUID, line string) error {
	return s.mutate(ctx, id, func(job *models.Job) {
		job.Logs = append(job.Logs, line)
	})
}

// SetStatus advances the job's lifecycle. Entering processing stamps
// started_at; entering a terminal state stamps completed_at and records the
// error message, if any.
func (s *RedisStore) SetStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errMsg string) error {
	return s.mutate(ctx, id, func(job *models.Job) {
		job.Status = status
		now := time.Now().UTC()
		switch {
		case status == models.JobStatusProcessing:
			job.StartedAt = &now
		case status.Terminal():
			job.CompletedAt = &now
			if errMsg != "" {
				job.Error = errMsg
			}
		}
	})
}

func (s *RedisStore) UpdateProgress(ctx context.Context, id uuid.UUID, pct int, stage string) error {
	return s.mutate(ctx, id, func(job *models.Job) {
		job.ProgressPct = pct
		if stage != "" {
			job.ProgressStage = stage
		}
	})
}

func (s *RedisStore) SetResult(ctx context.Context, id uuid.UUID, result *models.JobResult) error {
	return s.mutate(ctx, id, func(job *models.Job) {
		job.Result = result
	})
}
