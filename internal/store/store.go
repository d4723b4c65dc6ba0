package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openshorts/openshorts/pkg/models"
)

var (
	// ErrNotFound is returned when a job id has no record (unknown or expired).
	ErrNotFound = errors.New("job not found")
	// ErrUnavailable is returned when the durable store cannot be reached.
	// Callers must surface it; there is no in-memory fallback.
	ErrUnavailable = errors.New("job store unavailable")
)

// RetentionTTL is the durable retention window for a job record. Every write
// re-persists the full record and resets its expiry to this window.
const RetentionTTL = 24 * time.Hour

// Store is the durable job record interface. All mutations are full-record
// read-modify-write operations; concurrent writers of the same record may
// race and the last writer wins. Mutations of a record already in a terminal
// state are no-ops: completed and failed are sticky.
type Store interface {
	Ping(ctx context.Context) error

	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)

	AppendLog(ctx context.Context, id uuid.UUID, line string) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errMsg string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, pct int, stage string) error
	SetResult(ctx context.Context, id uuid.UUID, result *models.JobResult) error
}
