// Package orchestrator is the job orchestration engine: it owns the
// submission queue, the concurrency gate, subprocess supervision, log
// bridging, progress inference, partial-result scanning and finalization.
// One Orchestrator is constructed at process start and injected into the
// API layer; no component reads process-wide state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openshorts/openshorts/internal/store"
	"github.com/openshorts/openshorts/pkg/models"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrInvalidSubmission rejects a request before any job is created.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrNotFound mirrors store.ErrNotFound for unknown ids and for clip
	// indexes outside the stored result's range.
	ErrNotFound = store.ErrNotFound
	// ErrUnavailable mirrors store.ErrUnavailable: the durable store is
	// unreachable and no job was created.
	ErrUnavailable = store.ErrUnavailable
)

const (
	defaultMaxConcurrent = 5
	defaultPollInterval  = 2 * time.Second
	defaultSecretEnv     = "GEMINI_API_KEY"

	// logChannelSize bounds the order-preserving handoff channel between
	// the blocking output drain and the store-writing consumer.
	logChannelSize = 256
)

// Config tunes one Orchestrator.
type Config struct {
	// MaxConcurrent is the gate capacity K, shared across all submission
	// channels.
	MaxConcurrent int64
	// PollInterval is the supervisor's liveness/partial-result tick.
	PollInterval time.Duration
	// RunnerCommand is the external clipper invocation prefix,
	// e.g. ["python", "-u", "main.py"].
	RunnerCommand []string
	// OutputDir is the root under which each job owns an exclusive
	// subdirectory named by its id.
	OutputDir string
	// SecretEnv is the environment variable carrying the per-job secret
	// into the subprocess.
	SecretEnv string
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.SecretEnv == "" {
		c.SecretEnv = defaultSecretEnv
	}
	if len(c.RunnerCommand) == 0 {
		c.RunnerCommand = []string{"python", "-u", "main.py"}
	}
}

// SubmitRequest is one video-processing request.
type SubmitRequest struct {
	// InputRef is a video URL or a path to previously staged input bytes.
	InputRef string
	Captions models.CaptionSettings
	// Secret is the per-job credential handed to the subprocess via the
	// environment. Held in volatile memory only, never persisted.
	Secret string
}

// Orchestrator wires the queue, gate, store and secret vault together.
type Orchestrator struct {
	cfg     Config
	store   store.Store
	secrets *SecretVault
	queue   *jobQueue
	gate    *semaphore.Weighted
	logger  *slog.Logger
}

func New(cfg Config, st store.Store, logger *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		secrets: NewSecretVault(),
		queue:   newJobQueue(),
		gate:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:  logger,
	}
}

// Secrets exposes the vault for inspection in tests.
func (o *Orchestrator) Secrets() *SecretVault {
	return o.secrets
}

// Submit validates the request, persists a queued record and enqueues the
// job for dispatch. It never blocks on execution capacity. When the store
// is unreachable no job is created and ErrUnavailable is returned.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	if err := validateSubmission(req); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	job := &models.Job{
		ID:              id,
		Status:          models.JobStatusQueued,
		InputRef:        req.InputRef,
		CaptionSettings: req.Captions,
		CreatedAt:       time.Now().UTC(),
		Logs:            []string{fmt.Sprintf("Job %s queued.", id)},
	}
	if err := o.store.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}

	if req.Secret != "" {
		o.secrets.Put(id, req.Secret)
	}
	o.queue.Push(id)

	o.logger.Info("job submitted", "job_id", id, "queued", o.queue.Len())
	return id, nil
}

// Job returns the current record for id. Status and result queries are both
// read-through views of this record.
func (o *Orchestrator) Job(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return o.store.Get(ctx, id)
}

// ClipPath resolves the on-disk media path for one clip of a finished or
// in-flight result. An index outside the stored result's range is ErrNotFound.
func (o *Orchestrator) ClipPath(ctx context.Context, id uuid.UUID, index int) (string, models.ClipResult, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return "", models.ClipResult{}, err
	}
	if job.Result == nil || index < 0 || index >= len(job.Result.Clips) {
		return "", models.ClipResult{}, fmt.Errorf("clip index %d: %w", index, ErrNotFound)
	}
	clip := job.Result.Clips[index]
	fileName := filepath.Base(clip.VideoURL)
	return filepath.Join(o.cfg.OutputDir, id.String(), fileName), clip, nil
}

// Run is the dispatcher loop: pull one id at a time in FIFO order, block for
// a gate slot, then hand the job to a supervisor goroutine and immediately
// loop for the next id. It returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("dispatcher started", "max_concurrent", o.cfg.MaxConcurrent)

	for {
		id, err := o.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if err := o.gate.Acquire(ctx, 1); err != nil {
			return err
		}
		o.logger.Info("slot acquired", "job_id", id)

		go func(id uuid.UUID) {
			// The slot is released on every exit path, panics included,
			// so a crashing job cannot leak gate capacity.
			defer o.gate.Release(1)
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("supervisor panic", "job_id", id, "panic", r)
					if err := o.store.SetStatus(ctx, id, models.JobStatusFailed, fmt.Sprintf("internal error: %v", r)); err != nil {
						o.logger.Error("record panic failure", "job_id", id, "error", err)
					}
					o.secrets.Delete(id)
				}
				o.logger.Info("slot released", "job_id", id)
			}()
			o.supervise(ctx, id)
		}(id)
	}
}

func (o *Orchestrator) jobOutputDir(id uuid.UUID) string {
	return filepath.Join(o.cfg.OutputDir, id.String())
}

func validateSubmission(req SubmitRequest) error {
	ref := strings.TrimSpace(req.InputRef)
	if ref == "" {
		return fmt.Errorf("%w: empty input reference", ErrInvalidSubmission)
	}
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: malformed input URL %q", ErrInvalidSubmission, ref)
		}
	}
	if req.Captions.Style != "" && !req.Captions.Style.Valid() {
		return fmt.Errorf("%w: unknown caption style %q", ErrInvalidSubmission, req.Captions.Style)
	}
	return nil
}

// isRemoteInput reports whether the input reference is a URL rather than a
// staged local path.
func isRemoteInput(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
