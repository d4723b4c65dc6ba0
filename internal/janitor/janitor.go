// Package janitor removes produced clips and staged uploads once they age
// out. Job records expire on their own in Redis; files do not, so a periodic
// sweep reclaims the disk.
package janitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config tunes one Janitor.
type Config struct {
	// OutputDir holds one subdirectory per job with its produced clips.
	OutputDir string
	// UploadDir holds staged input uploads as flat files.
	UploadDir string
	// Retention is how long a job directory or staged upload may sit
	// untouched before it is removed.
	Retention time.Duration
	// Interval is the pause between sweeps.
	Interval time.Duration
}

// Janitor periodically deletes expired job output directories and staged
// uploads based on their modification time.
type Janitor struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Janitor {
	return &Janitor{cfg: cfg, logger: logger, now: time.Now}
}

// Run sweeps on the configured interval until ctx is cancelled. The first
// sweep happens after one full interval, not at startup, so a restart does
// not race jobs that are still producing files.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info("janitor started",
		"retention", j.cfg.Retention, "interval", j.cfg.Interval)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one pass over both directories. Errors are logged and skipped;
// a file that cannot be removed now will be retried next interval.
func (j *Janitor) Sweep() {
	cutoff := j.now().Add(-j.cfg.Retention)

	j.sweepDir(j.cfg.OutputDir, cutoff, func(path string) error {
		return os.RemoveAll(path)
	})
	j.sweepDir(j.cfg.UploadDir, cutoff, os.Remove)
}

func (j *Janitor) sweepDir(dir string, cutoff time.Time, remove func(string) error) {
	if dir == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("janitor cannot list directory", "dir", dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := remove(path); err != nil {
			j.logger.Warn("janitor cannot remove", "path", path, "error", err)
			continue
		}
		j.logger.Info("purged expired files", "path", path)
	}
}
