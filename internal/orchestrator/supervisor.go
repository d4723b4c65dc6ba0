package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openshorts/openshorts/pkg/models"
)

// supervise runs one job end to end: spawn the clipper with stderr merged
// into stdout, bridge its output into the store, poll liveness every tick
// while scanning for partial results, and resolve the terminal state once
// the process exits. The job's ephemeral secret is erased on every exit path.
func (o *Orchestrator) supervise(ctx context.Context, id uuid.UUID) {
	defer o.secrets.Delete(id)
	logger := o.logger.With("job_id", id)

	job, err := o.store.Get(ctx, id)
	if err != nil {
		logger.Error("load job for dispatch", "error", err)
		return
	}

	if err := o.store.SetStatus(ctx, id, models.JobStatusProcessing, ""); err != nil {
		logger.Error("mark processing", "error", err)
		return
	}
	o.appendLog(ctx, id, "Job started by worker.")

	outputDir := o.jobOutputDir(id)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		o.fail(ctx, id, fmt.Sprintf("create output directory: %v", err))
		return
	}

	cmd := o.buildCommand(job, outputDir)
	logger.Info("spawning clipper", "cmd", strings.Join(cmd.Args, " "))

	// One pipe carries the combined stdout+stderr stream. Owning the pipe
	// (instead of StdoutPipe) lets cmd.Wait run concurrently with the drain.
	pr, pw, err := os.Pipe()
	if err != nil {
		o.fail(ctx, id, fmt.Sprintf("create output pipe: %v", err))
		return
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		o.fail(ctx, id, fmt.Sprintf("failed to start process: %v", err))
		return
	}
	// The child now holds the write end; closing ours makes the drain see
	// EOF when the process exits.
	pw.Close()

	lines := make(chan string, logChannelSize)
	go drainOutput(pr, lines)

	bridgeDone := make(chan struct{})
	go o.consumeOutput(ctx, id, lines, bridgeDone)

	waitC := make(chan error, 1)
	go func() { waitC <- cmd.Wait() }()

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var waitErr error
poll:
	for {
		select {
		case waitErr = <-waitC:
			break poll
		case <-ticker.C:
			o.scanTick(ctx, id, outputDir)
		}
	}

	// Let the bridge persist every line that was produced before resolving
	// the terminal state; terminal records drop late writes.
	<-bridgeDone

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		o.finalize(ctx, id, outputDir)
	case errors.As(waitErr, &exitErr):
		o.fail(ctx, id, fmt.Sprintf("Process failed with exit code %d", exitErr.ExitCode()))
	default:
		o.fail(ctx, id, waitErr.Error())
	}
}

// buildCommand materializes the clipper invocation for one job.
func (o *Orchestrator) buildCommand(job *models.Job, outputDir string) *exec.Cmd {
	args := append([]string{}, o.cfg.RunnerCommand[1:]...)
	if isRemoteInput(job.InputRef) {
		args = append(args, "-u", job.InputRef)
	} else {
		args = append(args, "-i", job.InputRef)
	}
	args = append(args, "-o", outputDir)

	if job.CaptionSettings.IncludeCaptions {
		if s := job.CaptionSettings.Style; s != "" && s != models.CaptionStyleNone {
			args = append(args, "--caption-style", string(s))
		}
		if job.CaptionSettings.Color != "" {
			args = append(args, "--caption-color", job.CaptionSettings.Color)
		}
		if job.CaptionSettings.OutlineColor != "" {
			args = append(args, "--caption-outline-color", job.CaptionSettings.OutlineColor)
		}
	}

	cmd := exec.Command(o.cfg.RunnerCommand[0], args...)
	cmd.Env = os.Environ()
	if secret, ok := o.secrets.Get(job.ID); ok {
		cmd.Env = append(cmd.Env, o.cfg.SecretEnv+"="+secret)
	}
	return cmd
}

// maxLogLineBytes caps how much of one log line is kept. The remainder of
// an oversized line is still consumed from the pipe: closing the read end
// early would SIGPIPE a process that is otherwise going to succeed, and
// diagnostic trouble must never affect job status.
const maxLogLineBytes = 1 << 20

// drainOutput reads the combined process output until EOF, handing each
// non-empty line into the bounded channel in production order. This is the
// only blocking read in the system and runs on its own goroutine per job.
func drainOutput(r io.ReadCloser, lines chan<- string) {
	defer close(lines)
	defer r.Close()

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := readLine(br)
		if line != "" {
			lines <- line
		}
		if err != nil {
			return
		}
	}
}

// readLine returns the next line, truncated to maxLogLineBytes, consuming
// the full physical line from the reader regardless of its length.
func readLine(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := maxLogLineBytes - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			buf = append(buf, chunk...)
		}
		if err != nil {
			return strings.TrimSpace(string(buf)), err
		}
		if !isPrefix {
			return strings.TrimSpace(string(buf)), nil
		}
	}
}

// consumeOutput is the single consumer of the handoff channel: it appends
// each line to the job log and feeds the progress extractor. Store write
// failures drop the line; diagnostic loss never affects job status.
func (o *Orchestrator) consumeOutput(ctx context.Context, id uuid.UUID, lines <-chan string, done chan<- struct{}) {
	defer close(done)
	for line := range lines {
		o.appendLog(ctx, id, line)
		if pct, stage, ok := ParseProgress(line); ok {
			if err := o.store.UpdateProgress(ctx, id, pct, stage); err != nil {
				o.logger.Warn("progress update dropped", "job_id", id, "error", err)
			}
		}
	}
}

// scanTick runs one partial-result scan. Every error is swallowed; the next
// tick retries.
func (o *Orchestrator) scanTick(ctx context.Context, id uuid.UUID, outputDir string) {
	result, err := scanPartial(id, outputDir)
	if err != nil {
		if !errors.Is(err, errNotReady) {
			o.logger.Debug("partial scan skipped", "job_id", id, "error", err)
		}
		return
	}
	if len(result.Clips) == 0 {
		return
	}
	if err := o.store.SetResult(ctx, id, result); err != nil {
		o.logger.Warn("partial result dropped", "job_id", id, "error", err)
	}
}

// finalize resolves a job whose process exited 0. A clean exit without a
// descriptor file is still a failure: the descriptor is the success proof.
func (o *Orchestrator) finalize(ctx context.Context, id uuid.UUID, outputDir string) {
	result, err := buildFinalResult(id, outputDir)
	switch {
	case errors.Is(err, errNotReady):
		o.fail(ctx, id, "No metadata file generated")
		return
	case err != nil:
		o.fail(ctx, id, err.Error())
		return
	}

	if err := o.store.SetResult(ctx, id, result); err != nil {
		o.fail(ctx, id, fmt.Sprintf("store final result: %v", err))
		return
	}
	if err := o.store.SetStatus(ctx, id, models.JobStatusCompleted, ""); err != nil {
		o.logger.Error("mark completed", "job_id", id, "error", err)
		return
	}
	o.logger.Info("job completed", "job_id", id, "clips", len(result.Clips))
}

func (o *Orchestrator) fail(ctx context.Context, id uuid.UUID, msg string) {
	o.appendLog(ctx, id, msg)
	if err := o.store.SetStatus(ctx, id, models.JobStatusFailed, msg); err != nil {
		o.logger.Error("mark failed", "job_id", id, "error", err)
	}
	o.logger.Warn("job failed", "job_id", id, "reason", msg)
}

func (o *Orchestrator) appendLog(ctx context.Context, id uuid.UUID, line string) {
	if err := o.store.AppendLog(ctx, id, line); err != nil {
		o.logger.Warn("log line dropped", "job_id", id, "error", err)
	}
}
