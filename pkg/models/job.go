package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a processing job. Transitions only
// move forward: queued -> processing -> completed|failed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the persisted record for one video-processing request. The client
// polls GET /api/v1/jobs/{job_id} until the status is completed or failed.
type Job struct {
	ID              uuid.UUID       `json:"job_id"`
	Status          JobStatus       `json:"status"`
	InputRef        string          `json:"input_url"`
	CaptionSettings CaptionSettings `json:"caption_settings"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ProgressPct     int             `json:"progress_percentage"`
	ProgressStage   string          `json:"progress_stage,omitempty"`
	Logs            []string        `json:"logs"`
	Result          *JobResult      `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// JobResult holds the clips produced so far (partial while the job is
// processing, final once completed) plus an optional transcript payload.
type JobResult struct {
	Clips      []ClipResult   `json:"clips"`
	Transcript map[string]any `json:"transcript,omitempty"`
}

// ClipResult describes one produced clip. The video URL is derived from the
// job's output directory, not an authoritative storage path.
type ClipResult struct {
	VideoURL             string `json:"video_url"`
	Title                string `json:"title,omitempty"`
	DescriptionTikTok    string `json:"description_tiktok,omitempty"`
	DescriptionInstagram string `json:"description_instagram,omitempty"`
	DescriptionYouTube   string `json:"description_youtube,omitempty"`
}
