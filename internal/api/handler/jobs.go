package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openshorts/openshorts/internal/api/response"
	"github.com/openshorts/openshorts/internal/orchestrator"
	"github.com/openshorts/openshorts/pkg/models"
)

// JobService is the slice of the orchestrator the job handlers depend on.
type JobService interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (uuid.UUID, error)
	Job(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// SubmitConfig tunes the submission endpoint.
type SubmitConfig struct {
	// UploadDir is where uploaded input files are staged.
	UploadDir string
	// MaxUploadBytes caps one uploaded file.
	MaxUploadBytes int64
	// FallbackSecret is used when the request carries no X-Gemini-Key
	// header (typically the server's own GEMINI_API_KEY).
	FallbackSecret string
}

type submitRequest struct {
	URL                 string `json:"url"`
	IncludeCaptions     *bool  `json:"include_captions"`
	CaptionStyle        string `json:"caption_style"`
	CaptionColor        string `json:"caption_color"`
	CaptionOutlineColor string `json:"caption_outline_color"`
}

// NewSubmitHandler returns the handler for POST /api/v1/jobs. It accepts a
// JSON body naming a video URL, or a multipart form carrying the video file
// itself, which is staged under the upload directory first.
func NewSubmitHandler(svc JobService, cfg SubmitConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("X-Gemini-Key")
		if secret == "" {
			secret = cfg.FallbackSecret
		}
		if secret == "" {
			response.Error(w, http.StatusBadRequest, "MISSING_API_KEY",
				"Provide an X-Gemini-Key header or configure a server-side key", nil)
			return
		}

		var req submitRequest
		var staged string

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			path, form, ok := stageUpload(w, r, cfg)
			if !ok {
				return
			}
			staged = path
			req = form
		default:
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
		}

		inputRef := req.URL
		if staged != "" {
			inputRef = staged
		}
		if inputRef == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Must provide a url or a file", nil)
			return
		}

		include := true
		if req.IncludeCaptions != nil {
			include = *req.IncludeCaptions
		}
		style := models.CaptionStyle(req.CaptionStyle)
		if req.CaptionStyle == "" {
			style = models.CaptionStyleNone
		}

		id, err := svc.Submit(r.Context(), orchestrator.SubmitRequest{
			InputRef: inputRef,
			Captions: models.CaptionSettings{
				IncludeCaptions: include,
				Style:           style,
				Color:           req.CaptionColor,
				OutlineColor:    req.CaptionOutlineColor,
			},
			Secret: secret,
		})
		if err != nil {
			if staged != "" {
				os.Remove(staged)
			}
			writeJobError(w, err)
			return
		}

		response.Accepted(w, map[string]string{
			"job_id": id.String(),
			"status": string(models.JobStatusQueued),
		})
	}
}

// stageUpload saves the request's "file" part under the upload directory and
// returns the staged path plus the remaining form fields. It writes the
// error response itself when ok is false.
func stageUpload(w http.ResponseWriter, r *http.Request, cfg SubmitConfig) (string, submitRequest, bool) {
	var req submitRequest

	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		status, code := http.StatusBadRequest, "INVALID_REQUEST"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
		}
		response.Error(w, status, code, "Could not read multipart form", nil)
		return "", req, false
	}

	req.URL = r.FormValue("url")
	req.CaptionStyle = r.FormValue("caption_style")
	req.CaptionColor = r.FormValue("caption_color")
	req.CaptionOutlineColor = r.FormValue("caption_outline_color")

	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return "", req, true
	}
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
		return "", req, false
	}
	defer file.Close()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not stage upload", nil)
		return "", req, false
	}

	staged := filepath.Join(cfg.UploadDir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(header.Filename)))
	dst, err := os.Create(staged)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not stage upload", nil)
		return "", req, false
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxUploadBytes+1)); err != nil {
		os.Remove(staged)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not stage upload", nil)
		return "", req, false
	}
	if info, err := dst.Stat(); err == nil && info.Size() > cfg.MaxUploadBytes {
		os.Remove(staged)
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the %d MB limit", cfg.MaxUploadBytes/(1<<20)), nil)
		return "", req, false
	}

	return staged, req, true
}

// NewStatusHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Job(r.Context(), id)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.JSON(w, statusResponse{
			JobID:         job.ID.String(),
			Status:        string(job.Status),
			ProgressPct:   job.ProgressPct,
			ProgressStage: job.ProgressStage,
			Logs:          job.Logs,
			CreatedAt:     job.CreatedAt.UTC().Format(time.RFC3339),
			StartedAt:     formatTime(job.StartedAt),
			Error:         job.Error,
		})
	}
}

// NewResultHandler returns the handler for GET /api/v1/jobs/{jobID}/result.
func NewResultHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Job(r.Context(), id)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.JSON(w, resultResponse{
			JobID:       job.ID.String(),
			Status:      string(job.Status),
			Result:      job.Result,
			CompletedAt: formatTime(job.CompletedAt),
		})
	}
}

type statusResponse struct {
	JobID         string   `json:"job_id"`
	Status        string   `json:"status"`
	ProgressPct   int      `json:"progress_percentage"`
	ProgressStage string   `json:"progress_stage,omitempty"`
	Logs          []string `json:"logs"`
	CreatedAt     string   `json:"created_at"`
	StartedAt     string   `json:"started_at,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type resultResponse struct {
	JobID       string            `json:"job_id"`
	Status      string            `json:"status"`
	Result      *models.JobResult `json:"result,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidSubmission):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, orchestrator.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.Is(err, orchestrator.ErrUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Job store is unreachable", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
