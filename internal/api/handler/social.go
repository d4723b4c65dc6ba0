package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/openshorts/openshorts/internal/api/response"
	"github.com/openshorts/openshorts/internal/socialpost"
	"github.com/openshorts/openshorts/pkg/models"
)

// ClipResolver resolves a stored clip to its on-disk media path.
type ClipResolver interface {
	ClipPath(ctx context.Context, id uuid.UUID, index int) (string, models.ClipResult, error)
}

// SocialPoster is the vendor client surface the social handlers use.
type SocialPoster interface {
	PostClip(ctx context.Context, req socialpost.PostRequest) (map[string]any, error)
	Profiles(ctx context.Context, apiKey string) ([]socialpost.Profile, error)
}

type socialPostRequest struct {
	JobID     string   `json:"job_id"`
	ClipIndex int      `json:"clip_index"`
	APIKey    string   `json:"api_key"`
	UserID    string   `json:"user_id"`
	Platforms []string `json:"platforms"`

	// Optional overrides for the stored clip metadata.
	Title                string `json:"title"`
	TikTokDescription    string `json:"tiktok_description"`
	InstagramDescription string `json:"instagram_description"`
	YouTubeDescription   string `json:"youtube_description"`
}

const defaultClipTitle = "Viral Short"

// NewSocialPostHandler returns the handler for POST /api/v1/social/posts:
// it resolves one produced clip and forwards it to the vendor.
func NewSocialPostHandler(clips ClipResolver, poster SocialPoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req socialPostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.APIKey == "" || req.UserID == "" || len(req.Platforms) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"api_key, user_id and platforms are required", nil)
			return
		}
		jobID, err := uuid.Parse(req.JobID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}

		path, clip, err := clips.ClipPath(r.Context(), jobID, req.ClipIndex)
		if err != nil {
			writeJobError(w, err)
			return
		}
		if _, err := os.Stat(path); err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Clip media file not found", nil)
			return
		}

		title := firstNonEmpty(req.Title, clip.Title, defaultClipTitle)
		payload, err := poster.PostClip(r.Context(), socialpost.PostRequest{
			APIKey:               req.APIKey,
			User:                 req.UserID,
			Platforms:            req.Platforms,
			Title:                title,
			TikTokDescription:    firstNonEmpty(req.TikTokDescription, clip.DescriptionTikTok),
			InstagramDescription: firstNonEmpty(req.InstagramDescription, clip.DescriptionInstagram),
			YouTubeTitle:         firstNonEmpty(req.Title, clip.DescriptionYouTube),
			YouTubeDescription:   firstNonEmpty(req.YouTubeDescription, clip.DescriptionInstagram),
			VideoPath:            path,
		})
		if err != nil {
			writeVendorError(w, err)
			return
		}

		response.JSON(w, payload)
	}
}

// NewSocialProfilesHandler returns the handler for GET /api/v1/social/profiles.
func NewSocialProfilesHandler(poster SocialPoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-Upload-Post-Key")
		if apiKey == "" {
			response.Error(w, http.StatusBadRequest, "MISSING_API_KEY",
				"Provide an X-Upload-Post-Key header", nil)
			return
		}

		profiles, err := poster.Profiles(r.Context(), apiKey)
		if err != nil {
			writeVendorError(w, err)
			return
		}

		response.JSON(w, map[string]any{"profiles": profiles})
	}
}

func writeVendorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, socialpost.ErrVendorRejected):
		response.Error(w, http.StatusBadGateway, "VENDOR_REJECTED", err.Error(), nil)
	case errors.Is(err, socialpost.ErrVendorUnreachable):
		response.Error(w, http.StatusBadGateway, "VENDOR_UNAVAILABLE",
			"The posting service is not reachable", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
