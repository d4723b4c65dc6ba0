// Package socialpost proxies produced clips to the upload-post vendor API.
package socialpost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Sentinel errors for vendor failures.
var (
	ErrVendorUnreachable = errors.New("upload-post unreachable")
	ErrVendorRejected    = errors.New("upload-post rejected request")
)

// Platforms the vendor supports.
var knownPlatforms = []string{"tiktok", "instagram", "youtube"}

// PostRequest describes one clip post across one or more platforms. Empty
// per-platform fields fall back to Title.
type PostRequest struct {
	APIKey    string
	User      string
	Platforms []string
	Title     string

	TikTokDescription    string
	InstagramDescription string
	YouTubeTitle         string
	YouTubeDescription   string

	// VideoPath is the clip's on-disk location; it is streamed to the
	// vendor as multipart content.
	VideoPath string
}

// Profile is one vendor account and the platforms it has connected.
type Profile struct {
	Username  string   `json:"username"`
	Connected []string `json:"connected"`
}

// Client posts clips and fetches profiles via the vendor HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// PostClip uploads one clip to the requested platforms and returns the
// vendor's response payload.
func (c *Client) PostClip(ctx context.Context, req PostRequest) (map[string]any, error) {
	video, err := os.Open(req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer video.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	fields := map[string]string{
		"user":  req.User,
		"title": req.Title,
	}
	for _, platform := range req.Platforms {
		if err := form.WriteField("platform[]", platform); err != nil {
			return nil, fmt.Errorf("build form: %w", err)
		}
	}
	for _, platform := range req.Platforms {
		switch platform {
		case "tiktok":
			fields["tiktok_title"] = fallback(req.TikTokDescription, req.Title)
		case "instagram":
			fields["instagram_title"] = fallback(req.InstagramDescription, req.Title)
			fields["media_type"] = "REELS"
		case "youtube":
			fields["youtube_title"] = fallback(req.YouTubeTitle, req.Title)
			fields["youtube_description"] = fallback(req.YouTubeDescription, req.Title)
			fields["privacyStatus"] = "public"
		}
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("build form: %w", err)
		}
	}

	part, err := form.CreateFormFile("video", filepath.Base(req.VideoPath))
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Apikey "+req.APIKey)
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrVendorRejected, resp.StatusCode, detail)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding vendor response: %w", err)
	}
	return payload, nil
}

// Profiles fetches the caller's vendor accounts and which platforms each has
// connected.
func (c *Client) Profiles(ctx context.Context, apiKey string) ([]Profile, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/uploadposts/users", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Apikey "+apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrVendorRejected, resp.StatusCode, detail)
	}

	var payload struct {
		Profiles []struct {
			Username       string                     `json:"username"`
			SocialAccounts map[string]json.RawMessage `json:"social_accounts"`
		} `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding profiles response: %w", err)
	}

	profiles := make([]Profile, 0, len(payload.Profiles))
	for _, p := range payload.Profiles {
		if p.Username == "" {
			continue
		}
		connected := make([]string, 0, len(knownPlatforms))
		for _, platform := range knownPlatforms {
			raw, ok := p.SocialAccounts[platform]
			if !ok {
				continue
			}
			// Only an object means a linked account; the vendor sends
			// empty strings for unlinked platforms.
			var account map[string]any
			if err := json.Unmarshal(raw, &account); err == nil {
				connected = append(connected, platform)
			}
		}
		profiles = append(profiles, Profile{Username: p.Username, Connected: connected})
	}
	return profiles, nil
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
