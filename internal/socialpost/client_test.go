package socialpost_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openshorts/openshorts/internal/socialpost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video_clip_1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4-bytes"), 0o644))
	return path
}

func TestPostClip_SendsMultipartForm(t *testing.T) {
	var gotAuth string
	var gotForm map[string][]string
	var gotFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/upload", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(16<<20))
		gotForm = r.MultipartForm.Value
		file, header, err := r.FormFile("video")
		require.NoError(t, err)
		defer file.Close()
		gotFile = header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := socialpost.NewClient(srv.URL, 5*time.Second)
	payload, err := c.PostClip(context.Background(), socialpost.PostRequest{
		APIKey:               "key-123",
		User:                 "creator",
		Platforms:            []string{"tiktok", "instagram", "youtube"},
		Title:                "Viral Short",
		TikTokDescription:    "tk desc",
		InstagramDescription: "ig desc",
		VideoPath:            writeClip(t),
	})
	require.NoError(t, err)
	assert.Equal(t, true, payload["success"])

	assert.Equal(t, "Apikey key-123", gotAuth)
	assert.Equal(t, "video_clip_1.mp4", gotFile)
	assert.Equal(t, []string{"creator"}, gotForm["user"])
	assert.Equal(t, []string{"Viral Short"}, gotForm["title"])
	assert.ElementsMatch(t, []string{"tiktok", "instagram", "youtube"}, gotForm["platform[]"])
	assert.Equal(t, []string{"tk desc"}, gotForm["tiktok_title"])
	assert.Equal(t, []string{"ig desc"}, gotForm["instagram_title"])
	assert.Equal(t, []string{"REELS"}, gotForm["media_type"])
	// Empty YouTube fields fall back to the title.
	assert.Equal(t, []string{"Viral Short"}, gotForm["youtube_title"])
	assert.Equal(t, []string{"public"}, gotForm["privacyStatus"])
}

func TestPostClip_VendorRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := socialpost.NewClient(srv.URL, 5*time.Second)
	_, err := c.PostClip(context.Background(), socialpost.PostRequest{
		APIKey:    "bad",
		Platforms: []string{"tiktok"},
		VideoPath: writeClip(t),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, socialpost.ErrVendorRejected)
	assert.Contains(t, err.Error(), "401")
}

func TestPostClip_MissingVideoFile(t *testing.T) {
	c := socialpost.NewClient("http://localhost:0", time.Second)
	_, err := c.PostClip(context.Background(), socialpost.PostRequest{
		VideoPath: "/does/not/exist.mp4",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open clip")
}

func TestProfiles_ParsesConnectedPlatforms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/uploadposts/users", r.URL.Path)
		require.Equal(t, "Apikey key-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"profiles": [
				{"username": "alice", "social_accounts": {"tiktok": {"id": "1"}, "instagram": "", "youtube": {"id": "2"}}},
				{"username": "bob", "social_accounts": {}},
				{"social_accounts": {"tiktok": {"id": "3"}}}
			]
		}`))
	}))
	defer srv.Close()

	c := socialpost.NewClient(srv.URL, 5*time.Second)
	profiles, err := c.Profiles(context.Background(), "key-123")
	require.NoError(t, err)

	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, []string{"tiktok", "youtube"}, profiles[0].Connected)
	assert.Equal(t, "bob", profiles[1].Username)
	assert.Empty(t, profiles[1].Connected)
}

func TestProfiles_Unreachable(t *testing.T) {
	c := socialpost.NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Profiles(context.Background(), "key")
	assert.ErrorIs(t, err, socialpost.ErrVendorUnreachable)
}
