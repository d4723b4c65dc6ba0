package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/openshorts/openshorts/pkg/models"
)

// errNotReady is an internal signal that the clipper has not produced a
// usable descriptor yet. Not an error condition: the next poll tick retries.
var errNotReady = errors.New("descriptor not ready")

const (
	descriptorSuffix = "_metadata.json"
	clipExtension    = ".mp4"
	videoRoutePrefix = "/videos"
)

// clipEntry mirrors one entry of the clipper's descriptor file.
type clipEntry struct {
	TitleYouTubeShort    string `json:"video_title_for_youtube_short"`
	DescriptionTikTok    string `json:"video_description_for_tiktok"`
	DescriptionInstagram string `json:"video_description_for_instagram"`
}

// descriptor is the metadata artifact the clipper writes into the job's
// output directory on success. Clip i's media artifact is expected at
// {base}_clip_{i+1}.mp4 next to it.
type descriptor struct {
	Shorts     []clipEntry    `json:"shorts"`
	Transcript map[string]any `json:"transcript,omitempty"`
}

// readDescriptor locates and parses the job's descriptor file. It returns
// errNotReady when no descriptor exists yet or the first one (in lexical
// order) is still empty.
func readDescriptor(outputDir string) (*descriptor, string, error) {
	matches, err := filepath.Glob(filepath.Join(outputDir, "*"+descriptorSuffix))
	if err != nil {
		return nil, "", err
	}
	if len(matches) == 0 {
		return nil, "", errNotReady
	}
	sort.Strings(matches)
	path := matches[0]

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.Size() == 0 {
		return nil, "", errNotReady
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, "", fmt.Errorf("parse descriptor %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), descriptorSuffix)
	return &desc, base, nil
}

func clipFileName(base string, index int) string {
	return fmt.Sprintf("%s_clip_%d%s", base, index+1, clipExtension)
}

func clipURL(jobID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", videoRoutePrefix, jobID, fileName)
}

func buildClip(jobID uuid.UUID, entry clipEntry, fileName string) models.ClipResult {
	return models.ClipResult{
		VideoURL:             clipURL(jobID, fileName),
		Title:                entry.TitleYouTubeShort,
		DescriptionTikTok:    entry.DescriptionTikTok,
		DescriptionInstagram: entry.DescriptionInstagram,
		DescriptionYouTube:   entry.TitleYouTubeShort,
	}
}

// scanPartial reports the subset of clips whose media artifacts are already
// on disk. The clipper materializes artifacts with an atomic rename, so a
// present non-empty file is a finished clip. Ordering follows the
// descriptor. An errNotReady return means try again next tick.
func scanPartial(jobID uuid.UUID, outputDir string) (*models.JobResult, error) {
	desc, base, err := readDescriptor(outputDir)
	if err != nil {
		return nil, err
	}

	ready := make([]models.ClipResult, 0, len(desc.Shorts))
	for i, entry := range desc.Shorts {
		fileName := clipFileName(base, i)
		info, err := os.Stat(filepath.Join(outputDir, fileName))
		if err != nil || info.Size() == 0 {
			continue
		}
		ready = append(ready, buildClip(jobID, entry, fileName))
	}
	return &models.JobResult{Clips: ready}, nil
}

// buildFinalResult assembles the complete ordered clip list from the
// descriptor. Unlike scanPartial it performs no on-disk existence checks:
// after a clean exit the descriptor alone is authoritative.
func buildFinalResult(jobID uuid.UUID, outputDir string) (*models.JobResult, error) {
	desc, base, err := readDescriptor(outputDir)
	if err != nil {
		return nil, err
	}

	clips := make([]models.ClipResult, 0, len(desc.Shorts))
	for i, entry := range desc.Shorts {
		clips = append(clips, buildClip(jobID, entry, clipFileName(base, i)))
	}
	return &models.JobResult{Clips: clips, Transcript: desc.Transcript}, nil
}
