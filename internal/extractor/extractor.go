// Package extractor samples key frames from a video file with ffmpeg.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"reelocator/internal/models"
)

// Extractor shells out to ffmpeg/ffprobe. Frames land under
// outputDir/<videoName>/ and extraction is skipped when frames from an
// earlier run are already there.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractKeyFrames samples up to maxFrames evenly spaced frames from the
// video. It fails when the video is missing, unreadable, or yields zero
// usable frames.
func (e *Extractor) ExtractKeyFrames(ctx context.Context, videoPath, outputDir string, maxFrames int) (models.FrameSet, error) {
	if maxFrames < 1 {
		maxFrames = 8
	}

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return models.FrameSet{}, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	// Frames from an earlier run are reused as-is.
	if paths, err := listFrames(frameDirPath); err == nil && len(paths) > 0 {
		e.logger.Info("frames already exist, skipping extraction",
			"dir", frameDirPath,
			"frames", len(paths),
		)
		return models.FrameSet{VideoName: videoName, Paths: paths}, nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return models.FrameSet{}, fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	duration, err := probeDuration(ctx, videoPath)
	if err != nil {
		return models.FrameSet{}, err
	}

	fps := SampleRate(duration, maxFrames)
	e.logger.Info("extracting frames",
		"video", videoPath,
		"duration_sec", duration,
		"max_frames", maxFrames,
	)

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-frames:v", strconv.Itoa(maxFrames),
		filepath.Join(frameDirPath, "frame_%03d.jpg"),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return models.FrameSet{}, fmt.Errorf("ffmpeg failed: %w\noutput: %s", err, string(output))
	}

	paths, err := listFrames(frameDirPath)
	if err != nil {
		return models.FrameSet{}, fmt.Errorf("failed to read frames directory '%s': %w", frameDirPath, err)
	}
	if len(paths) == 0 {
		return models.FrameSet{}, fmt.Errorf("video exists but no frames were readable: '%s'", videoPath)
	}

	return models.FrameSet{VideoName: videoName, Paths: paths}, nil
}

// SampleRate returns the fps filter value that spreads maxFrames evenly
// across a clip of the given duration. Short or unprobeable clips fall
// back to one frame per second.
func SampleRate(durationSec float64, maxFrames int) float64 {
	if durationSec <= 0 {
		return 1
	}
	fps := float64(maxFrames) / durationSec
	if fps > 1 {
		// reels shorter than maxFrames seconds: sample at most 1/sec
		return 1
	}
	return fps
}

func probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("could not probe video '%s': %w", videoPath, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output for '%s': %w", videoPath, err)
	}
	return duration, nil
}

func listFrames(frameDirPath string) ([]string, error) {
	entries, err := os.ReadDir(frameDirPath)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".jpg") {
			paths = append(paths, filepath.Join(frameDirPath, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
