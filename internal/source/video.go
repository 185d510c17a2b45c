package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"

	"github.com/ivlev/elasticcanvas/internal/system"
)

// VideoSource samples count evenly spaced stills from a single seekable
// video, so the video variant plays through the same frame cursor as an
// image sequence.
type VideoSource struct {
	path     string
	count    int
	duration float64
}

func NewVideoSource(path string, count int) (*VideoSource, error) {
	if count < 1 {
		return nil, fmt.Errorf("frame count must be at least 1, got %d", count)
	}
	duration, err := system.ProbeDuration(context.Background(), path)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, fmt.Errorf("video %s has no duration", path)
	}
	return &VideoSource{path: path, count: count, duration: duration}, nil
}

func (v *VideoSource) FrameCount() int {
	return v.count
}

func (v *VideoSource) Duration() float64 {
	return v.duration
}

func (v *VideoSource) Describe(index int) string {
	return fmt.Sprintf("%s@%.3fs", v.path, v.timeAt(index))
}

// timeAt is the playback time of frame index: progress * duration.
func (v *VideoSource) timeAt(index int) float64 {
	if v.count == 1 {
		return 0
	}
	t := float64(index) / float64(v.count-1) * v.duration
	// seeking exactly to the end yields no frame
	if t >= v.duration {
		t = v.duration - 0.001
	}
	return t
}

func (v *VideoSource) Fetch(ctx context.Context, index int) (image.Image, error) {
	args := extractArgs(v.path, v.timeAt(index))
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg extract %s: %w: %s", v.Describe(index), err, stderr.String())
	}

	img, _, err := image.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", v.Describe(index), err)
	}
	return img, nil
}

func (v *VideoSource) Close() error {
	return nil
}

func extractArgs(path string, at float64) []string {
	return []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%f", at),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	}
}
