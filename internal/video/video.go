package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Params describe one encoded clip of fixed-size RGBA frames.
type Params struct {
	Width, Height int
	FPS           int
	Output        string
	Encoder       string // libx264, h264_nvenc or h264_videotoolbox
	Quality       int
}

// FrameWriter receives the frames of one clip in order.
type FrameWriter interface {
	WriteFrame(img image.Image) error
	Close() error
}

type VideoEncoder interface {
	Begin(ctx context.Context, params Params) (FrameWriter, error)
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg process.
type FFmpegEncoder struct{}

func (e *FFmpegEncoder) Begin(ctx context.Context, params Params) (FrameWriter, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", params.Width, params.Height)
	}
	if dir := filepath.Dir(params.Output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", buildFFmpegArgs(params)...)
	s := &ffmpegSession{cmd: cmd, width: params.Width, height: params.Height}
	cmd.Stdout = &s.log
	cmd.Stderr = &s.log

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	s.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return s, nil
}

func buildFFmpegArgs(params Params) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", fmt.Sprintf("%d", params.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", params.Encoder,
	}

	switch params.Encoder {
	case "h264_videotoolbox":
		bitrate := params.Quality * 100 // kbit/s, 75 -> 7.5 Mbit/s
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", params.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", params.Quality), "-preset", "medium")
	}

	args = append(args, "-movflags", "+faststart", params.Output)
	return args
}

type ffmpegSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	log    bytes.Buffer
	width  int
	height int
	frames int
	closed bool
}

func (s *ffmpegSession) WriteFrame(img image.Image) error {
	if img.Bounds().Dx() != s.width || img.Bounds().Dy() != s.height {
		return fmt.Errorf("frame %d is %v, want %dx%d", s.frames, img.Bounds().Size(), s.width, s.height)
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	s.frames++
	return nil
}

// Close finishes the stream and waits for ffmpeg to exit.
func (s *ffmpegSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %v, output: %s", err, s.log.String())
	}
	return nil
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
