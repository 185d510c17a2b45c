package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/config"
	"github.com/ivlev/elasticcanvas/internal/logging"
	"github.com/ivlev/elasticcanvas/internal/player"
	"github.com/ivlev/elasticcanvas/internal/source"
	"github.com/ivlev/elasticcanvas/internal/system"
	"github.com/ivlev/elasticcanvas/internal/video"
)

// PreviewProject records a scroll through the hero section as a video clip.
// Every sweep step goes through the same Feed, Player and Surface the
// site uses, so the clip shows exactly what a visitor would see.
type PreviewProject struct {
	Config  *config.Config
	Frames  []source.Frame
	Encoder video.VideoEncoder
	Logger  *zap.Logger
	Out     io.Writer
}

func NewPreviewProject(cfg *config.Config, frames []source.Frame, ve video.VideoEncoder, logger *zap.Logger) *PreviewProject {
	return &PreviewProject{
		Config:  cfg,
		Frames:  frames,
		Encoder: ve,
		Logger:  logging.OrNop(logger),
		Out:     os.Stdout,
	}
}

// Report summarizes one preview run.
type Report struct {
	Output  string
	Steps   int
	Draws   int
	Skipped int
	Elapsed time.Duration
}

func (r Report) String() string {
	fps := 0.0
	if r.Elapsed > 0 {
		fps = float64(r.Steps) / r.Elapsed.Seconds()
	}
	return fmt.Sprintf(
		"--- [PREVIEW REPORT] ---\n"+
			"Output: %s\n"+
			"Steps: %d | Redraws: %d | Skipped: %d\n"+
			"Total Time: %.2fs | Effective FPS: %.2f\n"+
			"------------------------\n",
		r.Output, r.Steps, r.Draws, r.Skipped, r.Elapsed.Seconds(), fps,
	)
}

// SweepPositions spreads steps scroll offsets evenly from overscroll*distance
// above the section to overscroll*distance past its end.
func SweepPositions(steps int, distance, overscroll float64) []float64 {
	if steps < 1 {
		return nil
	}
	start := -overscroll * distance
	end := (1 + overscroll) * distance
	if steps == 1 {
		return []float64{start}
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = start + (end-start)*float64(i)/float64(steps-1)
	}
	return out
}

func (p *PreviewProject) Run(ctx context.Context) (Report, error) {
	startTime := time.Now()
	cfg := p.Config
	report := Report{Output: cfg.Preview.Output}

	positions := SweepPositions(cfg.Preview.Steps, cfg.Hero.ScrollDistance, cfg.Preview.Overscroll)
	if len(positions) == 0 {
		return report, fmt.Errorf("preview.steps must be at least 1")
	}

	surface := player.NewRasterSurface(cfg.Hero.Width, cfg.Hero.Height, nil)
	surface.UseHighQuality()

	opts := player.Options{
		ScrollDistance: cfg.Hero.ScrollDistance,
		FadeEnd:        cfg.Hero.FadeEnd,
		Logger:         p.Logger,
	}
	pl, err := player.New(p.Frames, surface, opts)
	if err != nil {
		return report, err
	}
	defer pl.Close()

	feed := player.NewFeed()
	if err := pl.Bind(feed); err != nil {
		return report, err
	}

	// an undecoded first frame would leave the opening steps black
	feed.Publish(positions[0])
	if pl.Cursor() < 0 {
		if _, ok := player.RenderAt(p.Frames, surface, opts, positions[0]); !ok {
			return report, fmt.Errorf("no decoded frames to preview")
		}
	}

	encoderName := cfg.Preview.VideoEncoder
	if encoderName == "" {
		encoderName = system.GetBestH264Encoder()
	}
	quality := cfg.Preview.Quality
	if quality == 0 {
		quality = system.DefaultQuality(encoderName)
	}

	fmt.Fprintln(p.Out, "--- [PROJECT: SCROLL PREVIEW] ---")
	fmt.Fprintf(p.Out, "[*] Frames: %d | Steps: %d\n", len(p.Frames), len(positions))
	fmt.Fprintf(p.Out, "[*] Resolution: %dx%d @ %d FPS | Encoder: %s\n", cfg.Hero.Width, cfg.Hero.Height, cfg.Preview.FPS, encoderName)
	fmt.Fprintln(p.Out, "-----------------------------")

	fw, err := p.Encoder.Begin(ctx, video.Params{
		Width:   cfg.Hero.Width,
		Height:  cfg.Hero.Height,
		FPS:     cfg.Preview.FPS,
		Output:  cfg.Preview.Output,
		Encoder: encoderName,
		Quality: quality,
	})
	if err != nil {
		return report, fmt.Errorf("start encoder: %w", err)
	}

	every := len(positions) / 10
	if every < 1 {
		every = 1
	}
	for i, y := range positions {
		if err := ctx.Err(); err != nil {
			fw.Close()
			return report, err
		}
		feed.Publish(y)
		if err := fw.WriteFrame(surface.Image()); err != nil {
			fw.Close()
			return report, fmt.Errorf("step %d: %w", i, err)
		}
		report.Steps++
		if (i+1)%every == 0 || i == len(positions)-1 {
			fmt.Fprintf(p.Out, "[>] Ready: %d/%d\n", i+1, len(positions))
		}
	}

	if err := fw.Close(); err != nil {
		return report, fmt.Errorf("finish encoder: %w", err)
	}

	report.Draws = surface.Draws()
	report.Skipped = pl.Skipped()
	report.Elapsed = time.Since(startTime)
	p.Logger.Info("preview written",
		zap.String("output", report.Output),
		zap.Int("steps", report.Steps),
		zap.Int("draws", report.Draws),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// AppendBenchmark appends a one-line summary of r to path.
func AppendBenchmark(path, build string, frames int, r Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] Build: %s | Output: %s | Frames: %d | Steps: %d | Redraws: %d | Total: %.2fs\n",
		time.Now().Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(r.Output),
		frames,
		r.Steps,
		r.Draws,
		r.Elapsed.Seconds(),
	)
	return err
}
