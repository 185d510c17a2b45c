package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/elasticcanvas/internal/engine"
	"github.com/ivlev/elasticcanvas/internal/preload"
	"github.com/ivlev/elasticcanvas/internal/source"
	"github.com/ivlev/elasticcanvas/internal/system"
	"github.com/ivlev/elasticcanvas/internal/video"
)

var (
	previewOutput  string
	previewSteps   int
	previewQuality int
	previewStats   bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Encode a scroll through the hero section into an MP4",
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "Output video (overrides preview.output)")
	previewCmd.Flags().IntVar(&previewSteps, "steps", 0, "Scroll positions to sample (overrides preview.steps)")
	previewCmd.Flags().IntVarP(&previewQuality, "quality", "q", 0, "Encoder quality (0 - auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	previewCmd.Flags().BoolVar(&previewStats, "stats", false, "Append a summary line to benchmark.log")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if previewOutput != "" {
		cfg.Preview.Output = previewOutput
	}
	if previewSteps > 0 {
		cfg.Preview.Steps = previewSteps
	}
	if previewQuality > 0 {
		cfg.Preview.Quality = previewQuality
	}

	system.InitResourceLimits(logger)

	src, err := source.Open(cfg.Frames, cfg.Preload.FetchTimeout)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer src.Close()

	res, err := preload.New(src, preload.Options{
		Threshold:  cfg.Preload.Threshold,
		RetryDelay: cfg.Preload.RetryDelay,
		MaxRetries: cfg.Preload.MaxRetries,
	}, logger).Load(ctx)
	if err != nil {
		return err
	}

	project := engine.NewPreviewProject(cfg, res.Frames, &video.FFmpegEncoder{}, logger)
	project.Out = cmd.OutOrStdout()
	report, err := project.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.String())
	fmt.Fprintf(cmd.OutOrStdout(), "[+++] Success! Preview: %s\n", report.Output)

	if previewStats {
		if err := engine.AppendBenchmark("benchmark.log", cfg.BuildVersion, len(res.Frames), report); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "[!] Could not write benchmark.log: %v\n", err)
		}
	}
	return nil
}
