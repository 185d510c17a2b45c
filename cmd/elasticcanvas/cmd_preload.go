package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/elasticcanvas/internal/preload"
	"github.com/ivlev/elasticcanvas/internal/source"
	"github.com/ivlev/elasticcanvas/internal/system"
)

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Load the hero sequence once and report how much of it resolved",
	Long: `Runs the same preload cycle the server runs at startup against the
configured frame source. Exits non-zero when the ready threshold is never met.`,
	RunE: runPreload,
}

func runPreload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	system.InitResourceLimits(logger)

	src, err := source.Open(cfg.Frames, cfg.Preload.FetchTimeout)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer src.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "--- [PRELOAD] ---")
	fmt.Fprintf(out, "[*] Source: %s | Frames: %d | Threshold: %.0f%%\n", cfg.Frames.Source, src.FrameCount(), cfg.Preload.Threshold*100)

	start := time.Now()
	p := preload.New(src, preload.Options{
		Threshold:  cfg.Preload.Threshold,
		RetryDelay: cfg.Preload.RetryDelay,
		MaxRetries: cfg.Preload.MaxRetries,
		OnProgress: func(pr preload.Progress) {
			fmt.Fprintf(out, "[>] Ready: %d/%d (%d%%) %s\n", pr.Loaded, pr.Total, pr.Percent, pr.Status)
		},
		OnRetry: func(attempt int, last preload.Progress) {
			fmt.Fprintf(out, "[!] Attempt %d loaded %d/%d, retrying in %s\n", attempt, last.Loaded, last.Total, cfg.Preload.RetryDelay)
		},
	}, logger)

	res, err := p.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[+++] Loaded %d/%d frames (%d failed) in %d attempt(s), %.2fs\n",
		res.Loaded, len(res.Frames), res.Failed, res.Attempts, time.Since(start).Seconds())
	if first, ok := res.First(); ok {
		fmt.Fprintf(out, "[*] First frame: %s\n", first.URL)
	}
	return nil
}
