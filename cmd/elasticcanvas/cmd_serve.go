package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/contact"
	"github.com/ivlev/elasticcanvas/internal/hero"
	"github.com/ivlev/elasticcanvas/internal/i18n"
	"github.com/ivlev/elasticcanvas/internal/site"
	"github.com/ivlev/elasticcanvas/internal/source"
	"github.com/ivlev/elasticcanvas/internal/system"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site and preload the hero sequence",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if port != 0 {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	system.InitResourceLimits(logger)

	src, err := source.Open(cfg.Frames, cfg.Preload.FetchTimeout)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer src.Close()

	catalog, err := i18n.NewCatalog(cfg.Site.Locales, cfg.Site.DefaultLocale, cfg.Site.DictionariesDir, logger)
	if err != nil {
		return err
	}
	go func() {
		if err := catalog.Watch(ctx); err != nil {
			logger.Warn("dictionary watcher stopped", zap.Error(err))
		}
	}()

	store, err := contact.OpenStore(cfg.Contact.StorePath, logger)
	if err != nil {
		return fmt.Errorf("open contact store: %w", err)
	}
	defer store.Close()

	h := hero.New(src, hero.OptionsFromConfig(cfg), logger)
	defer h.Close()
	if err := h.Start(ctx); err != nil {
		return err
	}

	logger.Info("elasticcanvas starting",
		zap.String("build", cfg.BuildVersion),
		zap.String("frames", cfg.Frames.Source),
		zap.Int("frame_count", src.FrameCount()),
		zap.Strings("locales", cfg.Site.Locales))

	srv := site.New(site.Deps{
		Config:  cfg,
		Hero:    h,
		Catalog: catalog,
		Contact: contact.NewService(store, logger),
		Pool:    system.NewImagePool(),
		Logger:  logger,
	})
	return srv.Start(ctx)
}
