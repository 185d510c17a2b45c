// Command elasticcanvas serves the Elastic Canvas marketing site and the
// tooling around its scroll-driven hero sequence.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/config"
	"github.com/ivlev/elasticcanvas/internal/logging"
)

// BuildVersion is set at link time with -ldflags "-X main.BuildVersion=...".
var BuildVersion = "dev"

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "elasticcanvas",
	Short: "Elastic Canvas site server and hero sequence tools",
	Long: `elasticcanvas serves the bilingual (en/ar) Elastic Canvas site.

The hero section is a pre-rendered frame sequence that plays as the visitor
scrolls. The preload and preview commands exercise the same sequence offline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		cfg.BuildVersion = BuildVersion

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Development)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config (default: built-in settings)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(preloadCmd)
	rootCmd.AddCommand(previewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
