package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all site configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Site    SiteConfig    `yaml:"site"`
	Frames  FramesConfig  `yaml:"frames"`
	Preload PreloadConfig `yaml:"preload"`
	Hero    HeroConfig    `yaml:"hero"`
	Contact ContactConfig `yaml:"contact"`
	Preview PreviewConfig `yaml:"preview"`
	Logging LoggingConfig `yaml:"logging"`

	BuildVersion string `yaml:"-"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	PublicURL       string        `yaml:"public_url"` // used for QR codes and absolute links
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SiteConfig struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	DefaultLocale   string   `yaml:"default_locale"`
	Locales         []string `yaml:"locales"`
	DictionariesDir string   `yaml:"dictionaries_dir"` // optional override, watched for changes
	FramesDir       string   `yaml:"frames_dir"`       // served under /frames/ when set
}

// FramesConfig describes where the cinematic sequence comes from.
type FramesConfig struct {
	Source   string `yaml:"source"`   // http, dir, pdf, video
	BaseURL  string `yaml:"base_url"` // http only
	Template string `yaml:"template"` // 1-indexed, e.g. /frames/%03d.png
	Path     string `yaml:"path"`     // dir, pdf or video file
	Count    int    `yaml:"count"`
	DPI      int    `yaml:"dpi"` // pdf only
}

type PreloadConfig struct {
	Threshold    float64       `yaml:"threshold"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxRetries   int           `yaml:"max_retries"`
	MinDisplay   time.Duration `yaml:"min_display"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type HeroConfig struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	ScrollDistance     float64 `yaml:"scroll_distance"`
	FadeEnd            float64 `yaml:"fade_end"`
	SmallViewportWidth int     `yaml:"small_viewport_width"`
	JPEGQuality        int     `yaml:"jpeg_quality"`
}

type ContactConfig struct {
	StorePath string `yaml:"store_path"` // empty: inquiries are only logged
}

// PreviewConfig drives the offline scroll sweep that is encoded to video.
type PreviewConfig struct {
	Output       string  `yaml:"output"`
	Steps        int     `yaml:"steps"`
	FPS          int     `yaml:"fps"`
	Quality      int     `yaml:"quality"`
	VideoEncoder string  `yaml:"video_encoder"`
	Overscroll   float64 `yaml:"overscroll"` // fraction of the range swept before and after the pin
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration the site ships with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9002,
			PublicURL:       "http://localhost:9002",
			ShutdownTimeout: 10 * time.Second,
		},
		Site: SiteConfig{
			Name:          "Elastic Canvas",
			Description:   "Customized rubber keychains and patches.",
			DefaultLocale: "en",
			Locales:       []string{"en", "ar"},
		},
		Frames: FramesConfig{
			Source:   "http",
			BaseURL:  "http://localhost:9002",
			Template: "/frames/%03d.png",
			Count:    100,
			DPI:      150,
		},
		Preload: PreloadConfig{
			Threshold:    0.8,
			RetryDelay:   time.Second,
			MaxRetries:   5,
			MinDisplay:   3 * time.Second,
			FetchTimeout: 15 * time.Second,
		},
		Hero: HeroConfig{
			Width:              1920,
			Height:             1080,
			ScrollDistance:     2000,
			FadeEnd:            0.5,
			SmallViewportWidth: 768,
			JPEGQuality:        82,
		},
		Preview: PreviewConfig{
			Output:     "output/hero_preview.mp4",
			Steps:      240,
			FPS:        30,
			Overscroll: 0.1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the preloader or player cannot work with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Frames.Count < 1 {
		return fmt.Errorf("frames.count must be at least 1, got %d", c.Frames.Count)
	}
	switch c.Frames.Source {
	case "http":
		if c.Frames.Template == "" {
			return fmt.Errorf("frames.template is required for the http source")
		}
	case "dir", "pdf", "video":
		if c.Frames.Path == "" {
			return fmt.Errorf("frames.path is required for the %s source", c.Frames.Source)
		}
	default:
		return fmt.Errorf("unknown frames.source %q (want http, dir, pdf or video)", c.Frames.Source)
	}
	if c.Preload.Threshold <= 0 || c.Preload.Threshold > 1 {
		return fmt.Errorf("preload.threshold must be in (0, 1], got %.2f", c.Preload.Threshold)
	}
	if c.Preload.MaxRetries < 0 {
		return fmt.Errorf("preload.max_retries cannot be negative")
	}
	if c.Hero.Width < 1 || c.Hero.Height < 1 {
		return fmt.Errorf("hero surface must be at least 1x1, got %dx%d", c.Hero.Width, c.Hero.Height)
	}
	if c.Hero.ScrollDistance <= 0 {
		return fmt.Errorf("hero.scroll_distance must be positive")
	}
	if c.Hero.FadeEnd <= 0 || c.Hero.FadeEnd > 1 {
		return fmt.Errorf("hero.fade_end must be in (0, 1], got %.2f", c.Hero.FadeEnd)
	}
	if len(c.Site.Locales) == 0 {
		return fmt.Errorf("site.locales cannot be empty")
	}
	found := false
	for _, l := range c.Site.Locales {
		if l == c.Site.DefaultLocale {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("site.default_locale %q is not in site.locales", c.Site.DefaultLocale)
	}
	return nil
}
