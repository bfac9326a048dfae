// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Assets  AssetsConfig  `yaml:"assets"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
}

// ViewerConfig holds model slot settings.
type ViewerConfig struct {
	FadeDuration      time.Duration `yaml:"fade_duration"`
	FirstFadeDuration time.Duration `yaml:"first_fade_duration"`
	MaxFrameDelta     time.Duration `yaml:"max_frame_delta"`
	CanonicalSize     float32       `yaml:"canonical_size"`
	MagentaKey        bool          `yaml:"magenta_key"`
	Watch             bool          `yaml:"watch"`
	Headless          bool          `yaml:"headless"`
	Frames            int           `yaml:"frames"`

	// Models lists the selectable model sources. Textures[i], when present
	// and non-empty, is the texture for Models[i].
	Models   []string `yaml:"models,omitempty"`
	Textures []string `yaml:"textures,omitempty"`
}

// Selection returns the model and texture at index i, wrapping around.
func (v ViewerConfig) Selection(i int) (model, texture string) {
	if len(v.Models) == 0 {
		return "", ""
	}
	i %= len(v.Models)
	if i < 0 {
		i += len(v.Models)
	}
	if i < len(v.Textures) {
		texture = v.Textures[i]
	}
	return v.Models[i], texture
}

// AssetsConfig holds asset source settings.
type AssetsConfig struct {
	GRFPaths    []string      `yaml:"grf_paths,omitempty"` // mounted in order, later wins
	RootDir     string        `yaml:"root_dir"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	CacheMB     int           `yaml:"cache_mb"` // 0 disables the limit
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:      "charview",
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Viewer: ViewerConfig{
			FadeDuration:      220 * time.Millisecond,
			FirstFadeDuration: 140 * time.Millisecond,
			MaxFrameDelta:     100 * time.Millisecond,
			CanonicalSize:     4,
			MagentaKey:        true,
			Frames:            120,
		},
		Assets: AssetsConfig{
			HTTPTimeout: 30 * time.Second,
			CacheMB:     256,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
