package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names a config file when -config is not given.
const EnvConfigPath = "CHARVIEW_CONFIG"

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the viewer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	v := c.Viewer
	if v.FadeDuration < 0 || v.FirstFadeDuration < 0 || v.MaxFrameDelta < 0 {
		errs = append(errs, errors.New("viewer durations must not be negative"))
	}
	if v.CanonicalSize < 0 {
		errs = append(errs, fmt.Errorf("viewer.canonical_size %v must not be negative", v.CanonicalSize))
	}
	if v.Headless && v.Frames <= 0 {
		errs = append(errs, errors.New("headless mode needs a positive frame count"))
	}
	if len(v.Textures) > len(v.Models) {
		errs = append(errs, fmt.Errorf("%d textures for %d models", len(v.Textures), len(v.Models)))
	}
	if c.Assets.HTTPTimeout < 0 {
		errs = append(errs, errors.New("assets.http_timeout must not be negative"))
	}
	if c.Assets.CacheMB < 0 {
		errs = append(errs, errors.New("assets.cache_mb must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// findConfigFile returns the first existing config among the working
// directory and ConfigDir, or "" when there is none.
func findConfigFile() string {
	for _, path := range []string{"./config.yaml", filepath.Join(ConfigDir(), "config.yaml")} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user charview config directory.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		if home, herr := os.UserHomeDir(); herr == nil {
			base = filepath.Join(home, ".config")
		} else {
			base = os.TempDir()
		}
	}
	return filepath.Join(base, "charview")
}

// loadFromFile merges a YAML file over the values already in cfg.
// Unknown keys are rejected so typos do not pass silently.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
