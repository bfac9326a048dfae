package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagModel      = flag.String("model", "", "Model source to display (path, grf:// or http URL)")
	flagTexture    = flag.String("texture", "", "Texture source for -model")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagHeadless   = flag.Bool("headless", false, "Run without a window")
	flagFrames     = flag.Int("frames", 0, "Frames to run in headless mode")
	flagWatch      = flag.Bool("watch", false, "Reload local models when they change on disk")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagModel != "" {
		cfg.Viewer.Models = append([]string{*flagModel}, cfg.Viewer.Models...)
		cfg.Viewer.Textures = append([]string{*flagTexture}, padTextures(cfg.Viewer)...)
	}
	if *flagWindowed {
		cfg.Window.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Window.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
	if *flagHeadless {
		cfg.Viewer.Headless = true
	}
	if *flagFrames > 0 {
		cfg.Viewer.Frames = *flagFrames
	}
	if *flagWatch {
		cfg.Viewer.Watch = true
	}
}

// padTextures returns the texture list extended to the length of the
// model list it shifts along with.
func padTextures(v ViewerConfig) []string {
	out := make([]string, len(v.Models)-1)
	copy(out, v.Textures)
	return out
}
