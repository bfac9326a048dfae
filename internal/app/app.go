// Package app wires configuration, asset sources, the loader and the
// transition slot into a running viewer.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/charview/internal/assets"
	"github.com/Faultbox/charview/internal/config"
	"github.com/Faultbox/charview/internal/display"
	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/loader"
	"github.com/Faultbox/charview/internal/logger"
	"github.com/Faultbox/charview/internal/transition"
	"github.com/Faultbox/charview/internal/viewer"
	"github.com/Faultbox/charview/internal/watch"
)

// headlessDelta is the fixed step used without a window.
const headlessDelta = 1.0 / 60

// App is the viewer instance.
type App struct {
	cfg *config.Config
	log *zap.Logger

	assets  *assets.Manager
	loader  *loader.Loader
	slot    *transition.Controller
	watcher *watch.Watcher
	shell   *viewer.Shell

	// windowed only
	window   *display.Window
	gl       *gpu.GL
	renderer *display.Renderer
	input    *display.Input
	picker   *display.Picker

	// headless only
	memory *gpu.Memory
}

// New creates the viewer. Windowed mode opens the window first, since the
// loader uploads to its GL context.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, log: logger.Named("app")}

	a.log.Info("initializing viewer",
		zap.Bool("headless", cfg.Viewer.Headless),
		zap.Int("models", len(cfg.Viewer.Models)),
		zap.Bool("watch", cfg.Viewer.Watch))

	var dev gpu.Device
	if cfg.Viewer.Headless {
		a.memory = gpu.NewMemory()
		dev = a.memory
	} else {
		var err error
		a.window, err = display.NewWindow(display.WindowConfig{
			Title:      cfg.Window.Title,
			Width:      cfg.Window.Width,
			Height:     cfg.Window.Height,
			Fullscreen: cfg.Window.Fullscreen,
			VSync:      cfg.Window.VSync,
		}, logger.Named("window"))
		if err != nil {
			return nil, fmt.Errorf("failed to create window: %w", err)
		}
		a.gl = gpu.NewGL()
		a.renderer, err = display.NewRenderer(a.gl)
		if err != nil {
			a.window.Close()
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		a.input = display.NewInput()
		a.picker = display.NewPicker(logger.Named("picker"))
		dev = a.gl
	}

	a.assets = assets.NewManager(assets.Options{
		RootDir:     cfg.Assets.RootDir,
		HTTPTimeout: cfg.Assets.HTTPTimeout,
	}, assets.NewBoundedCache(cfg.Assets.CacheMB<<20), logger.Named("assets"))
	for _, p := range cfg.Assets.GRFPaths {
		if err := a.assets.AddArchive(p); err != nil {
			a.log.Warn("skipping archive", zap.String("path", p), zap.Error(err))
		}
	}

	a.loader = loader.New(a.assets, dev, loader.Options{
		CanonicalSize: cfg.Viewer.CanonicalSize,
		MagentaKey:    cfg.Viewer.MagentaKey,
	}, logger.Named("loader"))

	a.slot = transition.New(transition.Config{
		Fade:          seconds(cfg.Viewer.FadeDuration),
		FirstFade:     seconds(cfg.Viewer.FirstFadeDuration),
		MaxFrameDelta: seconds(cfg.Viewer.MaxFrameDelta),
	}, a.loader, dev, logger.Named("transition"))

	opts := viewer.Options{LocalPath: a.assets.LocalPath}
	if cfg.Viewer.Watch {
		w, err := watch.New(watch.DefaultDebounce)
		if err != nil {
			a.log.Warn("file watching disabled", zap.Error(err))
		} else {
			a.watcher = w
			opts.Watcher = w
		}
	}
	a.shell = viewer.NewShell(cfg.Viewer, a.slot, opts, logger.Named("viewer"))

	return a, nil
}

func seconds(d time.Duration) float32 {
	return float32(d.Seconds())
}

// Run drives the viewer until the user quits, ctx is done, or the
// headless frame budget is spent.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Viewer.Headless {
		err := a.shell.RunHeadless(ctx, a.cfg.Viewer.Frames, headlessDelta)
		a.log.Info("headless resources",
			zap.Int("live_meshes", a.memory.LiveMeshes()),
			zap.Int("live_textures", a.memory.LiveTextures()))
		return err
	}
	return a.runWindowed(ctx)
}

func (a *App) runWindowed(ctx context.Context) error {
	a.shell.Start()

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	a.log.Info("starting render loop")

	for !a.shell.Quit() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		a.input.Update()
		for _, act := range a.input.Actions() {
			if act == viewer.ActionOpen {
				a.picker.Pick()
				continue
			}
			a.shell.Handle(act)
		}
		if path, ok := a.picker.Picked(); ok {
			a.shell.Open(path, "")
		}
		a.input.Apply(a.shell.Camera)

		a.shell.Frame(dt)

		w, h := a.window.DrawableSize()
		a.renderer.Render(w, h, a.shell.Camera, a.shell.Draws())
		a.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			model, _ := a.shell.Selection()
			a.window.SetTitle(fmt.Sprintf("%s - %s (%d fps)", a.cfg.Window.Title, model, frameCount))
			a.log.Debug("fps", zap.Int("count", frameCount), zap.Float32("dt_ms", dt*1000))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

// Close releases everything in reverse order of creation.
func (a *App) Close() {
	a.log.Info("closing viewer")

	a.shell.Close()
	a.loader.Close()
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.assets.Close()

	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.gl != nil {
		a.gl.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}
