// Package display opens the SDL2 window and draws the character slot with
// OpenGL 4.1.
package display

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"
)

func init() {
	// SDL and GL both want the main thread.
	runtime.LockOSThread()
}

// WindowConfig describes the window to open.
type WindowConfig struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	VSync      bool
}

// 4.1 core is the newest profile macOS offers.
var contextAttributes = []struct {
	attr  sdl.GLattr
	value int
}{
	{sdl.GL_CONTEXT_MAJOR_VERSION, 4},
	{sdl.GL_CONTEXT_MINOR_VERSION, 1},
	{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE},
	{sdl.GL_DOUBLEBUFFER, 1},
	{sdl.GL_DEPTH_SIZE, 24},
}

// Window is an SDL2 window with a current GL context.
type Window struct {
	handle *sdl.Window
	ctx    sdl.GLContext
	log    *zap.Logger
}

// NewWindow opens the window, makes its GL context current and loads the
// GL entry points. On failure everything created so far is torn down.
func NewWindow(cfg WindowConfig, log *zap.Logger) (_ *Window, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("initializing SDL: %w", err)
	}
	w := &Window{log: log}
	defer func() {
		if err != nil {
			w.Close()
		}
	}()

	var attrErrs []error
	for _, a := range contextAttributes {
		if e := sdl.GLSetAttribute(a.attr, a.value); e != nil {
			attrErrs = append(attrErrs, e)
		}
	}
	if err := errors.Join(attrErrs...); err != nil {
		return nil, fmt.Errorf("setting GL attributes: %w", err)
	}

	flags := uint32(sdl.WINDOW_OPENGL | sdl.WINDOW_RESIZABLE | sdl.WINDOW_ALLOW_HIGHDPI)
	if cfg.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}
	w.handle, err = sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width), int32(cfg.Height), flags)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}
	if w.ctx, err = w.handle.GLCreateContext(); err != nil {
		return nil, fmt.Errorf("creating GL context: %w", err)
	}
	if err = gl.Init(); err != nil {
		return nil, fmt.Errorf("loading GL: %w", err)
	}

	w.setVSync(cfg.VSync)
	log.Info("window open",
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Bool("fullscreen", cfg.Fullscreen),
		zap.String("gl_version", gl.GoStr(gl.GetString(gl.VERSION))))
	return w, nil
}

func (w *Window) setVSync(on bool) {
	interval := 0
	if on {
		interval = 1
	}
	if err := sdl.GLSetSwapInterval(interval); err != nil {
		w.log.Warn("swap interval not applied", zap.Int("interval", interval), zap.Error(err))
	}
}

// Close destroys the context and window and shuts SDL down.
func (w *Window) Close() {
	if w.ctx != nil {
		sdl.GLDeleteContext(w.ctx)
		w.ctx = nil
	}
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	sdl.Quit()
	w.log.Debug("window closed")
}

// SwapBuffers presents the frame.
func (w *Window) SwapBuffers() { w.handle.GLSwap() }

// DrawableSize returns the framebuffer size in pixels.
func (w *Window) DrawableSize() (int, int) {
	width, height := w.handle.GLGetDrawableSize()
	return int(width), int(height)
}

// SetTitle replaces the title bar text.
func (w *Window) SetTitle(title string) { w.handle.SetTitle(title) }
