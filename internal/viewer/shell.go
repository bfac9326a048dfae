// Package viewer is the shell around the character slot: it turns user
// selections and file changes into load requests and drives the slot once
// per frame. Window and GPU specifics live in package display.
package viewer

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/charview/internal/assets"
	"github.com/Faultbox/charview/internal/config"
	"github.com/Faultbox/charview/internal/loader"
	"github.com/Faultbox/charview/internal/scene"
	"github.com/Faultbox/charview/internal/transition"
	"github.com/Faultbox/charview/internal/watch"
)

// Action is a user command.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionNext
	ActionPrev
	ActionReload
	ActionOpen
)

func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionNext:
		return "next"
	case ActionPrev:
		return "prev"
	case ActionReload:
		return "reload"
	case ActionOpen:
		return "open"
	default:
		return "none"
	}
}

// Slot is the crossfading model slot. *transition.Controller implements it.
type Slot interface {
	Request(model, texture string) loader.Request
	Tick(dt float32)
	Root() *scene.Node
	Phase() transition.Phase
	Close()
}

// Options holds optional collaborators.
type Options struct {
	// Watcher, when set, triggers reloads of local selections.
	Watcher *watch.Watcher
	// LocalPath maps a local source to a file path. Defaults to the source itself.
	LocalPath func(source string) string
}

// Shell owns the selection state.
type Shell struct {
	cfg     config.ViewerConfig
	slot    Slot
	watcher *watch.Watcher
	local   func(string) string
	log     *zap.Logger

	Camera *OrbitCamera

	index int
	phase transition.Phase
	quit  bool
	draws []DrawItem
}

// NewShell creates a shell over slot.
func NewShell(cfg config.ViewerConfig, slot Slot, opts Options, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	local := opts.LocalPath
	if local == nil {
		local = func(s string) string { return s }
	}
	return &Shell{
		cfg:     cfg,
		slot:    slot,
		watcher: opts.Watcher,
		local:   local,
		log:     log,
		Camera:  NewOrbitCamera(cfg.CanonicalSize),
	}
}

// Start requests the first selection.
func (s *Shell) Start() {
	if len(s.cfg.Models) == 0 {
		s.log.Warn("no models configured; pass -model or set viewer.models")
		return
	}
	s.selectIndex(0)
}

// Selection returns the model and texture currently selected.
func (s *Shell) Selection() (model, texture string) {
	return s.cfg.Selection(s.index)
}

// Index returns the selection index.
func (s *Shell) Index() int {
	return s.index
}

// Handle applies a user action.
func (s *Shell) Handle(a Action) {
	switch a {
	case ActionQuit:
		s.quit = true
	case ActionNext:
		s.selectIndex(s.index + 1)
	case ActionPrev:
		s.selectIndex(s.index - 1)
	case ActionReload:
		s.request("reload")
	case ActionOpen:
		// Needs a native dialog; handled by the display layer.
	}
}

// Open adds a model to the end of the selection list and selects it.
func (s *Shell) Open(model, texture string) {
	if model == "" {
		return
	}
	models := make([]string, len(s.cfg.Models), len(s.cfg.Models)+1)
	copy(models, s.cfg.Models)
	textures := make([]string, len(s.cfg.Models), len(s.cfg.Models)+1)
	copy(textures, s.cfg.Textures)
	s.cfg.Models = append(models, model)
	s.cfg.Textures = append(textures, texture)
	s.selectIndex(len(s.cfg.Models) - 1)
}

// Quit reports whether the user asked to quit.
func (s *Shell) Quit() bool {
	return s.quit
}

func (s *Shell) selectIndex(i int) {
	if len(s.cfg.Models) == 0 {
		return
	}
	n := len(s.cfg.Models)
	s.index = ((i % n) + n) % n
	s.request("select")
	s.watchSelection()
}

func (s *Shell) request(reason string) {
	model, texture := s.Selection()
	if model == "" {
		return
	}
	req := s.slot.Request(model, texture)
	s.log.Info("requesting model",
		zap.String("reason", reason),
		zap.Int("index", s.index),
		zap.String("model", model),
		zap.String("texture", texture),
		zap.Uint64("generation", req.Generation))
}

func (s *Shell) watchSelection() {
	if s.watcher == nil {
		return
	}
	s.watcher.Unwatch()
	for _, p := range s.localPaths() {
		if err := s.watcher.Watch(p); err != nil {
			s.log.Warn("cannot watch file", zap.String("path", p), zap.Error(err))
		}
	}
}

// localPaths returns the absolute paths of the selection's local sources.
func (s *Shell) localPaths() []string {
	model, texture := s.Selection()
	var out []string
	for _, src := range []string{model, texture} {
		if src == "" || !assets.IsLocal(src) {
			continue
		}
		p, err := filepath.Abs(s.local(src))
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Frame drains pending file changes, then advances the slot by dt seconds.
func (s *Shell) Frame(dt float32) {
	s.drainWatcher()
	s.slot.Tick(dt)
	s.Camera.Update(dt)

	if p := s.slot.Phase(); p != s.phase {
		s.log.Debug("slot phase changed",
			zap.Stringer("from", s.phase),
			zap.Stringer("to", p))
		if p == transition.PhaseSteady {
			s.Camera.Frame(s.slot.Root().Bounds())
		}
		s.phase = p
	}
}

func (s *Shell) drainWatcher() {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-s.watcher.Events:
			if !ok {
				s.watcher = nil
				return
			}
			s.fileChanged(path)
		case err, ok := <-s.watcher.Errors:
			if ok {
				s.log.Warn("file watcher error", zap.Error(err))
			}
		default:
			return
		}
	}
}

func (s *Shell) fileChanged(path string) {
	for _, p := range s.localPaths() {
		if p == path {
			s.log.Info("selected file changed", zap.String("path", path))
			s.request("file changed")
			return
		}
	}
}

// Draws returns the draw list for the slot's current contents.
// The slice is reused by the next call.
func (s *Shell) Draws() []DrawItem {
	s.draws = CollectDraws(s.slot.Root(), s.draws[:0])
	return s.draws
}

// RunHeadless drives the slot for frames fixed steps of dt seconds, pacing
// each step in real time so background loads can land.
func (s *Shell) RunHeadless(ctx context.Context, frames int, dt float32) error {
	if dt <= 0 {
		dt = 1.0 / 60
	}
	s.Start()
	ticker := time.NewTicker(time.Duration(float64(dt) * float64(time.Second)))
	defer ticker.Stop()

	for i := 0; i < frames && !s.quit; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s.Frame(dt)
	}
	s.log.Info("headless run finished",
		zap.Int("frames", frames),
		zap.Stringer("phase", s.slot.Phase()))
	return nil
}

// Close releases the slot. The watcher is owned by the caller.
func (s *Shell) Close() {
	s.slot.Close()
}
