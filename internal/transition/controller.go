// Package transition crossfades the character slot between loaded models.
//
// A Controller holds at most two assets: the one on display and the one
// fading in. It is driven by Tick once per frame and must only be used
// from the render thread.
package transition

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/loader"
	"github.com/Faultbox/charview/internal/scene"
)

// Default timings, in seconds.
const (
	DefaultFade          = 0.22
	DefaultFirstFade     = 0.14
	DefaultMaxFrameDelta = 0.1
)

// progressEpsilon absorbs float drift when summing frame deltas.
const progressEpsilon = 1e-5

// Config holds the blend timings in seconds.
type Config struct {
	// Fade is used when an asset is already on display.
	Fade float32
	// FirstFade is used when the slot was empty.
	FirstFade float32
	// MaxFrameDelta caps the time a single Tick may advance.
	MaxFrameDelta float32
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		Fade:          DefaultFade,
		FirstFade:     DefaultFirstFade,
		MaxFrameDelta: DefaultMaxFrameDelta,
	}
}

// Source starts loads and reports their completion.
// *loader.Loader implements it.
type Source interface {
	Load(ctx context.Context, req loader.Request) *loader.Job
	Poll() []loader.Result
}

// Phase is the controller state.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseSteady
	PhaseBlending
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseSteady:
		return "steady"
	case PhaseBlending:
		return "blending"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Controller owns the slot's assets and the blend between them.
type Controller struct {
	cfg Config
	src Source
	dev gpu.Device
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	root       *scene.Node
	generation uint64
	job        *loader.Job

	current  *loader.Asset
	incoming *loader.Asset
	progress float32
	duration float32
}

// New creates an empty controller. Zero timings in cfg take their defaults.
func New(cfg Config, src Source, dev gpu.Device, log *zap.Logger) *Controller {
	def := DefaultConfig()
	if cfg.Fade <= 0 {
		cfg.Fade = def.Fade
	}
	if cfg.FirstFade <= 0 {
		cfg.FirstFade = def.FirstFade
	}
	if cfg.MaxFrameDelta <= 0 {
		cfg.MaxFrameDelta = def.MaxFrameDelta
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:    cfg,
		src:    src,
		dev:    dev,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		root:   scene.NewNode("slot"),
	}
}

// Request starts loading a model and optional texture ("" for none).
// Any load still in flight is superseded.
func (c *Controller) Request(model, texture string) loader.Request {
	c.generation++
	req := loader.Request{Model: model, Texture: texture, Generation: c.generation}
	if c.job != nil {
		c.job.Cancel()
	}
	c.job = c.src.Load(c.ctx, req)
	c.log.Debug("load requested",
		zap.String("model", model),
		zap.String("texture", texture),
		zap.Uint64("generation", req.Generation))
	return req
}

// Tick advances the controller by dt seconds. dt is clamped to
// [0, MaxFrameDelta]. Completed loads are promoted first, so a load that
// lands this frame already starts fading in.
func (c *Controller) Tick(dt float32) {
	dt = mgl32.Clamp(dt, 0, c.cfg.MaxFrameDelta)

	for _, r := range c.src.Poll() {
		c.receive(r)
	}

	if c.current != nil {
		c.current.Advance(dt)
	}
	if c.incoming != nil {
		c.incoming.Advance(dt)
		c.blend(dt)
	}
}

func (c *Controller) receive(r loader.Result) {
	if r.Request.Generation != c.generation {
		if r.Asset != nil {
			c.release(r.Asset, "stale")
		}
		return
	}
	c.job = nil

	if r.Err != nil {
		c.log.Error("model load failed",
			zap.Uint64("generation", r.Request.Generation),
			zap.Error(r.Err))
		return
	}

	if c.incoming != nil {
		c.release(c.incoming, "superseded")
	}
	c.incoming = r.Asset
	c.incoming.SetOpacity(0)
	c.progress = 0
	c.duration = c.cfg.FirstFade
	if c.current != nil {
		c.duration = c.cfg.Fade
	}
	c.root.Add(r.Asset.Node)

	c.log.Debug("blend started",
		zap.String("model", r.Request.Model),
		zap.Uint64("generation", r.Request.Generation),
		zap.Float32("duration", c.duration))
}

func (c *Controller) blend(dt float32) {
	c.progress = mgl32.Clamp(c.progress+dt/c.duration, 0, 1)
	if c.progress >= 1-progressEpsilon {
		c.progress = 1
	}

	eased := Smoothstep(c.progress)
	if c.current != nil {
		c.current.SetOpacity(1 - eased)
	}
	c.incoming.SetOpacity(eased)

	if c.progress == 1 {
		c.finalize()
	}
}

func (c *Controller) finalize() {
	old := c.current
	if old != nil {
		c.release(old, "replaced")
	}
	c.current, c.incoming = c.incoming, nil
	c.current.SetOpacity(1)

	c.log.Info("model displayed",
		zap.String("model", c.current.Request.Model),
		zap.Uint64("generation", c.current.Request.Generation))
}

func (c *Controller) release(a *loader.Asset, reason string) {
	if err := a.Release(c.dev); err != nil {
		c.log.Error("releasing model",
			zap.String("model", a.Request.Model),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}
	c.log.Debug("model released",
		zap.String("model", a.Request.Model),
		zap.Uint64("generation", a.Request.Generation),
		zap.String("reason", reason))
}

// Root returns the node holding whatever the slot currently draws.
func (c *Controller) Root() *scene.Node {
	return c.root
}

// Phase reports the controller state.
func (c *Controller) Phase() Phase {
	switch {
	case c.incoming != nil:
		return PhaseBlending
	case c.current != nil:
		return PhaseSteady
	default:
		return PhaseEmpty
	}
}

// Current returns the asset on display, or nil.
func (c *Controller) Current() *loader.Asset {
	return c.current
}

// Incoming returns the asset fading in, or nil.
func (c *Controller) Incoming() *loader.Asset {
	return c.incoming
}

// Progress returns the linear blend progress in [0, 1].
// It is 1 when steady and 0 when empty.
func (c *Controller) Progress() float32 {
	switch c.Phase() {
	case PhaseSteady:
		return 1
	case PhaseBlending:
		return c.progress
	default:
		return 0
	}
}

// Duration returns the length of the running blend in seconds.
func (c *Controller) Duration() float32 {
	return c.duration
}

// Generation returns the generation of the latest request.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Close cancels any pending load and releases both assets.
func (c *Controller) Close() {
	c.cancel()
	if c.job != nil {
		c.job.Cancel()
		c.job = nil
	}
	if c.incoming != nil {
		c.release(c.incoming, "shutdown")
		c.incoming = nil
	}
	if c.current != nil {
		c.release(c.current, "shutdown")
		c.current = nil
	}
}

// Smoothstep eases p in [0, 1] as p²(3−2p).
func Smoothstep(p float32) float32 {
	p = mgl32.Clamp(p, 0, 1)
	return p * p * (3 - 2*p)
}
