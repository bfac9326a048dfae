// Package loader turns model and texture sources into renderable assets.
//
// Fetching, parsing and decoding run on background goroutines. Everything
// that touches the GPU or hands an asset over runs on the render thread
// inside Poll, so a Loader must only be used from that thread.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/charview/internal/anim"
	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/scene"
	"github.com/Faultbox/charview/internal/texture"
)

// DefaultCanonicalSize is the largest dimension of a normalized model.
const DefaultCanonicalSize = 4

// eventBuffer bounds the number of completions waiting for Poll.
const eventBuffer = 64

// Request identifies one load. Generation is assigned by the caller and
// increases with every request; it is the only staleness signal.
type Request struct {
	Model      string
	Texture    string // "" for none
	Generation uint64
}

// Asset is a loaded model ready for display. The holder owns Node and
// Mixer and must hand them to Release exactly once.
type Asset struct {
	Request Request
	Node    *scene.Node
	Mixer   *anim.Mixer // nil when the model has no clips

	opacity float32
}

// NewAsset wraps an already uploaded subtree. The asset starts transparent.
func NewAsset(req Request, node *scene.Node, mixer *anim.Mixer) *Asset {
	a := &Asset{Request: req, Node: node, Mixer: mixer}
	a.SetOpacity(0)
	return a
}

// Opacity returns the last opacity set on the asset.
func (a *Asset) Opacity() float32 {
	return a.opacity
}

// SetOpacity applies v to every surface of the asset.
func (a *Asset) SetOpacity(v float32) {
	a.opacity = mgl32.Clamp(v, 0, 1)
	scene.SetOpacity(a.Node, a.opacity)
}

// Advance steps the asset's animation by dt seconds.
func (a *Asset) Advance(dt float32) {
	a.Mixer.Advance(dt)
}

// Release stops the mixer and disposes the subtree.
func (a *Asset) Release(dev gpu.Device) error {
	a.Mixer.Stop()
	a.Mixer = nil
	return scene.Dispose(dev, a.Node)
}

// Result is a finished load. Exactly one of Asset and Err is set.
type Result struct {
	Request Request
	Asset   *Asset
	Err     error
}

// ErrorKind classifies an AssetLoadError.
type ErrorKind int

const (
	KindGeometry ErrorKind = iota
	KindTexture
)

func (k ErrorKind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindTexture:
		return "texture"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AssetLoadError reports a failed fetch, parse or upload.
type AssetLoadError struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load %s %q: %v", e.Kind, e.Source, e.Err)
}

func (e *AssetLoadError) Unwrap() error {
	return e.Err
}

// ErrNoGeometry is returned for models without a single triangle.
var ErrNoGeometry = errors.New("model has no geometry")

// Fetcher retrieves the bytes behind a source identifier.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Options configures a Loader.
type Options struct {
	// CanonicalSize is the largest dimension after normalization.
	CanonicalSize float32
	// MagentaKey makes magenta texels transparent.
	MagentaKey bool
}

// Job tracks one Load call.
type Job struct {
	req       Request
	cancelled atomic.Bool

	// Render thread only.
	node        *scene.Node
	clips       []anim.Clip
	geometryOK  bool
	textureDone bool
	img         *image.RGBA
	texErr      error
	done        bool
}

// NewJob creates a job for req that no loader is working on.
func NewJob(req Request) *Job {
	return &Job{req: req}
}

// Request returns the request the job was started for.
func (j *Job) Request() Request {
	return j.req
}

// Cancel marks the job superseded. Its work runs to completion but the
// result is disposed instead of delivered. Safe to call from any goroutine.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// event carries background work back to the render thread.
type event struct {
	job     *Job
	texture bool
	model   *decodedModel
	img     *image.RGBA
	err     error
}

// Loader runs loads and delivers their results through Poll.
type Loader struct {
	fetch Fetcher
	dev   gpu.Device
	opts  Options
	log   *zap.Logger

	events  chan event
	pending map[*Job]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a loader that fetches through f and uploads to dev.
func New(f Fetcher, dev gpu.Device, opts Options, log *zap.Logger) *Loader {
	if opts.CanonicalSize <= 0 {
		opts.CanonicalSize = DefaultCanonicalSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		fetch:   f,
		dev:     dev,
		opts:    opts,
		log:     log,
		events:  make(chan event, eventBuffer),
		pending: make(map[*Job]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load starts fetching req's model and, if set, its texture. ctx bounds
// the fetches only; use the returned Job to supersede the load.
func (l *Loader) Load(ctx context.Context, req Request) *Job {
	job := NewJob(req)
	l.pending[job] = struct{}{}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := l.fetchContext(ctx)
		defer cancel()
		m, err := l.loadGeometry(ctx, req.Model)
		l.send(event{job: job, model: m, err: err})
	}()

	if req.Texture == "" {
		job.textureDone = true
		return job
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := l.fetchContext(ctx)
		defer cancel()
		img, err := l.loadTexture(ctx, req.Texture)
		l.send(event{job: job, texture: true, img: img, err: err})
	}()
	return job
}

// fetchContext returns a context that also ends when the loader closes.
func (l *Loader) fetchContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(l.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (l *Loader) send(ev event) {
	select {
	case l.events <- ev:
	case <-l.ctx.Done():
	}
}

func (l *Loader) loadGeometry(ctx context.Context, source string) (*decodedModel, error) {
	data, err := l.fetch.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	m, err := decodeModel(source, data)
	if err != nil {
		return nil, err
	}
	Normalize(m.root, l.opts.CanonicalSize)
	return m, nil
}

func (l *Loader) loadTexture(ctx context.Context, source string) (*image.RGBA, error) {
	data, err := l.fetch.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	img, err := texture.Decode(data, source)
	if err != nil {
		return nil, err
	}
	return texture.Prepare(img, texture.Options{MagentaKey: l.opts.MagentaKey, FlipY: true}), nil
}

// InFlight returns the number of jobs that have not finished yet.
func (l *Loader) InFlight() int {
	return len(l.pending)
}

// Poll processes completed background work and returns the loads that
// finished. Cancelled jobs never produce a result. It never blocks.
func (l *Loader) Poll() []Result {
	var results []Result
	for {
		select {
		case ev := <-l.events:
			if r, ok := l.handle(ev); ok {
				results = append(results, r)
			}
			continue
		default:
		}
		break
	}
	l.sweep()
	return results
}

func (l *Loader) handle(ev event) (Result, bool) {
	job := ev.job
	if job.done {
		return Result{}, false
	}
	if ev.texture {
		job.textureDone = true
		job.img, job.texErr = ev.img, ev.err
	} else {
		if ev.err != nil {
			return l.fail(job, ev.err)
		}
		if job.Cancelled() {
			l.discard(job, ev.model.root)
			return Result{}, false
		}
		if err := scene.Upload(l.dev, ev.model.root); err != nil {
			l.discard(job, ev.model.root)
			return l.fail(job, err)
		}
		job.node = ev.model.root
		job.clips = ev.model.clips
		job.geometryOK = true
		scene.SetOpacity(job.node, 0)
	}

	if !job.geometryOK || !job.textureDone {
		return Result{}, false
	}
	return l.finish(job)
}

func (l *Loader) fail(job *Job, err error) (Result, bool) {
	job.done = true
	delete(l.pending, job)
	if job.Cancelled() {
		return Result{}, false
	}
	return Result{
		Request: job.req,
		Err:     &AssetLoadError{Kind: KindGeometry, Source: job.req.Model, Err: err},
	}, true
}

func (l *Loader) finish(job *Job) (Result, bool) {
	if job.Cancelled() {
		l.discard(job, job.node)
		return Result{}, false
	}
	job.done = true
	delete(l.pending, job)

	if job.img != nil {
		if err := l.bindTexture(job.node, job.img); err != nil {
			job.texErr = err
		}
		job.img = nil
	}
	if job.texErr != nil {
		l.log.Warn("texture unavailable, using default material",
			zap.String("model", job.req.Model),
			zap.Error(&AssetLoadError{Kind: KindTexture, Source: job.req.Texture, Err: job.texErr}))
	}

	var mixer *anim.Mixer
	if len(job.clips) > 0 {
		mixer = anim.NewMixer(job.clips)
		if err := mixer.Play(0); err != nil {
			l.log.Warn("animation not started", zap.String("model", job.req.Model), zap.Error(err))
		}
	}
	return Result{Request: job.req, Asset: NewAsset(job.req, job.node, mixer)}, true
}

func (l *Loader) bindTexture(root *scene.Node, img *image.RGBA) error {
	h, err := l.dev.UploadTexture(img, gpu.TextureOptions{WrapS: gpu.WrapRepeat, WrapT: gpu.WrapRepeat})
	if err != nil {
		return err
	}
	mat := scene.DefaultMaterial()
	mat.Texture = h
	mat.DoubleSided = true
	scene.BindMaterial(root, mat)
	return nil
}

// discard disposes a subtree the job built but may not deliver.
func (l *Loader) discard(job *Job, root *scene.Node) {
	job.done = true
	job.node = nil
	delete(l.pending, job)
	if root == nil {
		return
	}
	if err := scene.Dispose(l.dev, root); err != nil {
		l.log.Error("disposing discarded model", zap.String("model", job.req.Model), zap.Error(err))
	}
	l.log.Debug("discarded superseded load",
		zap.String("model", job.req.Model),
		zap.Uint64("generation", job.req.Generation))
}

// sweep releases subtrees held by cancelled jobs still waiting on a texture.
func (l *Loader) sweep() {
	for job := range l.pending {
		if job.node != nil && job.Cancelled() {
			l.discard(job, job.node)
		}
	}
}

// Close stops background work and disposes every subtree still held by
// an unfinished job. Fetchers must honour context cancellation.
func (l *Loader) Close() {
	l.cancel()
	l.wg.Wait()
	for job := range l.pending {
		job.Cancel()
		l.discard(job, job.node)
	}
}
