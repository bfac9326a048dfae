package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/scene"
	"github.com/Faultbox/charview/pkg/formats"
)

var errNotFound = errors.New("not found")

// fakeFetcher serves in-memory sources. A gated source blocks until its
// gate is closed or the fetch context ends.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	gates map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		data:  make(map[string][]byte),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) put(source string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[source] = data
}

func (f *fakeFetcher) gate(source string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[source] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	f.mu.Lock()
	gate := f.gates[source]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[source]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

// triangleRSM returns an RSM with one triangle spanning size units.
func triangleRSM(t *testing.T, size float32, animated bool) []byte {
	t.Helper()
	rsm := &formats.RSM{
		Version:  formats.RSMVersion{Major: 1, Minor: 4},
		Alpha:    1,
		Textures: []string{"body.bmp"},
		RootNode: "root",
		Nodes: []formats.RSMNode{{
			Name:       "root",
			TextureIDs: []int32{0},
			Matrix:     [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			Scale:      [3]float32{1, 1, 1},
			Vertices:   [][3]float32{{0, 0, 0}, {size, 0, 0}, {0, size / 2, size / 4}},
			TexCoords:  []formats.RSMTexCoord{{U: 0, V: 0}, {U: 1, V: 0}, {U: 0, V: 1}},
			Faces:      []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}, TexCoordIDs: [3]uint16{0, 1, 2}}},
		}},
	}
	if animated {
		rsm.AnimLength = 1000
		rsm.Nodes[0].RotKeys = []formats.RSMRotKeyframe{
			{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}},
			{Frame: 1000, Quaternion: [4]float32{0, 0.7071, 0, 0.7071}},
		}
	}
	data, err := rsm.MarshalBinary()
	require.NoError(t, err)
	return data
}

func pngTexture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetRGBA(0, 0, color.RGBA{255, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// collect polls l until n results arrive.
func collect(t *testing.T, l *Loader, n int) []Result {
	t.Helper()
	var results []Result
	require.Eventually(t, func() bool {
		results = append(results, l.Poll()...)
		return len(results) >= n
	}, 2*time.Second, time.Millisecond)
	return results
}

// drain polls l until no job is in flight.
func drain(t *testing.T, l *Loader) []Result {
	t.Helper()
	var results []Result
	require.Eventually(t, func() bool {
		results = append(results, l.Poll()...)
		return l.InFlight() == 0
	}, 2*time.Second, time.Millisecond)
	return results
}

func newTestLoader(t *testing.T, f Fetcher, log *zap.Logger) (*Loader, *gpu.Memory) {
	t.Helper()
	mem := gpu.NewMemory()
	l := New(f, mem, Options{MagentaKey: true}, log)
	t.Cleanup(l.Close)
	return l, mem
}

func TestLoadNormalizesGeometry(t *testing.T) {
	f := newFakeFetcher()
	f.put("big.rsm", triangleRSM(t, 100, false))
	l, mem := newTestLoader(t, f, zap.NewNop())

	job := l.Load(context.Background(), Request{Model: "big.rsm", Generation: 7})
	assert.Equal(t, uint64(7), job.Request().Generation)

	results := collect(t, l, 1)
	require.Len(t, results, 1)
	r := results[0]
	require.NoError(t, r.Err)
	require.NotNil(t, r.Asset)
	assert.Equal(t, uint64(7), r.Request.Generation)

	b := r.Asset.Node.Bounds()
	assert.InDelta(t, DefaultCanonicalSize, b.MaxDimension(), 1e-3)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0, b.Center()[i], 1e-3)
	}

	assert.Equal(t, float32(0), r.Asset.Opacity())
	op, ok := scene.Opacity(r.Asset.Node)
	require.True(t, ok)
	assert.Equal(t, float32(0), op)
	assert.Nil(t, r.Asset.Mixer)
	assert.Equal(t, 1, mem.LiveMeshes())
	assert.Equal(t, 0, l.InFlight())

	require.NoError(t, r.Asset.Release(mem))
	assert.Equal(t, 0, mem.LiveMeshes())
}

func TestLoadStartsAnimation(t *testing.T) {
	f := newFakeFetcher()
	f.put("anim.rsm", triangleRSM(t, 2, true))
	l, _ := newTestLoader(t, f, zap.NewNop())

	l.Load(context.Background(), Request{Model: "anim.rsm"})
	r := collect(t, l, 1)[0]
	require.NoError(t, r.Err)
	require.NotNil(t, r.Asset.Mixer)
	assert.True(t, r.Asset.Mixer.Playing())

	before := r.Asset.Node.Children()[0].Children()[0].Transform
	r.Asset.Advance(0.5)
	assert.InDelta(t, 0.5, r.Asset.Mixer.Time(), 1e-6)
	assert.NotEqual(t, before, r.Asset.Node.Children()[0].Children()[0].Transform)
}

func TestLoadBindsTexture(t *testing.T) {
	f := newFakeFetcher()
	f.put("m.rsm", triangleRSM(t, 2, false))
	f.put("m.png", pngTexture(t))
	l, mem := newTestLoader(t, f, zap.NewNop())

	l.Load(context.Background(), Request{Model: "m.rsm", Texture: "m.png"})
	r := collect(t, l, 1)[0]
	require.NoError(t, r.Err)

	r.Asset.Node.EachSurface(func(s scene.Surface) {
		mat := s.Material()
		assert.NotZero(t, mat.Texture)
		assert.True(t, mat.DoubleSided)
		assert.Equal(t, float32(1), mat.Tint.W())
		assert.Equal(t, float32(0), mat.Opacity)
	})
	assert.Equal(t, 1, mem.LiveTextures())

	require.NoError(t, r.Asset.Release(mem))
	assert.Equal(t, 0, mem.LiveTextures())
	assert.Equal(t, 0, mem.LiveMeshes())
	assert.Zero(t, mem.BadReleases())
}

func TestTextureFailureDegradesToDefaultMaterial(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeFetcher, mem *gpu.Memory)
	}{
		{"missing", func(f *fakeFetcher, mem *gpu.Memory) {}},
		{"undecodable", func(f *fakeFetcher, mem *gpu.Memory) {
			f.put("skin.png", []byte("definitely not an image"))
		}},
		{"upload refused", func(f *fakeFetcher, mem *gpu.Memory) {
			f.put("skin.png", pngTexture(t))
			mem.FailTextures = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			f := newFakeFetcher()
			f.put("m.rsm", triangleRSM(t, 2, false))
			l, mem := newTestLoader(t, f, zap.New(core))
			tt.setup(f, mem)

			l.Load(context.Background(), Request{Model: "m.rsm", Texture: "skin.png"})
			r := collect(t, l, 1)[0]
			require.NoError(t, r.Err)
			require.NotNil(t, r.Asset)

			r.Asset.Node.EachSurface(func(s scene.Surface) {
				assert.Zero(t, s.Material().Texture)
			})
			assert.Equal(t, 0, mem.LiveTextures())
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestGeometryFailure(t *testing.T) {
	f := newFakeFetcher()
	f.put("junk.rsm", []byte("this is not a model"))
	f.put("empty.rsm", func() []byte {
		data, err := (&formats.RSM{Version: formats.RSMVersion{Major: 1, Minor: 4}, RootNode: "r",
			Nodes: []formats.RSMNode{{Name: "r", Scale: [3]float32{1, 1, 1}}}}).MarshalBinary()
		require.NoError(t, err)
		return data
	}())
	f.put("tex.png", pngTexture(t))
	l, mem := newTestLoader(t, f, zap.NewNop())

	tests := []struct {
		req    Request
		target error
	}{
		{Request{Model: "missing.rsm"}, errNotFound},
		{Request{Model: "junk.rsm", Texture: "tex.png"}, formats.ErrInvalidRSMMagic},
		{Request{Model: "empty.rsm"}, ErrNoGeometry},
		{Request{Model: "model.obj"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.req.Model, func(t *testing.T) {
			if tt.req.Model == "model.obj" {
				f.put("model.obj", []byte("v 0 0 0"))
			}
			l.Load(context.Background(), tt.req)
			results := drain(t, l)
			require.Len(t, results, 1)

			var loadErr *AssetLoadError
			require.ErrorAs(t, results[0].Err, &loadErr)
			assert.Equal(t, KindGeometry, loadErr.Kind)
			assert.Equal(t, tt.req.Model, loadErr.Source)
			if tt.target != nil {
				assert.ErrorIs(t, results[0].Err, tt.target)
			}
			assert.Nil(t, results[0].Asset)
			assert.Equal(t, 0, mem.LiveMeshes())
		})
	}
}

func TestCancelBeforeGeometryArrives(t *testing.T) {
	f := newFakeFetcher()
	f.put("slow.rsm", triangleRSM(t, 2, false))
	release := f.gate("slow.rsm")
	l, mem := newTestLoader(t, f, zap.NewNop())

	job := l.Load(context.Background(), Request{Model: "slow.rsm"})
	job.Cancel()
	assert.True(t, job.Cancelled())
	release()

	assert.Empty(t, drain(t, l))
	assert.Equal(t, 0, mem.LiveMeshes())
	assert.Zero(t, mem.BadReleases())
}

func TestCancelWhileHoldingGeometry(t *testing.T) {
	f := newFakeFetcher()
	f.put("m.rsm", triangleRSM(t, 2, false))
	f.put("slow.png", pngTexture(t))
	release := f.gate("slow.png")
	l, mem := newTestLoader(t, f, zap.NewNop())

	job := l.Load(context.Background(), Request{Model: "m.rsm", Texture: "slow.png"})
	require.Eventually(t, func() bool {
		assert.Empty(t, l.Poll())
		return mem.LiveMeshes() == 1
	}, 2*time.Second, time.Millisecond)

	job.Cancel()
	assert.Empty(t, l.Poll())
	assert.Equal(t, 0, mem.LiveMeshes())
	assert.Equal(t, 0, l.InFlight())

	release()
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, l.Poll())
	assert.Equal(t, 0, mem.LiveTextures())
	assert.Zero(t, mem.BadReleases())
}

func TestCloseDisposesHeldGeometry(t *testing.T) {
	f := newFakeFetcher()
	f.put("m.rsm", triangleRSM(t, 2, false))
	f.put("stalled.png", pngTexture(t))
	f.gate("stalled.png")
	mem := gpu.NewMemory()
	l := New(f, mem, Options{}, nil)

	l.Load(context.Background(), Request{Model: "m.rsm", Texture: "stalled.png"})
	require.Eventually(t, func() bool {
		l.Poll()
		return mem.LiveMeshes() == 1
	}, 2*time.Second, time.Millisecond)

	l.Close()
	assert.Equal(t, 0, mem.LiveMeshes())
	assert.Equal(t, 0, l.InFlight())
}

func TestLoadGLB(t *testing.T) {
	f := newFakeFetcher()
	f.put("cube.glb", triangleGLB(t))
	l, mem := newTestLoader(t, f, zap.NewNop())

	l.Load(context.Background(), Request{Model: "cube.glb"})
	r := collect(t, l, 1)[0]
	require.NoError(t, r.Err)

	b := r.Asset.Node.Bounds()
	assert.InDelta(t, DefaultCanonicalSize, b.MaxDimension(), 1e-3)
	assert.InDelta(t, 0, b.Center().Len(), 1e-3)
	assert.Equal(t, 1, mem.LiveMeshes())
}

func TestNormalizeDegenerateBounds(t *testing.T) {
	root := scene.NewNode("flat")
	root.Surfaces = append(root.Surfaces, scene.NewMesh("point", []gpu.Vertex{
		{Position: [3]float32{3, 3, 3}},
		{Position: [3]float32{3, 3, 3}},
		{Position: [3]float32{3, 3, 3}},
	}, []uint32{0, 1, 2}))

	Normalize(root, 4)
	b := root.Bounds()
	assert.InDelta(t, 0, b.Center().Len(), 1e-5)
	assert.False(t, math32.IsNaN(root.Transform[0]))
	assert.Equal(t, float32(1), root.Transform[0])

	empty := scene.NewNode("empty")
	Normalize(empty, 4)
	assert.Equal(t, empty.Transform, scene.NewNode("x").Transform)
}

func TestDetectFormat(t *testing.T) {
	rsm := triangleRSM(t, 1, false)
	glb := triangleGLB(t)

	tests := []struct {
		source string
		data   []byte
		want   modelFormat
	}{
		{"data/model/tree.rsm", nil, formatRSM},
		{"https://cdn.example/a/b.GLB?v=3", nil, formatGLTF},
		{"scene.gltf", nil, formatGLTF},
		{"grf://data/model/blob", rsm, formatRSM},
		{"https://cdn.example/model", glb, formatGLTF},
		{"inline", []byte("  {\"asset\":{\"version\":\"2.0\"}}"), formatGLTF},
	}
	for _, tt := range tests {
		got, err := detectFormat(tt.source, tt.data)
		require.NoError(t, err, tt.source)
		assert.Equal(t, tt.want, got, tt.source)
	}

	_, err := detectFormat("mystery.bin", []byte{0, 1, 2, 3})
	assert.Error(t, err)
}
