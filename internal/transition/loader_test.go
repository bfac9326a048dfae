package transition

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/loader"
	"github.com/Faultbox/charview/internal/scene"
	"github.com/Faultbox/charview/pkg/formats"
)

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if data, ok := m[source]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%s: not found", source)
}

func rsmBytes(t *testing.T, size float32) []byte {
	t.Helper()
	data, err := (&formats.RSM{
		Version:  formats.RSMVersion{Major: 1, Minor: 5},
		RootNode: "n",
		Nodes: []formats.RSMNode{{
			Name:     "n",
			Matrix:   [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			Scale:    [3]float32{1, 1, 1},
			Vertices: [][3]float32{{0, 0, 0}, {size, 0, 0}, {0, size, 0}},
			Faces:    []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}},
		}},
	}).MarshalBinary()
	require.NoError(t, err)
	return data
}

// settle ticks c until it is steady on the latest generation with nothing in flight.
func settle(t *testing.T, c *Controller, l *loader.Loader) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.Tick(0.05)
		cur := c.Current()
		return l.InFlight() == 0 && c.Phase() == PhaseSteady &&
			cur != nil && cur.Request.Generation == c.Generation()
	}, 2*time.Second, time.Millisecond)
}

func TestWithLoader(t *testing.T) {
	fetch := mapFetcher{
		"a.rsm": rsmBytes(t, 2),
		"b.rsm": rsmBytes(t, 50),
		"c.rsm": rsmBytes(t, 7),
	}
	mem := gpu.NewMemory()
	l := loader.New(fetch, mem, loader.Options{}, zap.NewNop())
	c := New(DefaultConfig(), l, mem, zap.NewNop())

	// Texture failure degrades to the default material.
	c.Request("a.rsm", "missing.png")
	settle(t, c, l)
	c.Current().Node.EachSurface(func(s scene.Surface) {
		assert.Zero(t, s.Material().Texture)
	})
	assert.InDelta(t, loader.DefaultCanonicalSize, c.Root().Bounds().MaxDimension(), 1e-3)

	// A burst of requests ends on the last one.
	c.Request("b.rsm", "")
	c.Request("a.rsm", "")
	last := c.Request("c.rsm", "")
	settle(t, c, l)
	assert.Equal(t, last, c.Current().Request)
	assert.Equal(t, 1, mem.LiveMeshes())

	// Geometry failure keeps what is displayed.
	shown := c.Current()
	c.Request("nope.rsm", "")
	require.Eventually(t, func() bool {
		c.Tick(0.05)
		return l.InFlight() == 0
	}, 2*time.Second, time.Millisecond)
	assert.Same(t, shown, c.Current())

	c.Close()
	l.Close()
	assert.Equal(t, 0, mem.LiveMeshes())
	assert.Zero(t, mem.BadReleases())
}
