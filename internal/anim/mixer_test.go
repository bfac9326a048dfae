package anim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClip struct {
	length  float32
	applied []float32
}

func (c *recordingClip) Name() string      { return "rec" }
func (c *recordingClip) Duration() float32 { return c.length }
func (c *recordingClip) Apply(t float32)   { c.applied = append(c.applied, t) }

func TestMixerAdvanceLoops(t *testing.T) {
	clip := &recordingClip{length: 1}
	m := NewMixer([]Clip{clip})
	require.NoError(t, m.Play(0))

	m.Advance(0.75)
	m.Advance(0.5)

	assert.True(t, m.Playing())
	assert.InDelta(t, 0.25, m.Time(), 1e-6)
	require.Len(t, clip.applied, 3)
	assert.Equal(t, float32(0), clip.applied[0])
	assert.InDelta(t, 0.25, clip.applied[2], 1e-6)
}

func TestMixerNoLoopStopsAtEnd(t *testing.T) {
	clip := &recordingClip{length: 1}
	m := NewMixer([]Clip{clip})
	m.SetLooping(false)
	require.NoError(t, m.Play(0))

	m.Advance(2)
	assert.False(t, m.Playing())
	assert.Equal(t, float32(1), m.Time())

	m.Advance(1)
	assert.Len(t, clip.applied, 2)
}

func TestMixerSpeed(t *testing.T) {
	clip := &recordingClip{length: 10}
	m := NewMixer([]Clip{clip})
	m.SetSpeed(2)
	require.NoError(t, m.Play(0))
	m.Advance(1)
	assert.InDelta(t, 2, m.Time(), 1e-6)
}

func TestMixerNoOps(t *testing.T) {
	var nilMixer *Mixer
	nilMixer.Advance(1)
	nilMixer.Stop()
	assert.False(t, nilMixer.Playing())

	unbound := NewMixer(nil)
	unbound.Advance(1)
	assert.Equal(t, float32(0), unbound.Time())
	assert.Error(t, unbound.Play(0))

	clip := &recordingClip{length: 1}
	m := NewMixer([]Clip{clip})
	require.NoError(t, m.Play(0))
	m.Stop()
	m.Advance(0.5)
	assert.Len(t, clip.applied, 1)
	assert.False(t, m.Playing())
}

func TestMixerIgnoresNonPositiveDelta(t *testing.T) {
	clip := &recordingClip{length: 1}
	m := NewMixer([]Clip{clip})
	require.NoError(t, m.Play(0))
	m.Advance(0)
	m.Advance(-0.5)
	assert.Equal(t, float32(0), m.Time())
}
