// Package anim plays animation clips bound to a loaded model.
package anim

import "fmt"

// Clip is a single animation that poses its model at a given time.
type Clip interface {
	Name() string
	// Duration is the clip length in seconds.
	Duration() float32
	// Apply poses the bound model at t seconds, 0 <= t <= Duration.
	Apply(t float32)
}

// Mixer is a per-model playback driver. It advances one bound clip.
type Mixer struct {
	clips   []Clip
	active  Clip
	time    float32
	speed   float32
	playing bool
	looping bool
}

// NewMixer creates a mixer over the model's clips. Nothing plays until Play.
func NewMixer(clips []Clip) *Mixer {
	return &Mixer{
		clips:   clips,
		speed:   1,
		looping: true,
	}
}

// Clips returns the clips the mixer was created with.
func (m *Mixer) Clips() []Clip {
	return m.clips
}

// Play binds clip index and starts playback from time 0.
func (m *Mixer) Play(index int) error {
	if index < 0 || index >= len(m.clips) {
		return fmt.Errorf("clip %d out of range (have %d)", index, len(m.clips))
	}
	m.active = m.clips[index]
	m.time = 0
	m.playing = true
	m.active.Apply(0)
	return nil
}

// Stop halts playback and unbinds the clip. The model keeps its last pose.
func (m *Mixer) Stop() {
	if m == nil {
		return
	}
	m.playing = false
	m.active = nil
}

// Advance moves playback forward by dt seconds and poses the model.
// It is a no-op on a nil, stopped, or unbound mixer.
func (m *Mixer) Advance(dt float32) {
	if m == nil || !m.playing || m.active == nil || dt <= 0 {
		return
	}

	length := m.active.Duration()
	if length <= 0 {
		return
	}

	m.time += dt * m.speed
	if m.looping {
		for m.time >= length {
			m.time -= length
		}
	} else if m.time >= length {
		m.time = length
		m.playing = false
	}
	m.active.Apply(m.time)
}

// Playing reports whether a clip is bound and advancing.
func (m *Mixer) Playing() bool {
	return m != nil && m.playing && m.active != nil
}

// Time returns the playback position in seconds.
func (m *Mixer) Time() float32 {
	if m == nil {
		return 0
	}
	return m.time
}

// SetSpeed sets the playback speed multiplier.
func (m *Mixer) SetSpeed(speed float32) {
	m.speed = speed
}

// SetLooping sets whether playback wraps at the end of the clip.
func (m *Mixer) SetLooping(loop bool) {
	m.looping = loop
}
