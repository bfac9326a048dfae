package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// Memory is a Device that keeps resources in process memory.
// It backs headless runs and tests, and records every release so
// ownership errors can be asserted on.
type Memory struct {
	mu       sync.Mutex
	next     uint32
	meshes   map[MeshHandle]int
	textures map[TextureHandle]image.Rectangle
	released map[uint32]int
	doubles  int

	// FailTextures makes UploadTexture fail, simulating an out-of-memory driver.
	FailTextures bool
}

// NewMemory creates an empty in-memory device.
func NewMemory() *Memory {
	return &Memory{
		meshes:   make(map[MeshHandle]int),
		textures: make(map[TextureHandle]image.Rectangle),
		released: make(map[uint32]int),
	}
}

// UploadMesh records a mesh and returns its handle.
func (m *Memory) UploadMesh(vertices []Vertex, indices []uint32) (MeshHandle, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return 0, errors.New("gpu: empty mesh")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	h := MeshHandle(m.next)
	m.meshes[h] = len(indices)
	return h, nil
}

// UploadTexture records a texture and returns its handle.
func (m *Memory) UploadTexture(img *image.RGBA, opts TextureOptions) (TextureHandle, error) {
	if img == nil {
		return 0, errors.New("gpu: nil image")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTextures {
		return 0, fmt.Errorf("gpu: texture upload %dx%d refused", img.Bounds().Dx(), img.Bounds().Dy())
	}
	m.next++
	h := TextureHandle(m.next)
	m.textures[h] = img.Bounds()
	return h, nil
}

// DeleteMesh releases a mesh.
func (m *Memory) DeleteMesh(h MeshHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released[uint32(h)]++
	if _, ok := m.meshes[h]; !ok {
		m.doubles++
		return fmt.Errorf("mesh %d: %w", h, ErrUnknownHandle)
	}
	delete(m.meshes, h)
	return nil
}

// DeleteTexture releases a texture.
func (m *Memory) DeleteTexture(h TextureHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released[uint32(h)]++
	if _, ok := m.textures[h]; !ok {
		m.doubles++
		return fmt.Errorf("texture %d: %w", h, ErrUnknownHandle)
	}
	delete(m.textures, h)
	return nil
}

// LiveMeshes returns the number of meshes not yet released.
func (m *Memory) LiveMeshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.meshes)
}

// LiveTextures returns the number of textures not yet released.
func (m *Memory) LiveTextures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.textures)
}

// IsLive reports whether a mesh handle is still allocated.
func (m *Memory) IsLive(h MeshHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.meshes[h]
	return ok
}

// Releases returns how many times the handle id was passed to a Delete call.
func (m *Memory) Releases(id uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released[id]
}

// BadReleases returns how many Delete calls hit an unknown or released handle.
func (m *Memory) BadReleases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doubles
}
