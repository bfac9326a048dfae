// Package gpu owns GPU-resident meshes and textures behind explicit handles.
//
// A handle has exactly one owner. Releasing it twice is reported as an error
// rather than silently ignored, so ownership bugs surface in tests.
package gpu

import (
	"errors"
	"image"
)

// ErrUnknownHandle is returned when a handle was never issued or was already released.
var ErrUnknownHandle = errors.New("gpu: unknown or released handle")

// MeshHandle identifies an uploaded vertex/index buffer pair. Zero means none.
type MeshHandle uint32

// TextureHandle identifies an uploaded texture. Zero means none.
type TextureHandle uint32

// Vertex is the interleaved vertex layout shared by every mesh.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Wrap is a texture addressing mode.
type Wrap int

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// TextureOptions controls sampler state for an uploaded texture.
type TextureOptions struct {
	WrapS Wrap
	WrapT Wrap
}

// Device uploads and releases GPU resources.
// All methods must be called from the thread that owns the GPU context.
type Device interface {
	UploadMesh(vertices []Vertex, indices []uint32) (MeshHandle, error)
	UploadTexture(img *image.RGBA, opts TextureOptions) (TextureHandle, error)
	DeleteMesh(h MeshHandle) error
	DeleteTexture(h TextureHandle) error
}
