package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/gpu"
)

// Material describes how a surface is shaded.
type Material struct {
	Texture     gpu.TextureHandle // 0 = untextured
	Tint        mgl32.Vec4
	DoubleSided bool
	Opacity     float32
	Transparent bool
	DepthWrite  bool
}

// DefaultMaterial returns an opaque, untextured white material.
func DefaultMaterial() *Material {
	return &Material{
		Tint:       mgl32.Vec4{1, 1, 1, 1},
		Opacity:    1,
		DepthWrite: true,
	}
}

// Mesh is a triangle list surface. Vertex data stays on the CPU until
// Upload, after which only the GPU handle and bounds are kept.
type Mesh struct {
	Name     string
	Vertices []gpu.Vertex
	Indices  []uint32

	bounds   Bounds
	handle   gpu.MeshHandle
	material *Material
}

// NewMesh creates a mesh with the default material and computes its bounds.
func NewMesh(name string, vertices []gpu.Vertex, indices []uint32) *Mesh {
	b := EmptyBounds()
	for _, v := range vertices {
		b = b.Extend(mgl32.Vec3(v.Position))
	}
	return &Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
		bounds:   b,
		material: DefaultMaterial(),
	}
}

// Material returns the surface material.
func (m *Mesh) Material() *Material { return m.material }

// SetMaterial replaces the surface material.
func (m *Mesh) SetMaterial(mat *Material) { m.material = mat }

// Handle returns the GPU handle, or 0 before Upload.
func (m *Mesh) Handle() gpu.MeshHandle { return m.handle }

// LocalBounds returns the bounds of the vertex positions.
func (m *Mesh) LocalBounds() Bounds { return m.bounds }

// Upload sends the vertex data to dev and drops the CPU copy.
func (m *Mesh) Upload(dev gpu.Device) error {
	if m.handle != 0 {
		return nil
	}
	h, err := dev.UploadMesh(m.Vertices, m.Indices)
	if err != nil {
		return fmt.Errorf("uploading mesh %q: %w", m.Name, err)
	}
	m.handle = h
	m.Vertices = nil
	m.Indices = nil
	return nil
}

// Release deletes the GPU buffers. The material is left to the caller,
// since it may be shared with other surfaces.
func (m *Mesh) Release(dev gpu.Device) error {
	if m.handle == 0 {
		return nil
	}
	h := m.handle
	m.handle = 0
	return dev.DeleteMesh(h)
}

// Upload uploads every mesh in the subtree. On failure the meshes that
// were already uploaded stay owned by the subtree and are released by Dispose.
func Upload(dev gpu.Device, root *Node) error {
	var errs []error
	root.EachSurface(func(s Surface) {
		if err := s.Upload(dev); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// BindMaterial sets mat on every surface in the subtree.
func BindMaterial(root *Node, mat *Material) {
	root.EachSurface(func(s Surface) {
		s.SetMaterial(mat)
	})
}
