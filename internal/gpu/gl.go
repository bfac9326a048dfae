package gpu

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
)

type glMesh struct {
	vao        uint32
	vbo        uint32
	ebo        uint32
	indexCount int32
}

// GL is an OpenGL 4.1 Device.
// IMPORTANT: create it after the GL context exists and gl.Init has run.
type GL struct {
	meshes   map[MeshHandle]glMesh
	textures map[TextureHandle]uint32
}

// NewGL creates an OpenGL device.
func NewGL() *GL {
	return &GL{
		meshes:   make(map[MeshHandle]glMesh),
		textures: make(map[TextureHandle]uint32),
	}
}

// UploadMesh creates a VAO with interleaved position/normal/texcoord attributes.
func (d *GL) UploadMesh(vertices []Vertex, indices []uint32) (MeshHandle, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return 0, errors.New("gpu: empty mesh")
	}

	var m glMesh
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	stride := int32(unsafe.Sizeof(Vertex{}))

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*int(stride), unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, unsafe.Pointer(&indices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 12)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 24)
	gl.EnableVertexAttribArray(2)

	gl.BindVertexArray(0)

	m.indexCount = int32(len(indices))
	h := MeshHandle(m.vao)
	d.meshes[h] = m
	return h, nil
}

// UploadTexture uploads an RGBA image with mipmaps.
func (d *GL) UploadTexture(img *image.RGBA, opts TextureOptions) (TextureHandle, error) {
	if img == nil || len(img.Pix) == 0 {
		return 0, errors.New("gpu: empty image")
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
		int32(img.Bounds().Dx()), int32(img.Bounds().Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, glWrap(opts.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, glWrap(opts.WrapT))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	h := TextureHandle(tex)
	d.textures[h] = tex
	return h, nil
}

// DeleteMesh deletes the VAO and its buffers.
func (d *GL) DeleteMesh(h MeshHandle) error {
	m, ok := d.meshes[h]
	if !ok {
		return fmt.Errorf("mesh %d: %w", h, ErrUnknownHandle)
	}
	gl.DeleteVertexArrays(1, &m.vao)
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteBuffers(1, &m.ebo)
	delete(d.meshes, h)
	return nil
}

// DeleteTexture deletes a texture.
func (d *GL) DeleteTexture(h TextureHandle) error {
	tex, ok := d.textures[h]
	if !ok {
		return fmt.Errorf("texture %d: %w", h, ErrUnknownHandle)
	}
	gl.DeleteTextures(1, &tex)
	delete(d.textures, h)
	return nil
}

// DrawMesh issues an indexed draw for the mesh. Unknown handles are skipped.
func (d *GL) DrawMesh(h MeshHandle) {
	m, ok := d.meshes[h]
	if !ok {
		return
	}
	gl.BindVertexArray(m.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, m.indexCount, gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)
}

// BindTexture binds a texture to unit 0, or the given fallback when h is unknown.
func (d *GL) BindTexture(h TextureHandle, fallback uint32) {
	gl.ActiveTexture(gl.TEXTURE0)
	if tex, ok := d.textures[h]; ok {
		gl.BindTexture(gl.TEXTURE_2D, tex)
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, fallback)
}

// Close releases every resource still owned by the device.
func (d *GL) Close() {
	for h := range d.meshes {
		_ = d.DeleteMesh(h)
	}
	for h := range d.textures {
		_ = d.DeleteTexture(h)
	}
}

func glWrap(w Wrap) int32 {
	if w == WrapRepeat {
		return gl.REPEAT
	}
	return gl.CLAMP_TO_EDGE
}
