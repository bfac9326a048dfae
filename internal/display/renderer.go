package display

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/display/shaders"
	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/viewer"
)

// Renderer draws a slot's draw list.
type Renderer struct {
	dev     *gpu.GL
	program uint32
	white   uint32

	locProjection int32
	locView       int32
	locModel      int32
	locTexture    int32
	locTint       int32
	locOpacity    int32
	locLightDir   int32
	locAmbient    int32
	locDiffuse    int32
}

// NewRenderer compiles the model program. dev must be the device the
// drawn meshes were uploaded to.
func NewRenderer(dev *gpu.GL) (*Renderer, error) {
	program, err := compileProgram(shaders.ModelVertexShader, shaders.ModelFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("model shader: %w", err)
	}
	r := &Renderer{
		dev:           dev,
		program:       program,
		locProjection: uniform(program, "uProjection"),
		locView:       uniform(program, "uView"),
		locModel:      uniform(program, "uModel"),
		locTexture:    uniform(program, "uTexture"),
		locTint:       uniform(program, "uTint"),
		locOpacity:    uniform(program, "uOpacity"),
		locLightDir:   uniform(program, "uLightDir"),
		locAmbient:    uniform(program, "uAmbient"),
		locDiffuse:    uniform(program, "uDiffuse"),
	}
	r.white = whiteTexture()
	return r, nil
}

// whiteTexture is bound for untextured materials.
func whiteTexture() uint32 {
	var tex uint32
	pix := []uint8{255, 255, 255, 255}
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return tex
}

// Render clears the framebuffer and draws items, which must be ordered
// opaque first.
func (r *Renderer) Render(width, height int, cam *viewer.OrbitCamera, items []viewer.DrawItem) {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0.15, 0.15, 0.2, 1.0)
	gl.DepthMask(true)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	gl.UseProgram(r.program)

	projection := cam.Projection(float32(width) / float32(max(height, 1)))
	view := cam.View()
	gl.UniformMatrix4fv(r.locProjection, 1, false, &projection[0])
	gl.UniformMatrix4fv(r.locView, 1, false, &view[0])

	gl.Uniform3f(r.locLightDir, 0.5, 1.0, 0.5)
	gl.Uniform3f(r.locAmbient, 0.4, 0.4, 0.4)
	gl.Uniform3f(r.locDiffuse, 0.6, 0.6, 0.6)
	gl.Uniform1i(r.locTexture, 0)

	for _, it := range items {
		mat := it.Material
		gl.DepthMask(mat.DepthWrite)
		if mat.DoubleSided {
			gl.Disable(gl.CULL_FACE)
		} else {
			gl.Enable(gl.CULL_FACE)
			gl.CullFace(gl.BACK)
		}

		model := it.Model
		gl.UniformMatrix4fv(r.locModel, 1, false, &model[0])
		tint := mat.Tint
		if tint == (mgl32.Vec4{}) {
			tint = mgl32.Vec4{1, 1, 1, 1}
		}
		gl.Uniform4f(r.locTint, tint[0], tint[1], tint[2], tint[3])
		gl.Uniform1f(r.locOpacity, mat.Opacity)

		r.dev.BindTexture(mat.Texture, r.white)
		r.dev.DrawMesh(it.Mesh)
	}

	gl.DepthMask(true)
	gl.UseProgram(0)
}

// Close deletes the program and fallback texture. Meshes and textures
// belong to their owners.
func (r *Renderer) Close() {
	gl.DeleteProgram(r.program)
	gl.DeleteTextures(1, &r.white)
}
