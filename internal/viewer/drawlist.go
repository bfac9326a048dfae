package viewer

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/scene"
)

// DrawItem is one uploaded surface ready to draw.
type DrawItem struct {
	Mesh     gpu.MeshHandle
	Model    mgl32.Mat4
	Material *scene.Material
}

// CollectDraws appends every visible uploaded surface under root to out.
// Opaque items come first so transparent ones blend over a finished depth
// buffer; within each group tree order is kept.
func CollectDraws(root *scene.Node, out []DrawItem) []DrawItem {
	if root == nil {
		return out
	}
	start := len(out)
	root.WalkWorld(mgl32.Ident4(), func(n *scene.Node, world mgl32.Mat4) {
		for _, s := range n.Surfaces {
			mat := s.Material()
			if s.Handle() == 0 || mat == nil || mat.Opacity <= 0 {
				continue
			}
			out = append(out, DrawItem{Mesh: s.Handle(), Model: world, Material: mat})
		}
	})
	items := out[start:]
	sort.SliceStable(items, func(i, j int) bool {
		return !items[i].Material.Transparent && items[j].Material.Transparent
	})
	return out
}
