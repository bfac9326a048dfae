package loader

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/scene"
)

// Normalize centers root's bounding box on the origin and scales it
// uniformly so its largest dimension equals size. Degenerate boxes are
// only centered. The correction is applied to root.Transform.
func Normalize(root *scene.Node, size float32) {
	b := root.Bounds()
	if b.IsEmpty() {
		return
	}

	c := b.Center()
	fix := mgl32.Translate3D(-c.X(), -c.Y(), -c.Z())
	if d := b.MaxDimension(); d > 0 && size > 0 {
		s := size / d
		fix = mgl32.Scale3D(s, s, s).Mul4(fix)
	}
	root.Transform = fix.Mul4(root.Transform)
}
