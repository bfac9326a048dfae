package scene

import "github.com/chewxy/math32"

// OpaqueThreshold is the opacity at or above which a surface is drawn opaque.
const OpaqueThreshold = 0.999

// SetOpacity sets the opacity of every surface under root.
// Surfaces below OpaqueThreshold are marked transparent with depth writes
// disabled so a crossfading pair does not occlude itself.
func SetOpacity(root *Node, value float32) {
	if root == nil {
		return
	}
	value = math32.Max(0, math32.Min(1, value))
	opaque := value >= OpaqueThreshold
	root.EachSurface(func(s Surface) {
		mat := s.Material()
		if mat == nil {
			mat = DefaultMaterial()
			s.SetMaterial(mat)
		}
		mat.Opacity = value
		mat.Transparent = !opaque
		mat.DepthWrite = opaque
	})
}

// Opacity returns the opacity of the first surface under root.
// ok is false when the subtree has no surfaces.
func Opacity(root *Node) (value float32, ok bool) {
	if root == nil {
		return 0, false
	}
	root.Walk(func(n *Node) bool {
		if ok {
			return false
		}
		for _, s := range n.Surfaces {
			if mat := s.Material(); mat != nil {
				value, ok = mat.Opacity, true
				return false
			}
		}
		return true
	})
	return value, ok
}
