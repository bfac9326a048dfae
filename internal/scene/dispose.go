package scene

import (
	"errors"

	"github.com/Faultbox/charview/internal/gpu"
)

// ErrDisposed is returned when a subtree is disposed a second time.
var ErrDisposed = errors.New("scene: subtree already disposed")

// Dispose releases every mesh buffer and material texture under root and
// detaches root from its parent. Textures shared between surfaces are
// released once. The subtree must not be drawn or disposed again afterwards.
func Dispose(dev gpu.Device, root *Node) error {
	if root == nil {
		return nil
	}
	if root.disposed {
		return ErrDisposed
	}

	var errs []error
	textures := make(map[gpu.TextureHandle]struct{})
	root.Walk(func(n *Node) bool {
		n.disposed = true
		for _, s := range n.Surfaces {
			if err := s.Release(dev); err != nil {
				errs = append(errs, err)
			}
			if mat := s.Material(); mat != nil && mat.Texture != 0 {
				textures[mat.Texture] = struct{}{}
				mat.Texture = 0
			}
		}
		return true
	})
	for tex := range textures {
		if err := dev.DeleteTexture(tex); err != nil {
			errs = append(errs, err)
		}
	}

	if root.parent != nil {
		root.parent.Remove(root)
	}
	return errors.Join(errs...)
}
