// Package scene provides the node tree the viewer draws: transforms,
// drawable surfaces and their materials, plus the opacity and disposal
// passes that operate on a whole subtree.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/gpu"
)

// Surface is implemented by every drawable node attachment.
// Passes that touch "every drawable surface" go through this interface.
type Surface interface {
	Material() *Material
	SetMaterial(m *Material)
	Handle() gpu.MeshHandle
	LocalBounds() Bounds
	Upload(dev gpu.Device) error
	Release(dev gpu.Device) error
}

// Node is a transform with attached surfaces and child nodes.
type Node struct {
	Name      string
	Transform mgl32.Mat4
	Surfaces  []Surface

	parent   *Node
	children []*Node
	disposed bool
}

// NewNode creates a node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:      name,
		Transform: mgl32.Ident4(),
	}
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n. It returns false if child was not attached.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Children returns the attached children. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Parent returns the node n is attached to, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Disposed reports whether the subtree rooted at n was released.
func (n *Node) Disposed() bool {
	return n.disposed
}

// Walk visits n and its descendants depth-first.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// WalkWorld visits n and its descendants with each node's accumulated
// transform, starting from parent.
func (n *Node) WalkWorld(parent mgl32.Mat4, fn func(node *Node, world mgl32.Mat4)) {
	world := parent.Mul4(n.Transform)
	fn(n, world)
	for _, c := range n.children {
		c.WalkWorld(world, fn)
	}
}

// EachSurface calls fn for every surface in the subtree.
func (n *Node) EachSurface(fn func(Surface)) {
	n.Walk(func(node *Node) bool {
		for _, s := range node.Surfaces {
			fn(s)
		}
		return true
	})
}

// Bounds returns the bounding box of every surface in the subtree,
// expressed in the frame n's own transform maps into.
func (n *Node) Bounds() Bounds {
	b := EmptyBounds()
	n.WalkWorld(mgl32.Ident4(), func(node *Node, world mgl32.Mat4) {
		for _, s := range node.Surfaces {
			b = b.Union(s.LocalBounds().Transform(world))
		}
	})
	return b
}
