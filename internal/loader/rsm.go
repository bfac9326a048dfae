package loader

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/anim"
	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/scene"
	"github.com/Faultbox/charview/pkg/formats"
)

// buildRSM converts a parsed RSM into one part node per RSM node. Parts
// are flat children carrying their full model-space matrix, so posing the
// model only rewrites part transforms.
func buildRSM(rsm *formats.RSM) (*decodedModel, error) {
	if len(rsm.Nodes) == 0 {
		return nil, ErrNoGeometry
	}

	top := scene.NewNode("rsm")
	// RSM space is Y-down.
	top.Transform = mgl32.Scale3D(1, -1, 1)

	pose := &rsmPose{rsm: rsm, parts: make([]*scene.Node, len(rsm.Nodes))}
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		part := scene.NewNode(node.Name)
		for _, m := range rsmMeshes(rsm, node) {
			part.Surfaces = append(part.Surfaces, m)
		}
		pose.parts[i] = part
		top.Add(part)
	}
	pose.apply(0)

	m := &decodedModel{root: top}
	if rsm.HasAnimation() {
		m.clips = []anim.Clip{&rsmClip{pose: pose}}
	}
	return m, nil
}

// rsmMeshes builds one mesh per texture used by node.
func rsmMeshes(rsm *formats.RSM, node *formats.RSMNode) []*scene.Mesh {
	type group struct {
		vertices []gpu.Vertex
		indices  []uint32
	}
	groups := make(map[int]*group)

	for _, face := range node.Faces {
		// The Y mirror on the model root flips winding; emit faces reversed.
		ids := [3]uint16{face.VertexIDs[0], face.VertexIDs[2], face.VertexIDs[1]}
		tcs := [3]uint16{face.TexCoordIDs[0], face.TexCoordIDs[2], face.TexCoordIDs[1]}

		var pos [3]mgl32.Vec3
		for k, id := range ids {
			pos[k] = mgl32.Vec3(node.Vertices[id])
		}
		n := pos[1].Sub(pos[0]).Cross(pos[2].Sub(pos[0]))
		if n.Len() < 1e-5 {
			continue
		}
		n = n.Normalize()

		tex := 0
		if int(face.TextureID) < len(node.TextureIDs) {
			tex = int(node.TextureIDs[face.TextureID])
		}
		g := groups[tex]
		if g == nil {
			g = &group{}
			groups[tex] = g
		}

		base := uint32(len(g.vertices))
		for k := range ids {
			v := gpu.Vertex{Position: pos[k], Normal: n}
			if int(tcs[k]) < len(node.TexCoords) {
				tc := node.TexCoords[tcs[k]]
				v.TexCoord = [2]float32{tc.U, tc.V}
			}
			g.vertices = append(g.vertices, v)
		}
		g.indices = append(g.indices, base, base+1, base+2)
	}

	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	meshes := make([]*scene.Mesh, 0, len(keys))
	for _, k := range keys {
		name := fmt.Sprintf("%s#%d", node.Name, k)
		if k >= 0 && k < len(rsm.Textures) {
			name = node.Name + ":" + rsm.Textures[k]
		}
		meshes = append(meshes, scene.NewMesh(name, groups[k].vertices, groups[k].indices))
	}
	return meshes
}

// rsmPose writes node matrices for a point in the animation.
type rsmPose struct {
	rsm   *formats.RSM
	parts []*scene.Node
}

func (p *rsmPose) apply(ms float32) {
	for i := range p.rsm.Nodes {
		p.parts[i].Transform = rsmNodeMatrix(p.rsm, &p.rsm.Nodes[i], ms)
	}
}

// rsmClip is the single keyframe animation of an RSM model.
type rsmClip struct {
	pose *rsmPose
}

func (c *rsmClip) Name() string { return "rsm" }

func (c *rsmClip) Duration() float32 {
	return float32(c.pose.rsm.AnimLength) / 1000
}

func (c *rsmClip) Apply(t float32) {
	c.pose.apply(t * 1000)
}

// rsmNodeMatrix returns the vertex matrix of node: the inherited hierarchy
// matrix followed by the node-only offset and 3x3 matrix.
func rsmNodeMatrix(rsm *formats.RSM, node *formats.RSMNode, ms float32) mgl32.Mat4 {
	m := rsmHierarchyMatrix(rsm, node, ms, make(map[string]bool))
	m = m.Mul4(mgl32.Translate3D(node.Offset[0], node.Offset[1], node.Offset[2]))
	return m.Mul4(mgl32.Mat3(node.Matrix).Mat4())
}

// rsmHierarchyMatrix is parent * Position * Rotation * Scale.
func rsmHierarchyMatrix(rsm *formats.RSM, node *formats.RSMNode, ms float32, visited map[string]bool) mgl32.Mat4 {
	if visited[node.Name] {
		return mgl32.Ident4()
	}
	visited[node.Name] = true

	pos := node.Position
	if len(node.PosKeys) > 0 {
		pos = posAt(node.PosKeys, ms)
	}
	local := mgl32.Translate3D(pos[0], pos[1], pos[2])

	switch {
	case len(node.RotKeys) > 0:
		local = local.Mul4(rotAt(node.RotKeys, ms).Mat4())
	case node.RotAngle != 0:
		axis := mgl32.Vec3(node.RotAxis)
		if axis.Len() > 1e-6 {
			local = local.Mul4(mgl32.HomogRotate3D(node.RotAngle, axis.Normalize()))
		}
	}

	local = local.Mul4(mgl32.Scale3D(node.Scale[0], node.Scale[1], node.Scale[2]))
	if len(node.ScaleKeys) > 0 {
		s := scaleAt(node.ScaleKeys, ms)
		local = local.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}

	if node.Parent != "" && node.Parent != node.Name {
		if parent := rsm.NodeByName(node.Parent); parent != nil {
			return rsmHierarchyMatrix(rsm, parent, ms, visited).Mul4(local)
		}
	}
	return local
}

// bracket finds the keys surrounding ms and the blend factor between them.
func bracket(n int, frame func(int) int32, ms float32) (i, j int, t float32) {
	for k := 0; k < n; k++ {
		if float32(frame(k)) > ms {
			j = k
			break
		}
		i, j = k, k
	}
	if i == j {
		return i, j, 0
	}
	if d := frame(j) - frame(i); d != 0 {
		t = math32.Max(0, (ms-float32(frame(i)))/float32(d))
	}
	return i, j, t
}

func rotAt(keys []formats.RSMRotKeyframe, ms float32) mgl32.Quat {
	i, j, t := bracket(len(keys), func(k int) int32 { return keys[k].Frame }, ms)
	q0, q1 := rsmQuat(keys[i].Quaternion), rsmQuat(keys[j].Quaternion)
	if i == j {
		return q0
	}
	return mgl32.QuatSlerp(q0, q1, t)
}

func rsmQuat(q [4]float32) mgl32.Quat {
	return mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}.Normalize()
}

func posAt(keys []formats.RSMPosKeyframe, ms float32) [3]float32 {
	i, j, t := bracket(len(keys), func(k int) int32 { return keys[k].Frame }, ms)
	return lerp3(keys[i].Position, keys[j].Position, t)
}

func scaleAt(keys []formats.RSMScaleKeyframe, ms float32) [3]float32 {
	i, j, t := bracket(len(keys), func(k int) int32 { return keys[k].Frame }, ms)
	return lerp3(keys[i].Scale, keys[j].Scale, t)
}

func lerp3(a, b [3]float32, t float32) [3]float32 {
	return [3]float32{
		a[0] + t*(b[0]-a[0]),
		a[1] + t*(b[1]-a[1]),
		a[2] + t*(b[2]-a[2]),
	}
}
