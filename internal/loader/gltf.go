package loader

import (
	"bytes"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/charview/internal/gpu"
	"github.com/Faultbox/charview/internal/scene"
)

// buildGLTF converts a self-contained glTF or GLB document into a subtree.
// Only triangle geometry of the default scene is read; animations are ignored.
func buildGLTF(data []byte) (*decodedModel, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding glTF: %w", err)
	}

	top := scene.NewNode("gltf")
	meshes := make(map[int][]*scene.Mesh)
	visited := make(map[int]bool)

	var addNode func(parent *scene.Node, idx int) error
	addNode = func(parent *scene.Node, idx int) error {
		if idx < 0 || idx >= len(doc.Nodes) || visited[idx] {
			return nil
		}
		visited[idx] = true

		src := doc.Nodes[idx]
		n := scene.NewNode(src.Name)
		n.Transform = gltfNodeMatrix(src)
		if src.Mesh != nil {
			ms, ok := meshes[*src.Mesh]
			if !ok {
				var err error
				if ms, err = gltfMeshes(doc, *src.Mesh); err != nil {
					return err
				}
				meshes[*src.Mesh] = ms
			}
			for _, m := range ms {
				// Meshes referenced twice get their own copy.
				n.Surfaces = append(n.Surfaces, scene.NewMesh(m.Name, m.Vertices, m.Indices))
			}
		}
		parent.Add(n)
		for _, c := range src.Children {
			if err := addNode(n, c); err != nil {
				return err
			}
		}
		return nil
	}

	for _, idx := range gltfRoots(doc) {
		if err := addNode(top, idx); err != nil {
			return nil, err
		}
	}
	return &decodedModel{root: top}, nil
}

// gltfRoots returns the root nodes of the default scene, or every node
// that is nobody's child when the document has no scenes.
func gltfRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func gltfNodeMatrix(n *gltf.Node) mgl32.Mat4 {
	var m mgl32.Mat4
	for i, v := range n.MatrixOrDefault() {
		m[i] = float32(v)
	}
	if m != mgl32.Ident4() {
		return m
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// gltfMeshes reads every triangle primitive of mesh idx.
func gltfMeshes(doc *gltf.Document, idx int) ([]*scene.Mesh, error) {
	if idx < 0 || idx >= len(doc.Meshes) {
		return nil, fmt.Errorf("glTF mesh %d out of range", idx)
	}
	src := doc.Meshes[idx]

	var out []*scene.Mesh
	for pi, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		if !validAccessors(doc, prim) {
			return nil, fmt.Errorf("glTF mesh %q references a missing accessor", src.Name)
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("glTF mesh %q positions: %w", src.Name, err)
		}

		var normals [][3]float32
		if i, ok := prim.Attributes[gltf.NORMAL]; ok {
			if normals, err = modeler.ReadNormal(doc, doc.Accessors[i], nil); err != nil {
				return nil, fmt.Errorf("glTF mesh %q normals: %w", src.Name, err)
			}
		}
		var uvs [][2]float32
		if i, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[i], nil); err != nil {
				return nil, fmt.Errorf("glTF mesh %q texcoords: %w", src.Name, err)
			}
		}

		var indices []uint32
		if prim.Indices != nil {
			if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
				return nil, fmt.Errorf("glTF mesh %q indices: %w", src.Name, err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		vertices := make([]gpu.Vertex, len(positions))
		for i, p := range positions {
			vertices[i].Position = p
			if i < len(normals) {
				vertices[i].Normal = normals[i]
			}
			if i < len(uvs) {
				vertices[i].TexCoord = uvs[i]
			}
		}
		if len(normals) == 0 {
			faceNormals(vertices, indices)
		}
		for _, ix := range indices {
			if int(ix) >= len(vertices) {
				return nil, fmt.Errorf("glTF mesh %q index %d out of range", src.Name, ix)
			}
		}

		out = append(out, scene.NewMesh(fmt.Sprintf("%s/%d", src.Name, pi), vertices, indices))
	}
	return out, nil
}

func validAccessors(doc *gltf.Document, prim *gltf.Primitive) bool {
	for _, i := range prim.Attributes {
		if i < 0 || i >= len(doc.Accessors) {
			return false
		}
	}
	return prim.Indices == nil || (*prim.Indices >= 0 && *prim.Indices < len(doc.Accessors))
}

// faceNormals accumulates triangle normals onto their vertices.
func faceNormals(vertices []gpu.Vertex, indices []uint32) {
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			continue
		}
		p0 := mgl32.Vec3(vertices[a].Position)
		n := mgl32.Vec3(vertices[b].Position).Sub(p0).Cross(mgl32.Vec3(vertices[c].Position).Sub(p0))
		for _, i := range [3]uint32{a, b, c} {
			vertices[i].Normal = mgl32.Vec3(vertices[i].Normal).Add(n)
		}
	}
	for i := range vertices {
		if n := mgl32.Vec3(vertices[i].Normal); n.Len() > 0 {
			vertices[i].Normal = n.Normalize()
		}
	}
}
