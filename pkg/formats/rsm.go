// Package formats parses Ragnarok Online model files.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Faultbox/charview/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
	ErrInvalidFace           = errors.New("RSM face references missing vertex")
)

// RSMMagic is the 4-byte signature every RSM file starts with.
const RSMMagic = "GRSM"

// Per-section sanity limits. Counts above these mean a corrupt file.
const (
	maxRSMNodes     = 10000
	maxRSMTextures  = 1000
	maxRSMVertices  = 100000
	maxRSMKeyframes = 10000
)

// RSMVersion is the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether v >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMTexCoord is a texture coordinate with its vertex color.
type RSMTexCoord struct {
	Color [4]uint8 // v1.2+
	U, V  float32
}

// RSMFace is a triangle.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe is a position keyframe (v < 1.5).
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe is a rotation keyframe, quaternion XYZW.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMScaleKeyframe is a scale keyframe (v >= 1.5).
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one mesh node of the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32

	Matrix   [9]float32 // vertex-only 3x3 transform
	Offset   [3]float32 // vertex-only pivot offset
	Position [3]float32
	RotAngle float32
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe
}

// RSM is a parsed model.
type RSM struct {
	Version    RSMVersion
	AnimLength int32 // milliseconds
	Shading    int32
	Alpha      float32
	Textures   []string
	RootNode   string
	Nodes      []RSMNode
}

// rsmReader reads little-endian fields and keeps the first error.
type rsmReader struct {
	r   *bytes.Reader
	err error
}

func (r *rsmReader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedRSMData
		}
		r.err = err
	}
}

func (r *rsmReader) count(limit int32, what string) int32 {
	var n int32
	r.read(&n)
	if r.err == nil && (n < 0 || n > limit) {
		r.err = fmt.Errorf("%w: %d %s", ErrTruncatedRSMData, n, what)
	}
	if r.err != nil {
		return 0
	}
	return n
}

func (r *rsmReader) str(size int) string {
	buf := make([]byte, size)
	r.read(buf)
	return encoding.FixedString(buf)
}

func (r *rsmReader) skip(n int64) {
	if r.err != nil {
		return
	}
	if int64(r.r.Len()) < n {
		r.err = ErrTruncatedRSMData
		return
	}
	_, r.err = r.r.Seek(n, io.SeekCurrent)
}

// ParseRSM parses an RSM model. Versions 1.1 through 2.3 are accepted.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != RSMMagic {
		return nil, ErrInvalidRSMMagic
	}

	r := &rsmReader{r: bytes.NewReader(data[4:])}
	rsm := &RSM{Alpha: 1}
	r.read(&rsm.Version.Major)
	r.read(&rsm.Version.Minor)
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	r.read(&rsm.AnimLength)
	r.read(&rsm.Shading)
	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		r.read(&alpha)
		rsm.Alpha = float32(alpha) / 255
	}
	r.skip(16)

	textureCount := r.count(maxRSMTextures, "textures")
	rsm.Textures = make([]string, textureCount)
	for i := range rsm.Textures {
		rsm.Textures[i] = r.str(40)
	}
	rsm.RootNode = r.str(40)

	var nodeCount int32
	r.read(&nodeCount)
	if r.err != nil {
		return nil, r.err
	}
	if nodeCount < 0 || nodeCount > maxRSMNodes {
		return nil, ErrInvalidNodeCount
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		readRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
		if err := rsm.Nodes[i].validate(); err != nil {
			return nil, fmt.Errorf("node %q: %w", rsm.Nodes[i].Name, err)
		}
	}
	return rsm, nil
}

func readRSMNode(r *rsmReader, version RSMVersion, node *RSMNode) {
	node.Name = r.str(40)
	node.Parent = r.str(40)

	node.TextureIDs = make([]int32, r.count(maxRSMTextures, "texture ids"))
	r.read(node.TextureIDs)

	r.read(&node.Matrix)
	r.read(&node.Offset)
	r.read(&node.Position)
	r.read(&node.RotAngle)
	r.read(&node.RotAxis)
	r.read(&node.Scale)

	node.Vertices = make([][3]float32, r.count(maxRSMVertices, "vertices"))
	r.read(node.Vertices)

	node.TexCoords = make([]RSMTexCoord, r.count(maxRSMVertices, "texcoords"))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		if version.AtLeast(1, 2) {
			r.read(&tc.Color)
		} else {
			tc.Color = [4]uint8{255, 255, 255, 255}
		}
		r.read(&tc.U)
		r.read(&tc.V)
	}

	node.Faces = make([]RSMFace, r.count(maxRSMVertices, "faces"))
	for i := range node.Faces {
		f := &node.Faces[i]
		var padding uint16
		r.read(&f.VertexIDs)
		r.read(&f.TexCoordIDs)
		r.read(&f.TextureID)
		r.read(&padding)
		r.read(&f.TwoSide)
		if version.AtLeast(1, 2) {
			r.read(&f.SmoothGroup)
		}
	}

	if !version.AtLeast(1, 5) {
		node.PosKeys = make([]RSMPosKeyframe, r.count(maxRSMKeyframes, "position keys"))
		r.read(node.PosKeys)
	}

	node.RotKeys = make([]RSMRotKeyframe, r.count(maxRSMKeyframes, "rotation keys"))
	r.read(node.RotKeys)

	if version.AtLeast(1, 5) {
		node.ScaleKeys = make([]RSMScaleKeyframe, r.count(maxRSMKeyframes, "scale keys"))
		r.read(node.ScaleKeys)
	}
}

func (n *RSMNode) validate() error {
	for _, f := range n.Faces {
		for _, id := range f.VertexIDs {
			if int(id) >= len(n.Vertices) {
				return ErrInvalidFace
			}
		}
	}
	return nil
}

// NodeByName returns the node with the given name, or nil.
func (rsm *RSM) NodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// FaceCount returns the number of faces over all nodes.
func (rsm *RSM) FaceCount() int {
	total := 0
	for i := range rsm.Nodes {
		total += len(rsm.Nodes[i].Faces)
	}
	return total
}

// HasAnimation reports whether any node has more than one keyframe.
// A single keyframe is a static pose, not an animation.
func (rsm *RSM) HasAnimation() bool {
	if rsm.AnimLength <= 0 {
		return false
	}
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		if len(n.RotKeys) > 1 || len(n.PosKeys) > 1 || len(n.ScaleKeys) > 1 {
			return true
		}
	}
	return false
}
