package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/charview/pkg/encoding"
)

// MarshalBinary encodes the model in the layout of rsm.Version.
func (rsm *RSM) MarshalBinary() ([]byte, error) {
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	w := &rsmWriter{}
	w.buf.WriteString(RSMMagic)
	w.write(rsm.Version.Major)
	w.write(rsm.Version.Minor)
	w.write(rsm.AnimLength)
	w.write(rsm.Shading)
	if rsm.Version.AtLeast(1, 4) {
		w.write(uint8(rsm.Alpha * 255))
	}
	w.write(make([]byte, 16))

	w.write(int32(len(rsm.Textures)))
	for _, t := range rsm.Textures {
		w.str(t, 40)
	}
	w.str(rsm.RootNode, 40)

	w.write(int32(len(rsm.Nodes)))
	for i := range rsm.Nodes {
		w.node(rsm.Version, &rsm.Nodes[i])
	}
	return w.buf.Bytes(), w.err
}

type rsmWriter struct {
	buf bytes.Buffer
	err error
}

func (w *rsmWriter) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *rsmWriter) str(s string, size int) {
	field := make([]byte, size)
	copy(field[:size-1], encoding.UTF8ToEUCKR(s))
	w.write(field)
}

func (w *rsmWriter) node(version RSMVersion, n *RSMNode) {
	w.str(n.Name, 40)
	w.str(n.Parent, 40)
	w.write(int32(len(n.TextureIDs)))
	w.write(n.TextureIDs)
	w.write(n.Matrix)
	w.write(n.Offset)
	w.write(n.Position)
	w.write(n.RotAngle)
	w.write(n.RotAxis)
	w.write(n.Scale)

	w.write(int32(len(n.Vertices)))
	w.write(n.Vertices)

	w.write(int32(len(n.TexCoords)))
	for _, tc := range n.TexCoords {
		if version.AtLeast(1, 2) {
			w.write(tc.Color)
		}
		w.write(tc.U)
		w.write(tc.V)
	}

	w.write(int32(len(n.Faces)))
	for _, f := range n.Faces {
		w.write(f.VertexIDs)
		w.write(f.TexCoordIDs)
		w.write(f.TextureID)
		w.write(uint16(0))
		w.write(f.TwoSide)
		if version.AtLeast(1, 2) {
			w.write(f.SmoothGroup)
		}
	}

	if !version.AtLeast(1, 5) {
		w.write(int32(len(n.PosKeys)))
		w.write(n.PosKeys)
	}
	w.write(int32(len(n.RotKeys)))
	w.write(n.RotKeys)
	if version.AtLeast(1, 5) {
		w.write(int32(len(n.ScaleKeys)))
		w.write(n.ScaleKeys)
	}
}
