package loader

import (
	"github.com/Faultbox/charview/internal/anim"
	"github.com/Faultbox/charview/internal/scene"
	"github.com/Faultbox/charview/pkg/formats"
)

// decodedModel is a parsed model whose meshes are still on the CPU.
type decodedModel struct {
	root  *scene.Node
	clips []anim.Clip
}

// decodeModel parses data into a subtree rooted at a node named source.
func decodeModel(source string, data []byte) (*decodedModel, error) {
	format, err := detectFormat(source, data)
	if err != nil {
		return nil, err
	}

	var m *decodedModel
	switch format {
	case formatRSM:
		var rsm *formats.RSM
		if rsm, err = formats.ParseRSM(data); err == nil {
			m, err = buildRSM(rsm)
		}
	case formatGLTF:
		m, err = buildGLTF(data)
	}
	if err != nil {
		return nil, err
	}

	root := scene.NewNode(source)
	root.Add(m.root)
	m.root = root

	if root.Bounds().IsEmpty() {
		return nil, ErrNoGeometry
	}
	return m, nil
}
