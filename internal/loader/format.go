package loader

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/Faultbox/charview/pkg/formats"
)

type modelFormat int

const (
	formatUnknown modelFormat = iota
	formatRSM
	formatGLTF
)

func (f modelFormat) String() string {
	switch f {
	case formatRSM:
		return "rsm"
	case formatGLTF:
		return "gltf"
	default:
		return "unknown"
	}
}

var (
	typeRSM = filetype.NewType("rsm", "model/x-ragnarok-rsm")
	typeGLB = filetype.NewType("glb", "model/gltf-binary")
)

func init() {
	filetype.AddMatcher(typeRSM, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte(formats.RSMMagic))
	})
	filetype.AddMatcher(typeGLB, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte("glTF"))
	})
}

// detectFormat picks a decoder by extension, then by content.
func detectFormat(source string, data []byte) (modelFormat, error) {
	switch strings.ToLower(path.Ext(stripQuery(source))) {
	case ".rsm", ".rsm2":
		return formatRSM, nil
	case ".glb", ".gltf":
		return formatGLTF, nil
	}

	kind, _ := filetype.Match(data)
	switch kind {
	case typeRSM:
		return formatRSM, nil
	case typeGLB:
		return formatGLTF, nil
	case types.Unknown:
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			return formatGLTF, nil
		}
	}
	return formatUnknown, fmt.Errorf("unrecognised model format for %q", source)
}

func stripQuery(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}
