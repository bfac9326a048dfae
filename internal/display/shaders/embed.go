// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// ModelVertexShader is the vertex shader for slot models.
//
//go:embed model.vert
var ModelVertexShader string

// ModelFragmentShader is the fragment shader for slot models.
//
//go:embed model.frag
var ModelFragmentShader string
