package renderer

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/core"
)

type RendererType uint8

const (
	Null RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Vulkan:
		return core.BackendVulkan
	default:
		return core.BackendNull
	}
}

func ParseRendererType(name string) (RendererType, error) {
	switch strings.ToLower(name) {
	case core.BackendNull:
		return Null, nil
	case core.BackendVulkan:
		return Vulkan, nil
	default:
		return Null, errors.Newf("unknown renderer backend '%s'", name)
	}
}
