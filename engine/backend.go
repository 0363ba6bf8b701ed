package engine

import (
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/null"
	"github.com/spaghettifunk/gpucore/engine/renderer/vulkan"
)

// NewBackend builds the backend named by cfg.Backend.
func NewBackend(cfg core.DeviceConfig) (renderer.Backend, error) {
	rendererType, err := renderer.ParseRendererType(cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch rendererType {
	case renderer.Vulkan:
		backend, err := vulkan.New(cfg)
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
		return backend, nil
	default:
		return null.New(cfg), nil
	}
}
