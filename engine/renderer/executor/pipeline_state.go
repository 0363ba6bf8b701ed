package executor

import (
	"github.com/spaghettifunk/gpucore/engine/renderer"
)

// PersistentPipelineState holds fixed-function state that survives pipeline
// switches and only reaches the backend when it changes.
type PersistentPipelineState struct {
	stencilReference uint32
	stencilSet       bool

	blendColor [4]float32
	blendSet   bool

	viewport    [4]float32
	viewportSet bool
}

func NewPersistentPipelineState() *PersistentPipelineState {
	return &PersistentPipelineState{}
}

// SetDefaultState forgets what the backend has and applies defaults for a
// target of the given size.
func (s *PersistentPipelineState) SetDefaultState(backend renderer.Backend, width, height uint32) {
	s.Invalidate()
	s.SetStencilReference(backend, 0)
	s.SetBlendColor(backend, [4]float32{})
	s.SetViewport(backend, 0, 0, float32(width), float32(height))
}

func (s *PersistentPipelineState) Invalidate() {
	s.stencilSet = false
	s.blendSet = false
	s.viewportSet = false
}

func (s *PersistentPipelineState) SetStencilReference(backend renderer.Backend, reference uint32) bool {
	if s.stencilSet && s.stencilReference == reference {
		return false
	}
	s.stencilReference = reference
	s.stencilSet = true
	backend.SetStencilReference(reference)
	return true
}

func (s *PersistentPipelineState) SetBlendColor(backend renderer.Backend, color [4]float32) bool {
	if s.blendSet && s.blendColor == color {
		return false
	}
	s.blendColor = color
	s.blendSet = true
	backend.SetBlendColor(color)
	return true
}

func (s *PersistentPipelineState) SetViewport(backend renderer.Backend, x, y, width, height float32) bool {
	viewport := [4]float32{x, y, width, height}
	if s.viewportSet && s.viewport == viewport {
		return false
	}
	s.viewport = viewport
	s.viewportSet = true
	backend.SetViewport(x, y, width, height)
	return true
}

func (s *PersistentPipelineState) StencilReference() uint32 {
	return s.stencilReference
}

func (s *PersistentPipelineState) BlendColor() [4]float32 {
	return s.blendColor
}

func (s *PersistentPipelineState) Viewport() [4]float32 {
	return s.viewport
}
