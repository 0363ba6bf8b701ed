package engine

import (
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// registry holds the objects command streams refer to by handle, other
// than resources. It is what the executor resolves handles through.
type registry struct {
	pipelines    *core.HandleTable[*metadata.Pipeline]
	renderPasses *core.HandleTable[*metadata.RenderPass]
	framebuffers *core.HandleTable[*metadata.Framebuffer]
	bindGroups   *core.HandleTable[*metadata.BindGroup]
}

func newRegistry() *registry {
	return &registry{
		pipelines:    core.NewHandleTable[*metadata.Pipeline](16),
		renderPasses: core.NewHandleTable[*metadata.RenderPass](8),
		framebuffers: core.NewHandleTable[*metadata.Framebuffer](8),
		bindGroups:   core.NewHandleTable[*metadata.BindGroup](32),
	}
}

func (r *registry) Pipeline(id uint32) (*metadata.Pipeline, bool) {
	return r.pipelines.Get(id)
}

func (r *registry) RenderPass(id uint32) (*metadata.RenderPass, bool) {
	return r.renderPasses.Get(id)
}

func (r *registry) Framebuffer(id uint32) (*metadata.Framebuffer, bool) {
	return r.framebuffers.Get(id)
}

func (r *registry) BindGroup(id uint32) (*metadata.BindGroup, bool) {
	return r.bindGroups.Get(id)
}

func (r *registry) len() int {
	return r.pipelines.Len() + r.renderPasses.Len() + r.framebuffers.Len() + r.bindGroups.Len()
}
