package executor

import (
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

// VertexInputCache tracks vertex and index buffer bindings and applies them
// lazily before draws.
type VertexInputCache struct {
	buffers [metadata.MaxVertexInputs]*resource.Resource
	offsets [metadata.MaxVertexInputs]uint64
	dirty   uint64

	indexBuffer *resource.Resource
	indexOffset uint64
	indexDirty  bool

	lastInputState  *metadata.InputState
	lastIndexFormat metadata.IndexFormat
}

func NewVertexInputCache() *VertexInputCache {
	return &VertexInputCache{}
}

// OnBeginPass forgets the last input layout so the next pipeline marks
// every slot it uses.
func (c *VertexInputCache) OnBeginPass() {
	c.lastInputState = nil
}

func (c *VertexInputCache) OnSetIndexBuffer(buffer *resource.Resource, offset uint64) {
	c.indexBuffer = buffer
	c.indexOffset = offset
	c.indexDirty = true
}

func (c *VertexInputCache) OnSetVertexBuffers(startSlot uint32, buffers []*resource.Resource, offsets []uint64) {
	count := uint32(len(buffers))
	core.Assert(startSlot+count <= metadata.MaxVertexInputs,
		"vertex buffers [%d, %d) exceed the %d slots", startSlot, startSlot+count, metadata.MaxVertexInputs)

	for i := uint32(0); i < count; i++ {
		c.buffers[startSlot+i] = buffers[i]
		c.offsets[startSlot+i] = offsets[i]
	}
	c.dirty |= metadata.RangeMask(startSlot, count)
}

func (c *VertexInputCache) OnSetPipeline(pipeline *metadata.Pipeline) {
	if c.lastInputState != nil && pipeline.InputState == c.lastInputState && pipeline.IndexFormat == c.lastIndexFormat {
		return
	}
	c.lastInputState = pipeline.InputState
	c.lastIndexFormat = pipeline.IndexFormat

	c.indexDirty = true
	if pipeline.InputState != nil {
		c.dirty |= pipeline.InputState.InputsSetMask
	}
}

// Apply binds the index buffer when dirty and the dirty vertex buffers the
// pipeline reads. It returns the number of vertex buffers bound.
func (c *VertexInputCache) Apply(backend renderer.Backend, pipeline *metadata.Pipeline) int {
	if c.indexDirty && c.indexBuffer != nil {
		backend.BindIndexBuffer(c.indexBuffer, c.indexOffset, pipeline.IndexFormat)
		c.indexDirty = false
	}

	inputs := pipeline.InputState
	if inputs == nil {
		return 0
	}
	toApply := c.dirty & inputs.InputsSetMask
	for _, slot := range metadata.IterateBits(toApply) {
		core.Assert(c.buffers[slot] != nil, "pipeline '%s' reads vertex buffer slot %d which was never set", pipeline.Label, slot)
		backend.BindVertexBuffer(slot, c.buffers[slot], c.offsets[slot], inputs.Inputs[slot])
	}
	c.dirty &^= toApply
	return len(metadata.IterateBits(toApply))
}

func (c *VertexInputCache) Dirty() uint64 {
	return c.dirty
}

func (c *VertexInputCache) IndexDirty() bool {
	return c.indexDirty
}

func (c *VertexInputCache) HasIndexBuffer() bool {
	return c.indexBuffer != nil
}

func (c *VertexInputCache) Buffer(slot uint32) (*resource.Resource, uint64) {
	return c.buffers[slot], c.offsets[slot]
}
