package executor

import (
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// PushConstantCache mirrors push constant values per stage. A dirty bit
// means the value differs from what the backend has applied.
type PushConstantCache struct {
	values [metadata.ShaderStageCount][metadata.MaxPushConstants]uint32
	dirty  [metadata.ShaderStageCount]uint64
}

func NewPushConstantCache() *PushConstantCache {
	return &PushConstantCache{}
}

// OnBeginPass zeroes every value. Nothing is marked dirty: a pipeline is
// always set before the first draw or dispatch and marks what it reads.
func (c *PushConstantCache) OnBeginPass() {
	c.values = [metadata.ShaderStageCount][metadata.MaxPushConstants]uint32{}
	c.dirty = [metadata.ShaderStageCount]uint64{}
}

func (c *PushConstantCache) OnSetPushConstants(stages metadata.ShaderStageBit, offset uint32, values []uint32) {
	count := uint32(len(values))
	core.Assert(offset+count <= metadata.MaxPushConstants,
		"push constants [%d, %d) exceed the %d available slots", offset, offset+count, metadata.MaxPushConstants)

	for _, stage := range metadata.IterateStages(stages) {
		copy(c.values[stage][offset:], values)
		c.dirty[stage] |= metadata.RangeMask(offset, count)
	}
}

// OnSetPipeline marks dirty the slots the new pipeline reads.
func (c *PushConstantCache) OnSetPipeline(pipeline *metadata.Pipeline) {
	for stage := metadata.ShaderStage(0); stage < metadata.ShaderStageCount; stage++ {
		c.dirty[stage] |= pipeline.PushConstantsFor(stage).Mask
	}
}

// Apply sends the slots that are dirty and read by pipeline, for the given
// stages, and returns how many were sent. Other dirty slots stay dirty.
func (c *PushConstantCache) Apply(backend renderer.Backend, pipeline *metadata.Pipeline, stages metadata.ShaderStageBit) int {
	applied := 0
	for _, stage := range metadata.IterateStages(stages) {
		info := pipeline.PushConstantsFor(stage)
		toApply := c.dirty[stage] & info.Mask
		for _, slot := range metadata.IterateBits(toApply) {
			backend.SetPushConstant(stage, slot, info.Types[slot], c.values[stage][slot])
			applied++
		}
		c.dirty[stage] &^= toApply
	}
	return applied
}

func (c *PushConstantCache) Dirty(stage metadata.ShaderStage) uint64 {
	return c.dirty[stage]
}

func (c *PushConstantCache) Value(stage metadata.ShaderStage, slot uint32) uint32 {
	return c.values[stage][slot]
}
