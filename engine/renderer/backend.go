package renderer

import (
	"context"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

// Backend is a native graphics API the executor replays streams against.
// Implementations are driven from a single goroutine.
type Backend interface {
	Name() string

	// Submit sends everything recorded since the last submit, tagged with serial.
	Submit(serial core.Serial) error
	// CompletedSerial is the highest serial the GPU has finished.
	CompletedSerial() core.Serial
	WaitForSerial(ctx context.Context, serial core.Serial) error
	// Tick releases backend-owned transient objects used up to finished.
	Tick(finished core.Serial)
	Shutdown() error

	MemoryDevice() memory.Device
	ResourceDevice(allocator *memory.Allocator) resource.Device

	BeginRenderTarget(desc *metadata.RenderTargetDescriptor) error
	EndRenderTarget()
	ClearColor(location uint32, color [4]float32)
	ClearDepthStencil(aspects metadata.ClearAspect, depth float32, stencil uint32)
	SetViewport(x, y, width, height float32)
	SetBlendColor(color [4]float32)
	SetStencilReference(reference uint32)

	// DestroyPipeline and DestroyBindGroup release the native objects once
	// the next submitted serial is finished.
	DestroyPipeline(pipeline *metadata.Pipeline)
	DestroyBindGroup(group *metadata.BindGroup)

	BindPipeline(pipeline *metadata.Pipeline) error
	SetPushConstant(stage metadata.ShaderStage, slot uint32, kind metadata.PushConstantType, value uint32)
	BindVertexBuffer(slot uint32, buffer *resource.Resource, offset uint64, input metadata.VertexInput)
	BindIndexBuffer(buffer *resource.Resource, offset uint64, format metadata.IndexFormat)
	BindGroup(index uint32, group *metadata.BindGroup, bindings []metadata.ResolvedBinding)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex, firstInstance uint32)
	Dispatch(x, y, z uint32)
	// MemoryBarrier makes shader writes of a dispatch visible to later commands.
	MemoryBarrier()

	CopyBufferToBuffer(src *resource.Resource, srcOffset uint64, dst *resource.Resource, dstOffset, size uint64) error
	CopyBufferToTexture(src *resource.Resource, srcOffset uint64, rowPitch uint32, dst *resource.Resource, region metadata.TextureRegion) error
	CopyTextureToBuffer(src *resource.Resource, region metadata.TextureRegion, dst *resource.Resource, dstOffset uint64, rowPitch uint32) error

	ResourceBarrier(barrier metadata.Barrier)
}
