package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

func TranslateTextureFormat(format metadata.TextureFormat) vk.Format {
	switch format {
	case metadata.TextureFormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case metadata.TextureFormatR8G8B8A8Uint:
		return vk.FormatR8g8b8a8Uint
	case metadata.TextureFormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case metadata.TextureFormatD32FloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	default:
		return vk.FormatUndefined
	}
}

func TranslateVertexFormat(format metadata.VertexFormat) vk.Format {
	switch format {
	case metadata.VertexFormatFloatR32G32B32A32:
		return vk.FormatR32g32b32a32Sfloat
	case metadata.VertexFormatFloatR32G32B32:
		return vk.FormatR32g32b32Sfloat
	case metadata.VertexFormatFloatR32G32:
		return vk.FormatR32g32Sfloat
	default:
		return vk.FormatR32Sfloat
	}
}

func TranslateIndexFormat(format metadata.IndexFormat) vk.IndexType {
	if format == metadata.IndexFormatUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func TranslateTopology(topology metadata.PrimitiveTopology) vk.PrimitiveTopology {
	switch topology {
	case metadata.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList
	case metadata.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	case metadata.PrimitiveTopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case metadata.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func TranslateShaderStage(stage metadata.ShaderStage) vk.ShaderStageFlagBits {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit
	default:
		return vk.ShaderStageComputeBit
	}
}

func TranslateDescriptorType(t metadata.BindingType) vk.DescriptorType {
	switch t {
	case metadata.BindingTypeUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case metadata.BindingTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case metadata.BindingTypeSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeSampledImage
	}
}

func TranslateBufferUsage(usage metadata.Usage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	// Mapped buffers are always copy endpoints.
	if usage.Has(metadata.UsageTransferSrc | metadata.UsageMapWrite) {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage.Has(metadata.UsageTransferDst | metadata.UsageMapRead) {
		flags |= vk.BufferUsageTransferDstBit
	}
	if usage.Has(metadata.UsageIndex) {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage.Has(metadata.UsageVertex) {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage.Has(metadata.UsageUniform) {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage.Has(metadata.UsageStorage) {
		flags |= vk.BufferUsageStorageBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func TranslateImageUsage(usage metadata.Usage, format metadata.TextureFormat) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage.Has(metadata.UsageTransferSrc) {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if usage.Has(metadata.UsageTransferDst) {
		flags |= vk.ImageUsageTransferDstBit
	}
	if usage.Has(metadata.UsageSampled) {
		flags |= vk.ImageUsageSampledBit
	}
	if usage.Has(metadata.UsageStorage) {
		flags |= vk.ImageUsageStorageBit
	}
	if usage.Has(metadata.UsageOutputAttachment) {
		if format.HasDepthOrStencil() {
			flags |= vk.ImageUsageDepthStencilAttachmentBit
		} else {
			flags |= vk.ImageUsageColorAttachmentBit
		}
	}
	return vk.ImageUsageFlags(flags)
}

func AspectForFormat(format metadata.TextureFormat) vk.ImageAspectFlags {
	var aspect vk.ImageAspectFlagBits
	if format.HasDepth() {
		aspect |= vk.ImageAspectDepthBit
	}
	if format.HasStencil() {
		aspect |= vk.ImageAspectStencilBit
	}
	if aspect == 0 {
		aspect = vk.ImageAspectColorBit
	}
	return vk.ImageAspectFlags(aspect)
}

// LayoutForState picks the optimal layout when a state has a single image
// use and falls back to the general layout otherwise.
func LayoutForState(state metadata.NativeState) vk.ImageLayout {
	switch state {
	case metadata.NativeStateRenderTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.NativeStateDepthWrite:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.NativeStateDepthRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case metadata.NativeStateCopyDest:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.NativeStateCopySource:
		return vk.ImageLayoutTransferSrcOptimal
	case metadata.NativeStateShaderResource, metadata.NativeStatePixelShaderResource, metadata.NativeStateNonPixelShaderResource:
		return vk.ImageLayoutShaderReadOnlyOptimal
	default:
		return vk.ImageLayoutGeneral
	}
}

func AccessForState(state metadata.NativeState) vk.AccessFlags {
	var access vk.AccessFlagBits
	if state&metadata.NativeStateVertexAndConstantBuffer != 0 {
		access |= vk.AccessVertexAttributeReadBit | vk.AccessUniformReadBit
	}
	if state&metadata.NativeStateIndexBuffer != 0 {
		access |= vk.AccessIndexReadBit
	}
	if state&metadata.NativeStateRenderTarget != 0 {
		access |= vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit
	}
	if state&metadata.NativeStateUnorderedAccess != 0 {
		access |= vk.AccessShaderReadBit | vk.AccessShaderWriteBit
	}
	if state&metadata.NativeStateDepthWrite != 0 {
		access |= vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit
	}
	if state&metadata.NativeStateDepthRead != 0 {
		access |= vk.AccessDepthStencilAttachmentReadBit
	}
	if state&metadata.NativeStateShaderResource != 0 {
		access |= vk.AccessShaderReadBit
	}
	if state&metadata.NativeStateIndirectArgument != 0 {
		access |= vk.AccessIndirectCommandReadBit
	}
	if state&metadata.NativeStateCopyDest != 0 {
		access |= vk.AccessTransferWriteBit
	}
	if state&metadata.NativeStateCopySource != 0 {
		access |= vk.AccessTransferReadBit
	}
	return vk.AccessFlags(access)
}

// StageForState returns the pipeline stages touching a resource in state.
// The common state has no stage, callers substitute top or bottom of pipe.
func StageForState(state metadata.NativeState) vk.PipelineStageFlags {
	var stage vk.PipelineStageFlagBits
	if state&(metadata.NativeStateVertexAndConstantBuffer|metadata.NativeStateIndexBuffer) != 0 {
		stage |= vk.PipelineStageVertexInputBit
	}
	if state&metadata.NativeStateVertexAndConstantBuffer != 0 {
		stage |= vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit
	}
	if state&(metadata.NativeStateUnorderedAccess|metadata.NativeStateNonPixelShaderResource) != 0 {
		stage |= vk.PipelineStageVertexShaderBit | vk.PipelineStageComputeShaderBit
	}
	if state&(metadata.NativeStateUnorderedAccess|metadata.NativeStatePixelShaderResource) != 0 {
		stage |= vk.PipelineStageFragmentShaderBit
	}
	if state&metadata.NativeStateRenderTarget != 0 {
		stage |= vk.PipelineStageColorAttachmentOutputBit
	}
	if state&(metadata.NativeStateDepthWrite|metadata.NativeStateDepthRead) != 0 {
		stage |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	}
	if state&metadata.NativeStateIndirectArgument != 0 {
		stage |= vk.PipelineStageDrawIndirectBit
	}
	if state&(metadata.NativeStateCopyDest|metadata.NativeStateCopySource) != 0 {
		stage |= vk.PipelineStageTransferBit
	}
	return vk.PipelineStageFlags(stage)
}
