package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// Bytes of push constant storage per stage.
const pushConstantStageSize = metadata.MaxPushConstants * VULKAN_PUSH_CONSTANT_SIZE

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	BindPoint      vk.PipelineBindPoint
	/** @brief Byte offset of slot 0 of every stage inside the push constant block. */
	PushConstantOffsets [metadata.ShaderStageCount]uint32
}

type ComputePipelineConfig struct {
	Label      string
	Code       []uint32
	EntryPoint string
	/** @brief Bind group layouts, indexed by group. */
	BindGroups    []metadata.BindGroupLayout
	PushConstants metadata.PushConstantInfo
}

type RenderPipelineConfig struct {
	Label              string
	VertexCode         []uint32
	VertexEntryPoint   string
	FragmentCode       []uint32
	FragmentEntryPoint string
	BindGroups         []metadata.BindGroupLayout
	PushConstants      [metadata.ShaderStageCount]metadata.PushConstantInfo
	InputState         metadata.InputState
	IndexFormat        metadata.IndexFormat
	Topology           metadata.PrimitiveTopology
	/** @brief Formats of the color attachments by location, undefined for unused locations. */
	ColorFormats       [metadata.MaxColorAttachments]metadata.TextureFormat
	DepthStencilFormat metadata.TextureFormat
	DepthTest          bool
	DepthWrite         bool
	Blend              bool
}

func newPipelineLayout(context *VulkanContext, descriptors *VulkanDescriptorCache, groups []metadata.BindGroupLayout, ranges []vk.PushConstantRange) (vk.PipelineLayout, error) {
	if uint32(len(groups)) > metadata.MaxBindGroups {
		return nil, errors.Newf("cannot have more than %d bind groups, got %d", metadata.MaxBindGroups, len(groups))
	}
	setLayouts := make([]vk.DescriptorSetLayout, len(groups))
	for i, group := range groups {
		setLayout, err := descriptors.SetLayout(context, group)
		if err != nil {
			return nil, err
		}
		setLayouts[i] = setLayout
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}

	var pPipelineLayout vk.PipelineLayout
	if err := context.Locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreatePipelineLayout(context.LogicalDevice(), &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout)
		if !VulkanResultIsSuccess(result) {
			return VulkanError(result, "vkCreatePipelineLayout")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return pPipelineLayout, nil
}

func NewComputePipeline(context *VulkanContext, descriptors *VulkanDescriptorCache, config *ComputePipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{BindPoint: vk.PipelineBindPointCompute}

	stage, err := NewShaderStage(context, config.Code, config.EntryPoint, vk.ShaderStageComputeBit)
	if err != nil {
		return nil, errors.Wrapf(err, "compute pipeline '%s'", config.Label)
	}
	defer stage.Destroy(context)

	var ranges []vk.PushConstantRange
	if config.PushConstants.Mask != 0 {
		ranges = append(ranges, vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       pushConstantStageSize,
		})
	}
	layout, err := newPipelineLayout(context, descriptors, config.BindGroups, ranges)
	if err != nil {
		return nil, err
	}
	outPipeline.PipelineLayout = layout

	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:             vk.StructureTypeComputePipelineCreateInfo,
		Stage:             stage.ShaderStageCreateInfo,
		Layout:            layout,
		BasePipelineIndex: -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	var cache vk.PipelineCache
	if err := context.Locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateComputePipelines(context.LogicalDevice(), cache, 1, []vk.ComputePipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines)
		if !VulkanResultIsSuccess(result) {
			return VulkanError(result, "vkCreateComputePipelines")
		}
		return nil
	}); err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Compute pipeline '%s' created!", config.Label)
	return outPipeline, nil
}

func NewGraphicsPipeline(context *VulkanContext, descriptors *VulkanDescriptorCache, config *RenderPipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{BindPoint: vk.PipelineBindPointGraphics}

	vertexStage, err := NewShaderStage(context, config.VertexCode, config.VertexEntryPoint, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, errors.Wrapf(err, "render pipeline '%s' vertex stage", config.Label)
	}
	defer vertexStage.Destroy(context)
	stages := []vk.PipelineShaderStageCreateInfo{vertexStage.ShaderStageCreateInfo}
	if len(config.FragmentCode) > 0 {
		fragmentStage, err := NewShaderStage(context, config.FragmentCode, config.FragmentEntryPoint, vk.ShaderStageFragmentBit)
		if err != nil {
			return nil, errors.Wrapf(err, "render pipeline '%s' fragment stage", config.Label)
		}
		defer fragmentStage.Destroy(context)
		stages = append(stages, fragmentStage.ShaderStageCreateInfo)
	}

	// Vertex and fragment constants live side by side in the block.
	var ranges []vk.PushConstantRange
	for _, stage := range []metadata.ShaderStage{metadata.ShaderStageVertex, metadata.ShaderStageFragment} {
		offset := uint32(stage) * pushConstantStageSize
		outPipeline.PushConstantOffsets[stage] = offset
		if config.PushConstants[stage].Mask == 0 {
			continue
		}
		ranges = append(ranges, vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(TranslateShaderStage(stage)),
			Offset:     offset,
			Size:       pushConstantStageSize,
		})
	}
	layout, err := newPipelineLayout(context, descriptors, config.BindGroups, ranges)
	if err != nil {
		return nil, err
	}
	outPipeline.PipelineLayout = layout

	// A pass with the same attachment formats is compatible with every
	// transient pass the pipeline is later used in.
	var colors [metadata.MaxColorAttachments]VulkanAttachment
	colorCount := 0
	for location, format := range config.ColorFormats {
		if format != metadata.TextureFormatUndefined {
			colors[location] = VulkanAttachment{Format: format, Layout: vk.ImageLayoutColorAttachmentOptimal}
			colorCount = location + 1
		}
	}
	var depthStencil *VulkanAttachment
	if config.DepthStencilFormat != metadata.TextureFormatUndefined {
		depthStencil = &VulkanAttachment{Format: config.DepthStencilFormat, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	}
	renderpass, err := RenderpassCreate(context, colors, depthStencil)
	if err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	defer renderpass.RenderpassDestroy(context)

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencilState := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if config.DepthTest {
		depthStencilState.DepthTestEnable = vk.True
		depthStencilState.DepthCompareOp = vk.CompareOpLess
	}
	if config.DepthWrite {
		depthStencilState.DepthWriteEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorConstantColor,
		DstColorBlendFactor: vk.BlendFactorOneMinusConstantColor,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorConstantAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusConstantAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if config.Blend {
		colorBlendAttachmentState.BlendEnable = vk.True
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, colorCount)
	for i := range blendAttachments {
		blendAttachments[i] = colorBlendAttachmentState
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateBlendConstants,
		vk.DynamicStateStencilReference,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	var bindingDescriptions []vk.VertexInputBindingDescription
	for _, slot := range metadata.IterateBits(config.InputState.InputsSetMask) {
		input := config.InputState.Inputs[slot]
		inputRate := vk.VertexInputRateVertex
		if input.StepMode == metadata.InputStepModeInstance {
			inputRate = vk.VertexInputRateInstance
		}
		bindingDescriptions = append(bindingDescriptions, vk.VertexInputBindingDescription{
			Binding:   slot,
			Stride:    input.Stride,
			InputRate: inputRate,
		})
	}
	attributeDescriptions := make([]vk.VertexInputAttributeDescription, len(config.InputState.Attributes))
	for i, attribute := range config.InputState.Attributes {
		attributeDescriptions[i] = vk.VertexInputAttributeDescription{
			Location: attribute.Location,
			Binding:  attribute.Input,
			Format:   TranslateVertexFormat(attribute.Format),
			Offset:   attribute.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindingDescriptions)),
		PVertexBindingDescriptions:      bindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(attributeDescriptions)),
		PVertexAttributeDescriptions:    attributeDescriptions,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               TranslateTopology(config.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencilState,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	var cache vk.PipelineCache
	if err := context.Locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(context.LogicalDevice(), cache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines)
		if !VulkanResultIsSuccess(result) {
			return VulkanError(result, "vkCreateGraphicsPipelines")
		}
		return nil
	}); err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline '%s' created!", config.Label)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	_ = context.Locks.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != nil {
			vk.DestroyPipeline(context.LogicalDevice(), pipeline.Handle, context.Allocator)
			pipeline.Handle = nil
		}
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(context.LogicalDevice(), pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, pipeline.BindPoint, pipeline.Handle)
}
