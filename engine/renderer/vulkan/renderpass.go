package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

/** @brief One attachment of a single-subpass render pass. */
type VulkanAttachment struct {
	Format metadata.TextureFormat
	// Layout the image is in before and after the pass.
	Layout vk.ImageLayout
}

/**
 * @brief A render pass with exactly one subpass. Color attachments are indexed
 * by location, a zero format leaves the location unused.
 */
type VulkanRenderpass struct {
	Handle          vk.RenderPass
	ColorsSet       uint32
	HasDepthStencil bool
}

// RenderpassCreate loads and stores every attachment. Clears are issued as
// commands inside the pass, so the same pass serves cleared and loaded
// targets.
func RenderpassCreate(context *VulkanContext, colors [metadata.MaxColorAttachments]VulkanAttachment, depthStencil *VulkanAttachment) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{}

	var attachmentDescriptions []vk.AttachmentDescription
	var colorAttachmentReferences []vk.AttachmentReference
	for location, color := range colors {
		if color.Format == metadata.TextureFormatUndefined {
			colorAttachmentReferences = append(colorAttachmentReferences, vk.AttachmentReference{
				Attachment: vk.AttachmentUnused,
				Layout:     vk.ImageLayoutUndefined,
			})
			continue
		}
		outRenderpass.ColorsSet |= 1 << location
		colorAttachmentReferences = append(colorAttachmentReferences, vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         TranslateTextureFormat(color.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  color.Layout,
			FinalLayout:    color.Layout,
		})
	}
	// Trailing unused locations are dropped.
	used := 0
	for i, ref := range colorAttachmentReferences {
		if ref.Attachment != vk.AttachmentUnused {
			used = i + 1
		}
	}
	colorAttachmentReferences = colorAttachmentReferences[:used]

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachmentReferences)),
		PColorAttachments:    colorAttachmentReferences,
	}

	if depthStencil != nil {
		outRenderpass.HasDepthStencil = true
		depthAttachmentReference := vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         TranslateTextureFormat(depthStencil.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpLoad,
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  depthStencil.Layout,
			FinalLayout:    depthStencil.Layout,
		})
		subpass.PDepthStencilAttachment = &depthAttachmentReference
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.LogicalDevice(), &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		err := VulkanError(res, "vkCreateRenderPass")
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.LogicalDevice(), vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{
				Width:  framebuffer.Width,
				Height: framebuffer.Height,
			},
		},
	}
	commandBuffer.BeginRenderPass(&beginInfo)
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	commandBuffer.EndRenderPass()
}
