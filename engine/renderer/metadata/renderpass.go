package metadata

type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
)

/**
 * @brief Describes one attachment of a render pass. FirstSubpass is the first
 * subpass that references the attachment, load operations only apply there.
 */
type AttachmentInfo struct {
	Format        TextureFormat
	ColorLoadOp   LoadOp
	DepthLoadOp   LoadOp
	StencilLoadOp LoadOp
	FirstSubpass  uint32
}

/**
 * @brief Attachment slots used by a subpass. ColorAttachments maps a color
 * location to an attachment slot of the render pass.
 */
type SubpassInfo struct {
	ColorAttachmentsSet       uint32
	ColorAttachments          [MaxColorAttachments]uint32
	DepthStencilAttachmentSet bool
	DepthStencilAttachment    uint32
}

type RenderPass struct {
	ID          uint32
	Attachments []AttachmentInfo
	Subpasses   []SubpassInfo
}

// NewRenderPass records for every attachment the first subpass using it.
func NewRenderPass(attachments []AttachmentInfo, subpasses []SubpassInfo) *RenderPass {
	rp := &RenderPass{
		Attachments: append([]AttachmentInfo(nil), attachments...),
		Subpasses:   append([]SubpassInfo(nil), subpasses...),
	}
	seen := make([]bool, len(rp.Attachments))
	mark := func(slot, subpass uint32) {
		if int(slot) < len(seen) && !seen[slot] {
			seen[slot] = true
			rp.Attachments[slot].FirstSubpass = subpass
		}
	}
	for i, sp := range rp.Subpasses {
		for _, location := range IterateBits(uint64(sp.ColorAttachmentsSet)) {
			mark(sp.ColorAttachments[location], uint32(i))
		}
		if sp.DepthStencilAttachmentSet {
			mark(sp.DepthStencilAttachment, uint32(i))
		}
	}
	return rp
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

/**
 * @brief Textures bound to a render pass. Attachments and Clears are indexed by
 * attachment slot; Attachments holds texture handles.
 */
type Framebuffer struct {
	ID          uint32
	Width       uint32
	Height      uint32
	Attachments []uint32
	Clears      []ClearValue
}

func (fb *Framebuffer) ClearValue(slot uint32) ClearValue {
	if int(slot) < len(fb.Clears) {
		return fb.Clears[slot]
	}
	return ClearValue{}
}

type RenderTargetAttachment struct {
	Texture uint32
	Format  TextureFormat
	Native  any
}

/** @brief The transient target built for one subpass. */
type RenderTargetDescriptor struct {
	Width           uint32
	Height          uint32
	ColorsSet       uint32
	Colors          [MaxColorAttachments]RenderTargetAttachment
	HasDepthStencil bool
	DepthStencil    RenderTargetAttachment
}

type ClearAspect uint8

const (
	ClearAspectDepth   ClearAspect = 0x1
	ClearAspectStencil ClearAspect = 0x2
)
