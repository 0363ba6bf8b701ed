package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterateBits(t *testing.T) {
	assert.Empty(t, IterateBits(0))
	assert.Equal(t, []uint32{0, 3, 63}, IterateBits(1|1<<3|1<<63))
}

func TestRangeMask(t *testing.T) {
	assert.Equal(t, uint64(0), RangeMask(4, 0))
	assert.Equal(t, uint64(0b111000), RangeMask(3, 3))
	assert.Equal(t, uint64(0xffffffff), RangeMask(0, MaxPushConstants))
}

func TestGetAligned(t *testing.T) {
	assert.Equal(t, uint64(0), GetAligned(0, 256))
	assert.Equal(t, uint64(256), GetAligned(1, 256))
	assert.Equal(t, uint64(512), GetAligned(512, 256))
	assert.True(t, IsAligned(768, 256))
	assert.False(t, IsAligned(770, 256))
}

func TestNewRenderPassRecordsFirstSubpass(t *testing.T) {
	rp := NewRenderPass(
		[]AttachmentInfo{
			{Format: TextureFormatR8G8B8A8Unorm, ColorLoadOp: LoadOpClear},
			{Format: TextureFormatR8G8B8A8Unorm, ColorLoadOp: LoadOpClear},
			{Format: TextureFormatD32FloatS8Uint, DepthLoadOp: LoadOpClear},
		},
		[]SubpassInfo{
			{ColorAttachmentsSet: 0b1, ColorAttachments: [MaxColorAttachments]uint32{0}},
			{
				ColorAttachmentsSet:       0b11,
				ColorAttachments:          [MaxColorAttachments]uint32{0, 1},
				DepthStencilAttachmentSet: true,
				DepthStencilAttachment:    2,
			},
		},
	)

	assert.Equal(t, uint32(0), rp.Attachments[0].FirstSubpass)
	assert.Equal(t, uint32(1), rp.Attachments[1].FirstSubpass)
	assert.Equal(t, uint32(1), rp.Attachments[2].FirstSubpass)
}

func TestIterateStages(t *testing.T) {
	assert.Equal(t, []ShaderStage{ShaderStageVertex, ShaderStageCompute}, IterateStages(ShaderStageBitVertex|ShaderStageBitCompute))
	assert.Len(t, IterateStages(ShaderStageBitAll), int(ShaderStageCount))
}
