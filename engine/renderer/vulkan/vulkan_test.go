package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// fakeQuery answers the count query with countResult and the fill query
// with fillResult.
func fakeQuery(items []string, countResult, fillResult vk.Result) func(count *uint32, out []string) vk.Result {
	return func(count *uint32, out []string) vk.Result {
		if out == nil {
			*count = uint32(len(items))
			return countResult
		}
		n := copy(out, items)
		*count = uint32(n)
		return fillResult
	}
}

func TestEnumerateAcceptsIncompleteCount(t *testing.T) {
	out, err := enumerate("vkTest", fakeQuery([]string{"a", "b"}, vk.Incomplete, vk.Success))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestEnumerateRejectsIncompleteFill(t *testing.T) {
	_, err := enumerate("vkTest", fakeQuery([]string{"a"}, vk.Success, vk.Incomplete))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIncomplete))
	assert.Contains(t, err.Error(), "vkTest returned VK_INCOMPLETE")
}

func TestEnumerateFailingCount(t *testing.T) {
	_, err := enumerate("vkTest", fakeQuery(nil, vk.ErrorOutOfHostMemory, vk.Success))
	assert.True(t, errors.Is(err, core.ErrOutOfHostMemory))
}

func TestEnumerateNothing(t *testing.T) {
	out, err := enumerate("vkTest", fakeQuery(nil, vk.Success, vk.ErrorUnknown))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVulkanErrorSentinels(t *testing.T) {
	cases := map[vk.Result]error{
		vk.ErrorOutOfDeviceMemory: core.ErrOutOfDeviceMemory,
		vk.ErrorOutOfHostMemory:   core.ErrOutOfHostMemory,
		vk.Incomplete:             core.ErrIncomplete,
		vk.ErrorUnknown:           core.ErrUnknown,
		vk.ErrorDeviceLost:        core.ErrNativeCall,
	}
	for result, sentinel := range cases {
		err := VulkanError(result, "vkCall")
		assert.True(t, errors.Is(err, sentinel), "%s", VulkanResultString(result))
	}
	assert.True(t, VulkanResultIsSuccess(vk.Incomplete))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestCString(t *testing.T) {
	assert.Equal(t, "VK_LAYER", CString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
	assert.Equal(t, "abc", CString([]byte("abc")))
	assert.Equal(t, "name\x00", VulkanSafeString("name"))
	assert.Equal(t, "\x00", VulkanSafeString(""))
}

func TestTranslateMemoryProperties(t *testing.T) {
	props := vk.PhysicalDeviceMemoryProperties{
		MemoryTypeCount: 2,
		MemoryHeapCount: 2,
	}
	props.MemoryTypes[0] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		HeapIndex:     0,
	}
	props.MemoryTypes[1] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit),
		HeapIndex:     1,
	}
	props.MemoryHeaps[0] = vk.MemoryHeap{Size: 1 << 30, Flags: vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit)}
	props.MemoryHeaps[1] = vk.MemoryHeap{Size: 1 << 28}

	types, heaps := TranslateMemoryProperties(&props)
	require.Len(t, types, 2)
	require.Len(t, heaps, 2)
	assert.Equal(t, memory.MemoryType{Flags: memory.PropertyDeviceLocal, HeapIndex: 0}, types[0])
	assert.Equal(t, memory.PropertyHostVisible|memory.PropertyHostCoherent|memory.PropertyHostCached, types[1].Flags)
	assert.Equal(t, memory.MemoryHeap{Size: 1 << 30, DeviceLocal: true}, heaps[0])
	assert.False(t, heaps[1].DeviceLocal)
}

func TestPickQueueFamily(t *testing.T) {
	families := []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 2},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit), QueueCount: 1},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit), QueueCount: 0},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit), QueueCount: 4},
	}
	index, ok := PickQueueFamily(families)
	require.True(t, ok)
	assert.Equal(t, uint32(3), index)

	_, ok = PickQueueFamily(families[:3])
	assert.False(t, ok)
}

func TestDeviceTypeRankPrefersDiscrete(t *testing.T) {
	assert.Greater(t, deviceTypeRank(vk.PhysicalDeviceTypeDiscreteGpu), deviceTypeRank(vk.PhysicalDeviceTypeIntegratedGpu))
	assert.Greater(t, deviceTypeRank(vk.PhysicalDeviceTypeIntegratedGpu), deviceTypeRank(vk.PhysicalDeviceTypeCpu))
	assert.Equal(t, "Discrete", deviceTypeString(vk.PhysicalDeviceTypeDiscreteGpu))
}

func TestLayoutForState(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, LayoutForState(metadata.NativeStateRenderTarget))
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, LayoutForState(metadata.NativeStateDepthWrite))
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, LayoutForState(metadata.NativeStateCopyDest))
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, LayoutForState(metadata.NativeStateCopySource))
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, LayoutForState(metadata.NativeStateShaderResource))
	// Mixed states have no single optimal layout.
	assert.Equal(t, vk.ImageLayoutGeneral, LayoutForState(metadata.NativeStateRenderTarget|metadata.NativeStateCopySource))
	assert.Equal(t, vk.ImageLayoutGeneral, LayoutForState(metadata.NativeStateCommon))
}

func TestAccessAndStageForState(t *testing.T) {
	access := AccessForState(metadata.NativeStateCopyDest | metadata.NativeStateIndexBuffer)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit|vk.AccessIndexReadBit), access)

	stage := StageForState(metadata.NativeStateRenderTarget)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), stage)

	assert.Zero(t, StageForState(metadata.NativeStateCommon))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), srcStages(metadata.NativeStateCommon))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), dstStages(metadata.NativeStateCommon))
}

func TestTranslateUsages(t *testing.T) {
	bufferUsage := TranslateBufferUsage(metadata.UsageMapRead | metadata.UsageVertex)
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit|vk.BufferUsageVertexBufferBit), bufferUsage)

	depth := TranslateImageUsage(metadata.UsageOutputAttachment, metadata.TextureFormatD32FloatS8Uint)
	assert.Equal(t, vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), depth)
	color := TranslateImageUsage(metadata.UsageOutputAttachment|metadata.UsageSampled, metadata.TextureFormatR8G8B8A8Unorm)
	assert.Equal(t, vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageSampledBit), color)

	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), AspectForFormat(metadata.TextureFormatD32FloatS8Uint))
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, TranslateTextureFormat(metadata.TextureFormatB8G8R8A8Unorm))
	assert.Equal(t, vk.IndexTypeUint32, TranslateIndexFormat(metadata.IndexFormatUint32))
}

func TestBufferImageCopyRegion(t *testing.T) {
	image := &VulkanImage{Width: 8, Height: 4, Depth: 1, MipLevels: 2, Format: metadata.TextureFormatR8G8B8A8Unorm}
	buffer := &VulkanBuffer{Size: 256}

	region, err := bufferImageCopy(buffer, 0, 64, image, metadata.TextureRegion{X: 2, Y: 1, Width: 4, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(16), region.BufferRowLength)
	assert.Equal(t, vk.Extent3D{Width: 4, Height: 2, Depth: 1}, region.ImageExtent)
	assert.Equal(t, vk.Offset3D{X: 2, Y: 1, Z: 0}, region.ImageOffset)

	// Level 1 is 4x2.
	_, err = bufferImageCopy(buffer, 0, 64, image, metadata.TextureRegion{Width: 8, Height: 1, Level: 1})
	assert.True(t, errors.Is(err, core.ErrNativeCall))

	_, err = bufferImageCopy(buffer, 0, 8, image, metadata.TextureRegion{Width: 4, Height: 1})
	assert.Error(t, err, "row pitch smaller than a row")

	_, err = bufferImageCopy(buffer, 200, 32, image, metadata.TextureRegion{Width: 8, Height: 4})
	assert.Error(t, err, "buffer too small")

	depth := &VulkanImage{Width: 4, Height: 4, Depth: 1, MipLevels: 1, Format: metadata.TextureFormatD32FloatS8Uint}
	_, err = bufferImageCopy(buffer, 0, 32, depth, metadata.TextureRegion{Width: 4, Height: 4})
	assert.Error(t, err)
}

func TestLockPoolSerializesGroups(t *testing.T) {
	pool := NewVulkanLockPool()
	calls := 0
	err := pool.SafeCall(QueueManagement, func() error {
		calls++
		return pool.SafeCall(CommandManagement, func() error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	failure := errors.New("boom")
	assert.ErrorIs(t, pool.SafeCall(PipelineManagement, func() error { return failure }), failure)
}

func TestShaderModuleInfoSizeIsInBytes(t *testing.T) {
	code := []uint32{spirvMagic, 0x00010000, 0, 1, 0}
	info := shaderModuleInfo(code)
	assert.Equal(t, vk.StructureTypeShaderModuleCreateInfo, info.SType)
	assert.Equal(t, uint64(20), info.CodeSize)
	assert.Equal(t, code, info.PCode)
}

func TestFreeingUnallocatedBindGroupIsNoop(t *testing.T) {
	group := &VulkanBindGroup{}
	group.Free(&VulkanContext{})
	assert.Nil(t, group.Set)
}
