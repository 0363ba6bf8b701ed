package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Alloc  *memory.Allocation
	Size   uint64
	Heap   metadata.HeapType
	State  metadata.NativeState
}

func BufferCreate(context *VulkanContext, allocator *memory.Allocator, size uint64, usage metadata.Usage, heap metadata.HeapType) (*VulkanBuffer, error) {
	outBuffer := &VulkanBuffer{
		Size: size,
		Heap: heap,
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       TranslateBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if res := vk.CreateBuffer(context.LogicalDevice(), &bufferCreateInfo, context.Allocator, &buffer); res != vk.Success {
		return nil, VulkanError(res, "vkCreateBuffer")
	}
	outBuffer.Handle = buffer

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.LogicalDevice(), buffer, &memoryRequirements)
	memoryRequirements.Deref()

	alloc, err := allocator.Allocate(memory.Requirements{
		Size:           uint64(memoryRequirements.Size),
		Alignment:      uint64(memoryRequirements.Alignment),
		MemoryTypeBits: memoryRequirements.MemoryTypeBits,
	}, heap.IsHostVisible())
	if err != nil {
		vk.DestroyBuffer(context.LogicalDevice(), buffer, context.Allocator)
		return nil, err
	}
	outBuffer.Alloc = alloc

	if res := vk.BindBufferMemory(context.LogicalDevice(), buffer, alloc.Memory.(vk.DeviceMemory), vk.DeviceSize(alloc.Offset)); res != vk.Success {
		outBuffer.Destroy(context, allocator)
		return nil, VulkanError(res, "vkBindBufferMemory")
	}
	return outBuffer, nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext, allocator *memory.Allocator) {
	if vb.Handle != nil {
		vk.DestroyBuffer(context.LogicalDevice(), vb.Handle, context.Allocator)
		vb.Handle = nil
	}
	if vb.Alloc != nil {
		allocator.Free(vb.Alloc)
		vb.Alloc = nil
	}
}
