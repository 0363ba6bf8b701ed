package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
)

// memoryDevice hands whole VkDeviceMemory objects to the allocator, which
// does the sub-allocation.
type memoryDevice struct {
	context *VulkanContext
}

func (d *memoryDevice) MemoryProperties() ([]memory.MemoryType, []memory.MemoryHeap) {
	info := d.context.Device.Info
	return info.MemoryTypes, info.MemoryHeaps
}

func (d *memoryDevice) AllocateMemory(size uint64, typeIndex uint32) (memory.Handle, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}

	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.context.LogicalDevice(), &allocateInfo, d.context.Allocator, &mem); res != vk.Success {
		return nil, VulkanError(res, "vkAllocateMemory")
	}
	return mem, nil
}

func (d *memoryDevice) FreeMemory(handle memory.Handle) {
	vk.FreeMemory(d.context.LogicalDevice(), handle.(vk.DeviceMemory), d.context.Allocator)
}

// MapMemory maps the whole object persistently. The mapping goes away with
// the memory.
func (d *memoryDevice) MapMemory(handle memory.Handle, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	if res := vk.MapMemory(d.context.LogicalDevice(), handle.(vk.DeviceMemory), 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		return nil, VulkanError(res, "vkMapMemory")
	}
	return unsafe.Slice((*byte)(data), size), nil
}
