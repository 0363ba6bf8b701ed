package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	Global *VulkanGlobalInfo
	Device *VulkanDevice

	// Serializes access to the queue and the command pool.
	Locks *VulkanLockPool
}

func (vc *VulkanContext) LogicalDevice() vk.Device {
	return vc.Device.LogicalDevice
}
