package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Info           *VulkanDeviceInfo

	// One family runs graphics, compute and transfer work.
	QueueIndex  uint32
	Queue       vk.Queue
	CommandPool vk.CommandPool
}

// PickQueueFamily returns the first family supporting both graphics and
// compute.
func PickQueueFamily(families []vk.QueueFamilyProperties) (uint32, bool) {
	want := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)
	for i, family := range families {
		if family.QueueCount > 0 && family.QueueFlags&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceTypeRank(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 4
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 3
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 1
	default:
		return 0
	}
}

func deviceTypeString(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "Virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	default:
		return "Unknown"
	}
}

// SelectPhysicalDevice picks the highest ranked device with a usable queue
// family.
func SelectPhysicalDevice(context *VulkanContext) (*VulkanDevice, error) {
	physicalDevices, err := GetPhysicalDevices(context.Instance)
	if err != nil {
		return nil, err
	}
	if len(physicalDevices) == 0 {
		return nil, errors.Wrap(core.ErrNativeCall, "no devices which support Vulkan were found")
	}

	var selected *VulkanDevice
	for _, physicalDevice := range physicalDevices {
		info, err := GatherDeviceInfo(physicalDevice)
		if err != nil {
			core.LogWarn("Skipping device: %s", err)
			continue
		}
		queueIndex, ok := PickQueueFamily(info.QueueFamilies)
		if !ok {
			core.LogInfo("Device '%s' has no graphics and compute queue. Skipping.", info.Name)
			continue
		}
		if selected != nil && deviceTypeRank(info.Type) <= deviceTypeRank(selected.Info.Type) {
			continue
		}
		selected = &VulkanDevice{
			PhysicalDevice: physicalDevice,
			Info:           info,
			QueueIndex:     queueIndex,
		}
	}
	if selected == nil {
		return nil, errors.Wrap(core.ErrNativeCall, "no Vulkan device meets the requirements")
	}

	info := selected.Info
	core.LogInfo("Selected device: '%s'.", info.Name)
	core.LogInfo("GPU type is %s.", deviceTypeString(info.Type))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version.Major(vk.Version(info.APIVersion)),
		vk.Version.Minor(vk.Version(info.APIVersion)),
		vk.Version.Patch(vk.Version(info.APIVersion)),
	)
	for _, heap := range info.MemoryHeaps {
		if heap.DeviceLocal {
			core.LogInfo("Local GPU memory: %d MiB", heap.Size>>20)
		} else {
			core.LogInfo("Shared System memory: %d MiB", heap.Size>>20)
		}
	}
	return selected, nil
}

func DeviceCreate(context *VulkanContext) error {
	device, err := SelectPhysicalDevice(context)
	if err != nil {
		return err
	}
	context.Device = device

	core.LogInfo("Creating logical device...")
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: device.QueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	var extensions []string
	if contains(device.Info.Extensions, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		return VulkanError(res, "vkCreateDevice")
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(logicalDevice, device.QueueIndex, 0, &queue)
	device.Queue = queue

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return VulkanError(res, "vkCreateCommandPool")
	}
	device.CommandPool = pool
	core.LogInfo("Command pool created.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.Queue = nil

	if device.CommandPool != nil {
		core.LogInfo("Destroying command pool...")
		vk.DestroyCommandPool(device.LogicalDevice, device.CommandPool, context.Allocator)
		device.CommandPool = nil
	}
	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}
	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
}
