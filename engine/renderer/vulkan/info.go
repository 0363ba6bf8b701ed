package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
)

const (
	extensionNameDebugReport = "VK_EXT_debug_report"
	extensionNameSurface     = "VK_KHR_surface"
	extensionNameSwapchain   = "VK_KHR_swapchain"
)

/** @brief Layers and extensions offered by the Vulkan loader. */
type VulkanGlobalInfo struct {
	Layers     []string
	Extensions []string

	Validation  bool
	DebugReport bool
	Surface     bool
}

/** @brief What a physical device reports about itself. */
type VulkanDeviceInfo struct {
	Name          string
	Type          vk.PhysicalDeviceType
	APIVersion    uint32
	DriverVersion uint32

	MemoryTypes   []memory.MemoryType
	MemoryHeaps   []memory.MemoryHeap
	QueueFamilies []vk.QueueFamilyProperties

	Layers     []string
	Extensions []string
	Swapchain  bool
}

// enumerate runs the count-then-fill query pattern. The count query may
// report VK_INCOMPLETE, the fill query must succeed outright.
func enumerate[T any](call string, query func(count *uint32, out []T) vk.Result) ([]T, error) {
	var count uint32
	if res := query(&count, nil); res != vk.Success && res != vk.Incomplete {
		return nil, VulkanError(res, call)
	}
	if count == 0 {
		return nil, nil
	}

	out := make([]T, count)
	if res := query(&count, out); res != vk.Success {
		return nil, VulkanError(res, call)
	}
	return out[:count], nil
}

func layerNames(layers []vk.LayerProperties) []string {
	names := make([]string, len(layers))
	for i := range layers {
		layers[i].Deref()
		names[i] = CString(layers[i].LayerName[:])
	}
	return names
}

func extensionNames(extensions []vk.ExtensionProperties) []string {
	names := make([]string, len(extensions))
	for i := range extensions {
		extensions[i].Deref()
		names[i] = CString(extensions[i].ExtensionName[:])
	}
	return names
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func GatherGlobalInfo() (*VulkanGlobalInfo, error) {
	layers, err := enumerate("vkEnumerateInstanceLayerProperties", func(count *uint32, out []vk.LayerProperties) vk.Result {
		return vk.EnumerateInstanceLayerProperties(count, out)
	})
	if err != nil {
		return nil, err
	}
	extensions, err := enumerate("vkEnumerateInstanceExtensionProperties", func(count *uint32, out []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateInstanceExtensionProperties("", count, out)
	})
	if err != nil {
		return nil, err
	}

	info := &VulkanGlobalInfo{
		Layers:     layerNames(layers),
		Extensions: extensionNames(extensions),
	}
	info.Validation = contains(info.Layers, VULKAN_VALIDATION_LAYER)
	info.DebugReport = contains(info.Extensions, extensionNameDebugReport)
	info.Surface = contains(info.Extensions, extensionNameSurface)
	return info, nil
}

func GetPhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	return enumerate("vkEnumeratePhysicalDevices", func(count *uint32, out []vk.PhysicalDevice) vk.Result {
		return vk.EnumeratePhysicalDevices(instance, count, out)
	})
}

func GatherDeviceInfo(physicalDevice vk.PhysicalDevice) (*VulkanDeviceInfo, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
	properties.Deref()

	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memoryProperties)
	memoryProperties.Deref()
	types, heaps := TranslateMemoryProperties(&memoryProperties)

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &familyCount, families)
	for i := range families {
		families[i].Deref()
	}

	layers, err := enumerate("vkEnumerateDeviceLayerProperties", func(count *uint32, out []vk.LayerProperties) vk.Result {
		return vk.EnumerateDeviceLayerProperties(physicalDevice, count, out)
	})
	if err != nil {
		return nil, err
	}
	extensions, err := enumerate("vkEnumerateDeviceExtensionProperties", func(count *uint32, out []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateDeviceExtensionProperties(physicalDevice, "", count, out)
	})
	if err != nil {
		return nil, err
	}

	info := &VulkanDeviceInfo{
		Name:          CString(properties.DeviceName[:]),
		Type:          properties.DeviceType,
		APIVersion:    properties.ApiVersion,
		DriverVersion: properties.DriverVersion,
		MemoryTypes:   types,
		MemoryHeaps:   heaps,
		QueueFamilies: families[:familyCount],
		Layers:        layerNames(layers),
		Extensions:    extensionNames(extensions),
	}
	info.Swapchain = contains(info.Extensions, extensionNameSwapchain)
	return info, nil
}

// TranslateMemoryProperties converts the driver's memory description into
// the allocator's types and heaps.
func TranslateMemoryProperties(props *vk.PhysicalDeviceMemoryProperties) ([]memory.MemoryType, []memory.MemoryHeap) {
	types := make([]memory.MemoryType, props.MemoryTypeCount)
	for i := range types {
		props.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(props.MemoryTypes[i].PropertyFlags)
		var out memory.PropertyFlags
		if flags&vk.MemoryPropertyDeviceLocalBit != 0 {
			out |= memory.PropertyDeviceLocal
		}
		if flags&vk.MemoryPropertyHostVisibleBit != 0 {
			out |= memory.PropertyHostVisible
		}
		if flags&vk.MemoryPropertyHostCoherentBit != 0 {
			out |= memory.PropertyHostCoherent
		}
		if flags&vk.MemoryPropertyHostCachedBit != 0 {
			out |= memory.PropertyHostCached
		}
		types[i] = memory.MemoryType{Flags: out, HeapIndex: props.MemoryTypes[i].HeapIndex}
	}

	heaps := make([]memory.MemoryHeap, props.MemoryHeapCount)
	for i := range heaps {
		props.MemoryHeaps[i].Deref()
		heaps[i] = memory.MemoryHeap{
			Size:        uint64(props.MemoryHeaps[i].Size),
			DeviceLocal: vk.MemoryHeapFlagBits(props.MemoryHeaps[i].Flags)&vk.MemoryHeapDeviceLocalBit != 0,
		}
	}
	return types, heaps
}
