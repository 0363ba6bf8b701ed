package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

const (
	VULKAN_DESCRIPTOR_POOL_MAX_SETS            uint32 = 256
	VULKAN_DESCRIPTOR_POOL_DESCRIPTORS_BY_TYPE uint32 = 1024
)

/**
 * @brief The descriptor set behind a bind group. Sets are written once, the
 * first time the group is bound.
 */
type VulkanBindGroup struct {
	Set     vk.DescriptorSet
	Pool    vk.DescriptorPool
	Written bool
}

/**
 * @brief Owns descriptor set layouts, one per distinct bind group layout, and
 * the pools sets are allocated from.
 */
type VulkanDescriptorCache struct {
	layouts map[metadata.BindGroupLayout]vk.DescriptorSetLayout
	pools   []vk.DescriptorPool
}

func NewVulkanDescriptorCache() *VulkanDescriptorCache {
	return &VulkanDescriptorCache{
		layouts: make(map[metadata.BindGroupLayout]vk.DescriptorSetLayout),
	}
}

func (dc *VulkanDescriptorCache) SetLayout(context *VulkanContext, layout metadata.BindGroupLayout) (vk.DescriptorSetLayout, error) {
	if setLayout, ok := dc.layouts[layout]; ok {
		return setLayout, nil
	}

	var bindings []vk.DescriptorSetLayoutBinding
	for _, slot := range metadata.IterateBits(layout.Mask) {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         slot,
			DescriptorType:  TranslateDescriptorType(layout.Types[slot]),
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		})
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.LogicalDevice(), &createInfo, context.Allocator, &setLayout); res != vk.Success {
		return nil, VulkanError(res, "vkCreateDescriptorSetLayout")
	}
	dc.layouts[layout] = setLayout
	return setLayout, nil
}

func (dc *VulkanDescriptorCache) newPool(context *VulkanContext) (vk.DescriptorPool, error) {
	types := []vk.DescriptorType{
		vk.DescriptorTypeUniformBuffer,
		vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeSampler,
		vk.DescriptorTypeSampledImage,
	}
	sizes := make([]vk.DescriptorPoolSize, len(types))
	for i, t := range types {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: VULKAN_DESCRIPTOR_POOL_DESCRIPTORS_BY_TYPE}
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       VULKAN_DESCRIPTOR_POOL_MAX_SETS,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.LogicalDevice(), &createInfo, context.Allocator, &pool); res != vk.Success {
		return nil, VulkanError(res, "vkCreateDescriptorPool")
	}
	dc.pools = append(dc.pools, pool)
	core.LogDebug("vulkan: descriptor pool %d created", len(dc.pools))
	return pool, nil
}

// Allocate takes a set from the newest pool, opening a fresh pool when the
// current ones are exhausted.
func (dc *VulkanDescriptorCache) Allocate(context *VulkanContext, layout metadata.BindGroupLayout) (*VulkanBindGroup, error) {
	setLayout, err := dc.SetLayout(context, layout)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt == 1 || len(dc.pools) == 0 {
			if _, err := dc.newPool(context); err != nil {
				return nil, err
			}
		}
		pool := dc.pools[len(dc.pools)-1]
		allocateInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
		}
		var set vk.DescriptorSet
		switch res := vk.AllocateDescriptorSets(context.LogicalDevice(), &allocateInfo, &set); res {
		case vk.Success:
			return &VulkanBindGroup{Set: set, Pool: pool}, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			continue
		default:
			return nil, VulkanError(res, "vkAllocateDescriptorSets")
		}
	}
	return nil, VulkanError(vk.ErrorOutOfPoolMemory, "vkAllocateDescriptorSets")
}

// Write fills every binding of the set.
func (bg *VulkanBindGroup) Write(context *VulkanContext, bindings []metadata.ResolvedBinding) {
	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))
	for _, binding := range bindings {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          bg.Set,
			DstBinding:      binding.Binding,
			DescriptorCount: 1,
			DescriptorType:  TranslateDescriptorType(binding.Type),
		}
		switch binding.Type {
		case metadata.BindingTypeUniformBuffer, metadata.BindingTypeStorageBuffer:
			size := vk.DeviceSize(binding.Size)
			if binding.Size == 0 {
				size = vk.DeviceSize(vk.WholeSize)
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: binding.Native.(*VulkanBuffer).Handle,
				Offset: vk.DeviceSize(binding.Offset),
				Range:  size,
			}}
		case metadata.BindingTypeSampler:
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler: binding.Sampler.(vk.Sampler),
			}}
		default:
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   binding.Native.(*VulkanImage).View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		}
		writes = append(writes, write)
	}
	vk.UpdateDescriptorSets(context.LogicalDevice(), uint32(len(writes)), writes, 0, nil)
	bg.Written = true
}

func (bg *VulkanBindGroup) Free(context *VulkanContext) {
	if bg.Set != nil {
		vk.FreeDescriptorSets(context.LogicalDevice(), bg.Pool, 1, &bg.Set)
		bg.Set = nil
	}
}

func (dc *VulkanDescriptorCache) Destroy(context *VulkanContext) {
	for _, pool := range dc.pools {
		vk.DestroyDescriptorPool(context.LogicalDevice(), pool, context.Allocator)
	}
	dc.pools = nil
	for key, setLayout := range dc.layouts {
		vk.DestroyDescriptorSetLayout(context.LogicalDevice(), setLayout, context.Allocator)
		delete(dc.layouts, key)
	}
}

func SamplerCreate(context *VulkanContext, linear bool) (vk.Sampler, error) {
	filter := vk.FilterNearest
	if linear {
		filter = vk.FilterLinear
	}
	samplerCreateInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		MipmapMode:              vk.SamplerMipmapModeNearest,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		MaxLod:                  1000,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.False,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.LogicalDevice(), &samplerCreateInfo, context.Allocator, &sampler); res != vk.Success {
		return nil, VulkanError(res, "vkCreateSampler")
	}
	return sampler, nil
}
