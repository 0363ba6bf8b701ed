package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle    vk.Image
	View      vk.ImageView
	Alloc     *memory.Allocation
	Width     uint32
	Height    uint32
	Depth     uint32
	MipLevels uint32
	Format    metadata.TextureFormat
	// Layout the image is in once every recorded command has run.
	Layout vk.ImageLayout
	State  metadata.NativeState
}

func (vi *VulkanImage) SubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     AspectForFormat(vi.Format),
		BaseMipLevel:   0,
		LevelCount:     vi.MipLevels,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func ImageCreate(context *VulkanContext, allocator *memory.Allocator, width, height, depth, mipLevels uint32, format metadata.TextureFormat, usage metadata.Usage) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Width:     width,
		Height:    height,
		Depth:     depth,
		MipLevels: mipLevels,
		Format:    format,
		Layout:    vk.ImageLayoutUndefined,
	}

	imageType := vk.ImageType2d
	if depth > 1 {
		imageType = vk.ImageType3d
	}
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  depth,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Format:        TranslateTextureFormat(format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         TranslateImageUsage(usage, format),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	if res := vk.CreateImage(context.LogicalDevice(), &imageCreateInfo, context.Allocator, &image); res != vk.Success {
		return nil, VulkanError(res, "vkCreateImage")
	}
	outImage.Handle = image

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.LogicalDevice(), image, &memoryRequirements)
	memoryRequirements.Deref()

	alloc, err := allocator.Allocate(memory.Requirements{
		Size:           uint64(memoryRequirements.Size),
		Alignment:      max(uint64(memoryRequirements.Alignment), VULKAN_TEXTURE_ALIGNMENT),
		MemoryTypeBits: memoryRequirements.MemoryTypeBits,
	}, false)
	if err != nil {
		vk.DestroyImage(context.LogicalDevice(), image, context.Allocator)
		return nil, err
	}
	outImage.Alloc = alloc

	if res := vk.BindImageMemory(context.LogicalDevice(), image, alloc.Memory.(vk.DeviceMemory), vk.DeviceSize(alloc.Offset)); res != vk.Success {
		outImage.Destroy(context, allocator)
		return nil, VulkanError(res, "vkBindImageMemory")
	}

	view, err := ImageViewCreate(context, outImage, 0, mipLevels)
	if err != nil {
		outImage.Destroy(context, allocator)
		return nil, err
	}
	outImage.View = view
	return outImage, nil
}

// ImageViewCreate makes a view of levelCount mips starting at baseLevel.
func ImageViewCreate(context *VulkanContext, image *VulkanImage, baseLevel, levelCount uint32) (vk.ImageView, error) {
	viewType := vk.ImageViewType2d
	if image.Depth > 1 {
		viewType = vk.ImageViewType3d
	}
	subresource := image.SubresourceRange()
	subresource.BaseMipLevel = baseLevel
	subresource.LevelCount = levelCount

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            image.Handle,
		ViewType:         viewType,
		Format:           TranslateTextureFormat(image.Format),
		SubresourceRange: subresource,
	}

	var view vk.ImageView
	if res := vk.CreateImageView(context.LogicalDevice(), &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := VulkanError(res, "vkCreateImageView")
		core.LogError(err.Error())
		return nil, err
	}
	return view, nil
}

func (vi *VulkanImage) Destroy(context *VulkanContext, allocator *memory.Allocator) {
	if vi.View != nil {
		vk.DestroyImageView(context.LogicalDevice(), vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.LogicalDevice(), vi.Handle, context.Allocator)
		vi.Handle = nil
	}
	if vi.Alloc != nil {
		allocator.Free(vi.Alloc)
		vi.Alloc = nil
	}
}
