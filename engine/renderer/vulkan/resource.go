package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

type resourceDevice struct {
	backend   *Backend
	allocator *memory.Allocator
}

func (d *resourceDevice) CreateResource(desc *resource.Descriptor, heap metadata.HeapType, initial metadata.NativeState) (any, error) {
	context := d.backend.context
	if desc.Kind == metadata.ResourceKindBuffer {
		buffer, err := BufferCreate(context, d.allocator, desc.Size, desc.AllowedUsage, heap)
		if err != nil {
			return nil, err
		}
		buffer.State = initial
		return buffer, nil
	}

	if desc.Depth > 1 && desc.Format.HasDepthOrStencil() {
		return nil, errors.Wrapf(core.ErrNativeCall, "3D depth-stencil texture '%s'", desc.Label)
	}
	image, err := ImageCreate(context, d.allocator, desc.Width, desc.Height, desc.Depth, desc.MipLevels, desc.Format, desc.AllowedUsage)
	if err != nil {
		return nil, err
	}
	// Images start undefined, the move to the initial state is recorded
	// ahead of the next batch.
	image.State = initial
	d.backend.pendingImages = append(d.backend.pendingImages, image)
	return image, nil
}

func (d *resourceDevice) DestroyResource(native any) {
	context := d.backend.context
	switch res := native.(type) {
	case *VulkanBuffer:
		res.Destroy(context, d.allocator)
	case *VulkanImage:
		d.backend.forgetPendingImage(res)
		res.Destroy(context, d.allocator)
	default:
		core.Fatalf("vulkan: destroying foreign resource %T", native)
	}
}

// MapResource returns a window into the persistently mapped allocation.
func (d *resourceDevice) MapResource(native any, offset, size uint64) ([]byte, error) {
	buffer, ok := native.(*VulkanBuffer)
	if !ok || buffer.Alloc.Mapped == nil {
		return nil, errors.Wrap(core.ErrNativeCall, "mapping a resource outside host visible memory")
	}
	return buffer.Alloc.Mapped[offset : offset+size : offset+size], nil
}

func (d *resourceDevice) UnmapResource(native any) {}
