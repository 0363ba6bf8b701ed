package resource

import (
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// Buffer sizes are rounded up to this many bytes.
const BufferAlignment uint64 = 256

type Descriptor struct {
	Kind   metadata.ResourceKind
	Label  string
	Size   uint64
	Width  uint32
	Height uint32
	Depth  uint32
	Format metadata.TextureFormat
	// MipLevels of 0 means 1.
	MipLevels    uint32
	AllowedUsage metadata.Usage
	InitialUsage metadata.Usage
}

// Device creates the native objects behind resources.
type Device interface {
	CreateResource(desc *Descriptor, heap metadata.HeapType, initial metadata.NativeState) (any, error)
	DestroyResource(native any)
	MapResource(native any, offset, size uint64) ([]byte, error)
	UnmapResource(native any)
}

// Resource is a buffer or a texture. AllowedUsage never changes after
// creation, CurrentUsage is the usage as of the last replayed command.
type Resource struct {
	ID           uint32
	Kind         metadata.ResourceKind
	Label        string
	AllowedUsage metadata.Usage
	CurrentUsage metadata.Usage
	Heap         metadata.HeapType
	Size         uint64
	Format       metadata.TextureFormat
	Width        uint32
	Height       uint32
	Depth        uint32
	MipLevels    uint32
	Native       any

	mapped   []byte
	released bool
}

func (r *Resource) IsMapped() bool {
	return r.mapped != nil
}

// MipExtent is the size of one dimension at the given mip level.
func MipExtent(extent, level uint32) uint32 {
	return max(1, extent>>level)
}

// MaxMipLevels is the length of the full mip chain of a texture.
func MaxMipLevels(width, height, depth uint32) uint32 {
	largest := max(width, height, depth)
	levels := uint32(1)
	for largest > 1 {
		largest >>= 1
		levels++
	}
	return levels
}

// TextureSize is the tightly packed size of every level of a texture, level
// 0 first.
func TextureSize(width, height, depth, mipLevels uint32, format metadata.TextureFormat) uint64 {
	var size uint64
	for level := uint32(0); level < mipLevels; level++ {
		size += uint64(MipExtent(width, level)) * uint64(MipExtent(height, level)) *
			uint64(MipExtent(depth, level)) * uint64(format.PixelSize())
	}
	return size
}

// RowPitch is the tightly packed size of one level 0 texture row.
func (r *Resource) RowPitch() uint32 {
	return r.Width * r.Format.PixelSize()
}

// StateForUsage returns the native state implied by a set of usages.
func StateForUsage(kind metadata.ResourceKind, format metadata.TextureFormat, usage metadata.Usage) metadata.NativeState {
	state := metadata.NativeStateCommon
	if usage.Has(metadata.UsageTransferSrc) {
		state |= metadata.NativeStateCopySource
	}
	if usage.Has(metadata.UsageTransferDst) {
		state |= metadata.NativeStateCopyDest
	}
	if usage.Has(metadata.UsageVertex | metadata.UsageUniform) {
		state |= metadata.NativeStateVertexAndConstantBuffer
	}
	if usage.Has(metadata.UsageIndex) {
		state |= metadata.NativeStateIndexBuffer
	}
	if usage.Has(metadata.UsageStorage) {
		state |= metadata.NativeStateUnorderedAccess
	}
	if kind == metadata.ResourceKindTexture {
		if usage.Has(metadata.UsageSampled) {
			state |= metadata.NativeStateShaderResource
		}
		if usage.Has(metadata.UsageOutputAttachment) {
			if format.HasDepthOrStencil() {
				state |= metadata.NativeStateDepthWrite
			} else {
				state |= metadata.NativeStateRenderTarget
			}
		}
	}
	return state
}

// HeapForUsage places buffers that can be mapped in host visible heaps.
func HeapForUsage(kind metadata.ResourceKind, allowed metadata.Usage) metadata.HeapType {
	if kind != metadata.ResourceKindBuffer {
		return metadata.HeapTypeDefault
	}
	switch {
	case allowed.Has(metadata.UsageMapRead):
		return metadata.HeapTypeReadback
	case allowed.Has(metadata.UsageMapWrite):
		return metadata.HeapTypeUpload
	default:
		return metadata.HeapTypeDefault
	}
}

// ComputeTransition returns the barrier needed to go from current to target.
// Resources that can be mapped live in a heap with a single legal state and
// never get a barrier.
func ComputeTransition(res *Resource, current, target metadata.Usage) (metadata.Barrier, bool) {
	if res.AllowedUsage.Has(metadata.MapUsages) {
		return metadata.Barrier{}, false
	}

	before := StateForUsage(res.Kind, res.Format, current)
	after := StateForUsage(res.Kind, res.Format, target)
	if before == after {
		return metadata.Barrier{}, false
	}

	return metadata.Barrier{
		ResourceID:  res.ID,
		Kind:        res.Kind,
		Format:      res.Format,
		Native:      res.Native,
		BeforeUsage: current,
		AfterUsage:  target,
		StateBefore: before,
		StateAfter:  after,
	}, true
}
