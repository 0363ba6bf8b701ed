package null

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

// Memory is a simulated device memory object.
type Memory struct {
	data      []byte
	typeIndex uint32
	freed     bool
}

func (b *Backend) MemoryDevice() memory.Device {
	return b
}

func (b *Backend) MemoryProperties() ([]memory.MemoryType, []memory.MemoryHeap) {
	return memoryTypes, memoryHeaps
}

func (b *Backend) AllocateMemory(size uint64, typeIndex uint32) (memory.Handle, error) {
	if int(typeIndex) >= len(memoryTypes) {
		return nil, errors.Wrapf(core.ErrNativeCall, "memory type %d does not exist", typeIndex)
	}
	heap := memoryTypes[typeIndex].HeapIndex
	if b.heapUsed[heap]+size > memoryHeaps[heap].Size {
		return nil, errors.Wrapf(core.ErrOutOfDeviceMemory, "heap %d has %d of %d bytes in use, %d requested",
			heap, b.heapUsed[heap], memoryHeaps[heap].Size, size)
	}

	b.heapUsed[heap] += size
	b.liveMemory++
	return &Memory{data: make([]byte, size), typeIndex: typeIndex}, nil
}

func (b *Backend) FreeMemory(handle memory.Handle) {
	m := handle.(*Memory)
	core.Assert(!m.freed, "null backend: memory freed twice")
	m.freed = true
	b.heapUsed[memoryTypes[m.typeIndex].HeapIndex] -= uint64(len(m.data))
	b.liveMemory--
}

func (b *Backend) MapMemory(handle memory.Handle, size uint64) ([]byte, error) {
	m := handle.(*Memory)
	if !memoryTypes[m.typeIndex].Flags.Has(memory.PropertyHostVisible) {
		return nil, errors.Wrapf(core.ErrNativeCall, "memory type %d is not host visible", m.typeIndex)
	}
	return m.data[:size:size], nil
}

// Resource is the native object behind a buffer or texture. Its bytes live
// in the allocation it was bound to.
type Resource struct {
	alloc  *memory.Allocation
	data   []byte
	kind   metadata.ResourceKind
	heap   metadata.HeapType
	state  metadata.NativeState
	width  uint32
	height uint32
	depth  uint32
	format metadata.TextureFormat
	mapped bool
}

// Bytes exposes the contents of a resource created by this backend.
func Bytes(native any) []byte {
	return native.(*Resource).data
}

// State is the native state the resource was last transitioned to.
func State(native any) metadata.NativeState {
	return native.(*Resource).state
}

type resourceDevice struct {
	backend   *Backend
	allocator *memory.Allocator
}

func (b *Backend) ResourceDevice(allocator *memory.Allocator) resource.Device {
	return &resourceDevice{backend: b, allocator: allocator}
}

func (d *resourceDevice) CreateResource(desc *resource.Descriptor, heap metadata.HeapType, initial metadata.NativeState) (any, error) {
	alignment := resource.BufferAlignment
	if desc.Kind == metadata.ResourceKindTexture {
		alignment = 4096
	}
	alloc, err := d.allocator.Allocate(memory.Requirements{Size: desc.Size, Alignment: alignment}, heap.IsHostVisible())
	if err != nil {
		return nil, err
	}

	mem := alloc.Memory.(*Memory)
	return &Resource{
		alloc:  alloc,
		data:   mem.data[alloc.Offset : alloc.Offset+alloc.Size : alloc.Offset+alloc.Size],
		kind:   desc.Kind,
		heap:   heap,
		state:  initial,
		width:  desc.Width,
		height: desc.Height,
		depth:  desc.Depth,
		format: desc.Format,
	}, nil
}

func (d *resourceDevice) DestroyResource(native any) {
	res := native.(*Resource)
	d.allocator.Free(res.alloc)
	res.data = nil
}

func (d *resourceDevice) MapResource(native any, offset, size uint64) ([]byte, error) {
	res := native.(*Resource)
	if !res.heap.IsHostVisible() {
		return nil, errors.Wrap(core.ErrNativeCall, "mapping a resource outside host visible memory")
	}
	res.mapped = true
	return res.data[offset : offset+size : offset+size], nil
}

func (d *resourceDevice) UnmapResource(native any) {
	native.(*Resource).mapped = false
}
