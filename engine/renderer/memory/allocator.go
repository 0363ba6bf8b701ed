package memory

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/containers"
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

type freeRange struct {
	offset uint64
	size   uint64
}

type block struct {
	memory    Handle
	typeIndex uint32
	mappable  bool
	dedicated bool
	size      uint64
	mapped    []byte
	// sorted by offset, never adjacent
	free []freeRange
	live int
}

type poolKey struct {
	typeIndex uint32
	mappable  bool
}

type pendingFree struct {
	block  *block
	offset uint64
	size   uint64
}

// Allocation is a range of device memory. Mapped is non-nil only for
// allocations requested as mappable and stays valid until Free.
type Allocation struct {
	Memory Handle
	Offset uint64
	Size   uint64
	Mapped []byte

	block *block
	freed bool
}

type Stats struct {
	Blocks       int
	Reserved     uint64
	InUse        uint64
	PendingFrees int
}

// Allocator sub-allocates device memory blocks. Freed ranges only become
// reusable once Tick reports the serial they were freed at as finished.
type Allocator struct {
	device  Device
	serials core.SerialSource
	config  core.MemoryConfig

	types []MemoryType
	heaps []MemoryHeap

	pools    map[poolKey][]*block
	releases *containers.SerialQueue[pendingFree]
	inUse    uint64
}

func NewAllocator(device Device, serials core.SerialSource, config core.MemoryConfig) *Allocator {
	types, heaps := device.MemoryProperties()
	if config.BlockSize == 0 {
		config.BlockSize = core.DefaultConfig().Memory.BlockSize
	}
	if config.DedicatedThreshold == 0 || config.DedicatedThreshold > config.BlockSize {
		config.DedicatedThreshold = config.BlockSize
	}
	return &Allocator{
		device:   device,
		serials:  serials,
		config:   config,
		types:    types,
		heaps:    heaps,
		pools:    make(map[poolKey][]*block),
		releases: containers.NewSerialQueue[pendingFree](),
	}
}

// FindMemoryType picks the memory type for a request. Mappable requests
// need host visible and coherent memory, other requests favor device local
// memory. All things equal the type in the biggest heap wins.
func FindMemoryType(types []MemoryType, heaps []MemoryHeap, typeBits uint32, mappable bool) (uint32, error) {
	best := -1
	for i, t := range types {
		if typeBits != 0 && typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if mappable && !t.Flags.Has(PropertyHostVisible|PropertyHostCoherent) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}

		current := types[best]
		if !mappable {
			local := t.Flags.Has(PropertyDeviceLocal)
			if local != current.Flags.Has(PropertyDeviceLocal) {
				if local {
					best = i
				}
				continue
			}
		}
		if heapSize(heaps, t.HeapIndex) > heapSize(heaps, current.HeapIndex) {
			best = i
		}
	}

	if best == -1 {
		return 0, errors.Wrapf(core.ErrNoSuitableMemoryType, "type bits 0x%x, mappable=%t", typeBits, mappable)
	}
	return uint32(best), nil
}

func heapSize(heaps []MemoryHeap, index uint32) uint64 {
	if int(index) < len(heaps) {
		return heaps[index].Size
	}
	return 0
}

// Allocate returns a range satisfying req. Failures are returned to the
// caller, nothing is retried.
func (a *Allocator) Allocate(req Requirements, mappable bool) (*Allocation, error) {
	core.Assert(req.Size > 0, "memory: zero-sized allocation")
	alignment := req.Alignment
	if alignment == 0 {
		alignment = 1
	}
	core.Assert(metadata.IsPowerOfTwo(alignment), "memory: alignment %d is not a power of two", alignment)

	typeIndex, err := FindMemoryType(a.types, a.heaps, req.MemoryTypeBits, mappable)
	if err != nil {
		core.LogError("memory: %s", err)
		return nil, err
	}

	key := poolKey{typeIndex: typeIndex, mappable: mappable}
	dedicated := req.Size >= a.config.DedicatedThreshold
	if !dedicated {
		for _, blk := range a.pools[key] {
			if blk.dedicated {
				continue
			}
			if offset, ok := blk.carve(req.Size, alignment); ok {
				return a.newAllocation(blk, offset, req.Size), nil
			}
		}
	}

	blockSize := metadata.GetAligned(req.Size, alignment)
	if !dedicated && blockSize < a.config.BlockSize {
		blockSize = a.config.BlockSize
	}
	blk, err := a.createBlock(key, blockSize, dedicated)
	if err != nil {
		return nil, err
	}
	offset, ok := blk.carve(req.Size, alignment)
	core.Assert(ok, "memory: fresh block of %d bytes cannot hold %d bytes", blockSize, req.Size)
	return a.newAllocation(blk, offset, req.Size), nil
}

func (a *Allocator) createBlock(key poolKey, size uint64, dedicated bool) (*block, error) {
	handle, err := a.device.AllocateMemory(size, key.typeIndex)
	if err != nil {
		err = errors.Wrapf(err, "failed to allocate %d bytes of memory type %d", size, key.typeIndex)
		core.LogError(err.Error())
		return nil, err
	}

	blk := &block{
		memory:    handle,
		typeIndex: key.typeIndex,
		mappable:  key.mappable,
		dedicated: dedicated,
		size:      size,
		free:      []freeRange{{offset: 0, size: size}},
	}
	if key.mappable {
		data, err := a.device.MapMemory(handle, size)
		if err != nil {
			core.Fatalf("memory: failed to map %d bytes of memory type %d: %v", size, key.typeIndex, err)
		}
		blk.mapped = data
	}

	a.pools[key] = append(a.pools[key], blk)
	return blk, nil
}

func (a *Allocator) newAllocation(blk *block, offset, size uint64) *Allocation {
	blk.live++
	a.inUse += size
	alloc := &Allocation{
		Memory: blk.memory,
		Offset: offset,
		Size:   size,
		block:  blk,
	}
	if blk.mappable {
		alloc.Mapped = blk.mapped[offset : offset+size : offset+size]
	}
	return alloc
}

// Free hands the allocation back. The range stays reserved until Tick
// observes the serial that was current at the time of the call.
func (a *Allocator) Free(alloc *Allocation) {
	core.Assert(alloc != nil && alloc.block != nil, "memory: freeing an allocation not made by this allocator")
	core.Assert(!alloc.freed, "memory: double free of %d bytes at offset %d", alloc.Size, alloc.Offset)
	alloc.freed = true
	alloc.Mapped = nil

	a.releases.Enqueue(pendingFree{
		block:  alloc.block,
		offset: alloc.Offset,
		size:   alloc.Size,
	}, a.serials.CurrentSerial())
}

// Tick reclaims every range freed at or before finished. Blocks left with
// no live range are released to the device.
func (a *Allocator) Tick(finished core.Serial) {
	a.releases.IterateUpTo(finished, func(p pendingFree) {
		a.inUse -= p.size
		p.block.release(p.offset, p.size)
		p.block.live--
		if p.block.live == 0 {
			a.destroyBlock(p.block)
		}
	})
}

func (a *Allocator) destroyBlock(blk *block) {
	key := poolKey{typeIndex: blk.typeIndex, mappable: blk.mappable}
	blocks := a.pools[key]
	for i, b := range blocks {
		if b == blk {
			a.pools[key] = append(blocks[:i], blocks[i+1:]...)
			break
		}
	}
	if len(a.pools[key]) == 0 {
		delete(a.pools, key)
	}
	blk.mapped = nil
	a.device.FreeMemory(blk.memory)
}

// Destroy releases every block, including ranges that are still waiting on
// a serial.
func (a *Allocator) Destroy() {
	if !a.releases.IsEmpty() {
		core.LogWarn("memory: destroying allocator with %d pending frees", a.releases.Len())
	}
	for key, blocks := range a.pools {
		for _, blk := range blocks {
			blk.mapped = nil
			a.device.FreeMemory(blk.memory)
		}
		delete(a.pools, key)
	}
	a.releases = containers.NewSerialQueue[pendingFree]()
	a.inUse = 0
}

func (a *Allocator) Stats() Stats {
	stats := Stats{
		InUse:        a.inUse,
		PendingFrees: a.releases.Len(),
	}
	for _, blocks := range a.pools {
		stats.Blocks += len(blocks)
		for _, blk := range blocks {
			stats.Reserved += blk.size
		}
	}
	return stats
}

// MemoryTypes exposes the types reported by the device.
func (a *Allocator) MemoryTypes() []MemoryType {
	return a.types
}

// carve takes the first free range that fits size at the given alignment.
func (b *block) carve(size, alignment uint64) (uint64, bool) {
	for i, r := range b.free {
		aligned := metadata.GetAligned(r.offset, alignment)
		padding := aligned - r.offset
		if r.size < padding || r.size-padding < size {
			continue
		}

		var replacement []freeRange
		if padding > 0 {
			replacement = append(replacement, freeRange{offset: r.offset, size: padding})
		}
		if tail := r.size - padding - size; tail > 0 {
			replacement = append(replacement, freeRange{offset: aligned + size, size: tail})
		}
		b.free = append(b.free[:i], append(replacement, b.free[i+1:]...)...)
		return aligned, true
	}
	return 0, false
}

// release puts a range back, merging it with its neighbours.
func (b *block) release(offset, size uint64) {
	i := 0
	for i < len(b.free) && b.free[i].offset < offset {
		i++
	}
	b.free = append(b.free, freeRange{})
	copy(b.free[i+1:], b.free[i:])
	b.free[i] = freeRange{offset: offset, size: size}

	if i+1 < len(b.free) && b.free[i].offset+b.free[i].size == b.free[i+1].offset {
		b.free[i].size += b.free[i+1].size
		b.free = append(b.free[:i+1], b.free[i+2:]...)
	}
	if i > 0 && b.free[i-1].offset+b.free[i-1].size == b.free[i].offset {
		b.free[i-1].size += b.free[i].size
		b.free = append(b.free[:i], b.free[i+1:]...)
	}
}
