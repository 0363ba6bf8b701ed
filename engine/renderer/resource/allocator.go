package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/gpucore/engine/containers"
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// Allocator owns every live resource. Callers hold handles, native objects
// are only ever destroyed from Tick.
type Allocator struct {
	device   Device
	serials  core.SerialSource
	table    *core.HandleTable[*Resource]
	releases *containers.SerialQueue[uint32]
}

func NewAllocator(device Device, serials core.SerialSource) *Allocator {
	return &Allocator{
		device:   device,
		serials:  serials,
		table:    core.NewHandleTable[*Resource](64),
		releases: containers.NewSerialQueue[uint32](),
	}
}

func (a *Allocator) Create(desc Descriptor) (*Resource, error) {
	var kindUsages metadata.Usage
	switch desc.Kind {
	case metadata.ResourceKindBuffer:
		kindUsages = metadata.BufferUsages
		if desc.Size == 0 {
			return nil, errors.Newf("buffer '%s' has zero size", desc.Label)
		}
		desc.Size = metadata.GetAligned(desc.Size, BufferAlignment)
	case metadata.ResourceKindTexture:
		kindUsages = metadata.TextureUsages
		if desc.Width == 0 || desc.Height == 0 {
			return nil, errors.Newf("texture '%s' has zero extent %dx%d", desc.Label, desc.Width, desc.Height)
		}
		if desc.Format.PixelSize() == 0 {
			return nil, errors.Newf("texture '%s' has unsupported format %s", desc.Label, desc.Format)
		}
		if desc.Depth == 0 {
			desc.Depth = 1
		}
		if desc.MipLevels == 0 {
			desc.MipLevels = 1
		}
		if full := MaxMipLevels(desc.Width, desc.Height, desc.Depth); desc.MipLevels > full {
			return nil, errors.Newf("texture '%s' has %d mip levels, a %dx%dx%d texture has at most %d",
				desc.Label, desc.MipLevels, desc.Width, desc.Height, desc.Depth, full)
		}
		desc.Size = TextureSize(desc.Width, desc.Height, desc.Depth, desc.MipLevels, desc.Format)
	default:
		return nil, errors.Newf("unknown resource kind %d", desc.Kind)
	}
	if extra := desc.AllowedUsage &^ kindUsages; extra != 0 {
		return nil, errors.Newf("%s '%s' does not support usage 0x%x", desc.Kind, desc.Label, uint32(extra))
	}
	if desc.InitialUsage&^desc.AllowedUsage != 0 {
		return nil, errors.Newf("%s '%s' initial usage 0x%x is not allowed", desc.Kind, desc.Label, uint32(desc.InitialUsage))
	}
	if desc.Label == "" {
		desc.Label = uuid.New().String()
	}

	heap := HeapForUsage(desc.Kind, desc.AllowedUsage)
	var initial metadata.NativeState
	switch heap {
	case metadata.HeapTypeReadback:
		initial = metadata.NativeStateCopyDest
	case metadata.HeapTypeUpload:
		initial = metadata.NativeStateGenericRead
	default:
		initial = StateForUsage(desc.Kind, desc.Format, desc.InitialUsage)
	}

	native, err := a.device.CreateResource(&desc, heap, initial)
	if err != nil {
		err = errors.Wrapf(err, "failed to create %s '%s'", desc.Kind, desc.Label)
		core.LogError(err.Error())
		return nil, err
	}

	res := &Resource{
		Kind:         desc.Kind,
		Label:        desc.Label,
		AllowedUsage: desc.AllowedUsage,
		CurrentUsage: desc.InitialUsage,
		Heap:         heap,
		Size:         desc.Size,
		Format:       desc.Format,
		Width:        desc.Width,
		Height:       desc.Height,
		Depth:        desc.Depth,
		MipLevels:    desc.MipLevels,
		Native:       native,
	}
	res.ID = a.table.Acquire(res)
	core.LogDebug("resource: created %s '%s' (id=%d, %d bytes, heap=%d)", res.Kind, res.Label, res.ID, res.Size, res.Heap)
	return res, nil
}

// Get returns a live resource. Released resources are not returned even
// though their handle is still reserved.
func (a *Allocator) Get(id uint32) (*Resource, bool) {
	res, ok := a.table.Get(id)
	if !ok || res.released {
		return nil, false
	}
	return res, true
}

func (a *Allocator) mustGet(id uint32) *Resource {
	res, ok := a.Get(id)
	core.Assert(ok, "resource: unknown handle %d", id)
	return res
}

// Transition records target as the current usage of the resource and
// returns the barrier to issue, if any.
func (a *Allocator) Transition(id uint32, target metadata.Usage) (metadata.Barrier, bool) {
	res := a.mustGet(id)
	core.Assert(target&^res.AllowedUsage == 0, "resource: %s '%s' does not allow usage 0x%x", res.Kind, res.Label, uint32(target))
	barrier, ok := ComputeTransition(res, res.CurrentUsage, target)
	res.CurrentUsage = target
	return barrier, ok
}

func (a *Allocator) Map(id uint32, offset, size uint64) ([]byte, error) {
	res := a.mustGet(id)
	core.Assert(res.AllowedUsage.Has(metadata.MapUsages), "resource: '%s' cannot be mapped", res.Label)
	if offset+size > res.Size {
		return nil, errors.Newf("map range [%d, %d) is outside '%s' of %d bytes", offset, offset+size, res.Label, res.Size)
	}

	data, err := a.device.MapResource(res.Native, offset, size)
	if err != nil {
		err = errors.Wrapf(err, "failed to map '%s'", res.Label)
		core.LogError(err.Error())
		return nil, err
	}
	res.mapped = data
	return data, nil
}

func (a *Allocator) Unmap(id uint32) {
	res := a.mustGet(id)
	if res.mapped == nil {
		return
	}
	a.device.UnmapResource(res.Native)
	res.mapped = nil
}

// Release schedules the resource for destruction once the current serial
// is finished.
func (a *Allocator) Release(id uint32) {
	res := a.mustGet(id)
	if res.mapped != nil {
		a.device.UnmapResource(res.Native)
		res.mapped = nil
	}
	res.released = true
	a.releases.Enqueue(id, a.serials.CurrentSerial())
}

func (a *Allocator) Tick(finished core.Serial) {
	a.releases.IterateUpTo(finished, func(id uint32) {
		res, _ := a.table.Get(id)
		a.device.DestroyResource(res.Native)
		if err := a.table.Release(id); err != nil {
			core.Fatalf("resource: %v", err)
		}
		core.LogDebug("resource: destroyed %s '%s' (id=%d)", res.Kind, res.Label, id)
	})
}

// Destroy destroys pending and live resources alike.
func (a *Allocator) Destroy() {
	if live := a.Live(); live > 0 {
		core.LogWarn("resource: destroying %d live resources", live)
	}
	a.table.Each(func(id uint32, res *Resource) {
		if res.mapped != nil {
			a.device.UnmapResource(res.Native)
			res.mapped = nil
		}
		a.device.DestroyResource(res.Native)
		_ = a.table.Release(id)
	})
	a.releases = containers.NewSerialQueue[uint32]()
}

// Live counts resources that have not been released.
func (a *Allocator) Live() int {
	live := 0
	a.table.Each(func(id uint32, res *Resource) {
		if !res.released {
			live++
		}
	})
	return live
}

// Pending counts released resources waiting on their serial.
func (a *Allocator) Pending() int {
	return a.releases.Len()
}
