package engine

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

type MapReadStatus uint8

const (
	MapReadStatusSuccess MapReadStatus = iota
	MapReadStatusError
	// The map was cancelled by an Unmap or a Release before it completed.
	MapReadStatusUnknown
)

func (s MapReadStatus) String() string {
	switch s {
	case MapReadStatusSuccess:
		return "success"
	case MapReadStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MapReadCallback receives the mapped range. data is only valid until the
// buffer is unmapped.
type MapReadCallback func(status MapReadStatus, data []byte)

// MapReadRequest is what the map-read tracker holds until the serial the
// read was issued at is finished.
type MapReadRequest struct {
	MapSerial uint32
	Data      []byte
}

// bufferMapState is the map-read bookkeeping of one buffer. Every map and
// unmap bumps mapSerial so completions of an older map are dropped.
type bufferMapState struct {
	buffer    uint32
	mapSerial uint32
	callback  MapReadCallback
}

func (s *bufferMapState) OnSerialCompleted(request MapReadRequest) {
	s.fire(request.MapSerial, MapReadStatusSuccess, request.Data)
}

func (s *bufferMapState) fire(mapSerial uint32, status MapReadStatus, data []byte) {
	if mapSerial != s.mapSerial || s.callback == nil {
		core.LogDebug("map read of buffer %d dropped (map serial %d, current %d)", s.buffer, mapSerial, s.mapSerial)
		return
	}
	callback := s.callback
	s.callback = nil
	callback(status, data)
}

func (s *bufferMapState) cancel() {
	s.fire(s.mapSerial, MapReadStatusUnknown, nil)
	s.mapSerial++
}

// MapReadAsync maps count bytes of buffer from start. callback fires from
// the Tick that observes the current serial finished, so the data reflects
// every stream submitted before the call.
func (d *Device) MapReadAsync(buffer uint32, start, count uint64, callback MapReadCallback) error {
	if err := d.checkRunning("map read"); err != nil {
		return err
	}
	core.Assert(callback != nil, "device: map read of buffer %d without callback", buffer)

	res, ok := d.resources.Get(buffer)
	if !ok {
		return errors.Wrapf(core.ErrInvalidHandle, "map read of buffer %d", buffer)
	}
	if res.Kind != metadata.ResourceKindBuffer || !res.AllowedUsage.Has(metadata.UsageMapRead) {
		return errors.Newf("%s '%s' does not allow map reads", res.Kind, res.Label)
	}
	if res.IsMapped() {
		return errors.Newf("buffer '%s' is already mapped", res.Label)
	}

	data, err := d.resources.Map(buffer, start, count)
	if err != nil {
		return err
	}

	state, ok := d.mapStates[buffer]
	if !ok {
		state = &bufferMapState{buffer: buffer}
		d.mapStates[buffer] = state
	}
	state.mapSerial++
	state.callback = callback
	d.mapReads.Track(state, d.currentSerial, MapReadRequest{MapSerial: state.mapSerial, Data: data})
	return nil
}

// Unmap ends the current map of buffer. A map read still in flight gets
// MapReadStatusUnknown and its completion is ignored.
func (d *Device) Unmap(buffer uint32) error {
	if _, ok := d.resources.Get(buffer); !ok {
		return errors.Wrapf(core.ErrInvalidHandle, "unmapping buffer %d", buffer)
	}
	if state, ok := d.mapStates[buffer]; ok {
		state.cancel()
	}
	d.resources.Unmap(buffer)
	return nil
}

// SetSubData writes data into buffer from start. The bytes go through an
// upload buffer released at the current serial, and the copy lands with the
// next submit.
func (d *Device) SetSubData(buffer uint32, start uint64, data []byte) error {
	if err := d.checkRunning("set sub data"); err != nil {
		return err
	}
	res, ok := d.resources.Get(buffer)
	if !ok {
		return errors.Wrapf(core.ErrInvalidHandle, "set sub data of buffer %d", buffer)
	}
	if res.Kind != metadata.ResourceKindBuffer || !res.AllowedUsage.Has(metadata.UsageTransferDst) {
		return errors.Newf("%s '%s' does not allow transfer writes", res.Kind, res.Label)
	}
	count := uint64(len(data))
	if start > res.Size || count > res.Size-start {
		return errors.Newf("range [%d, %d) is outside '%s' of %d bytes", start, start+count, res.Label, res.Size)
	}
	if res.IsMapped() {
		return errors.Newf("buffer '%s' is mapped", res.Label)
	}
	if count == 0 {
		return nil
	}

	staging, err := d.resources.Create(resource.Descriptor{
		Kind:         metadata.ResourceKindBuffer,
		Label:        res.Label + "-upload",
		Size:         count,
		AllowedUsage: metadata.UsageMapWrite | metadata.UsageTransferSrc,
		InitialUsage: metadata.UsageTransferSrc,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to stage %d bytes for '%s'", count, res.Label)
	}
	defer d.resources.Release(staging.ID)

	mapped, err := d.resources.Map(staging.ID, 0, count)
	if err != nil {
		return err
	}
	copy(mapped, data)
	d.resources.Unmap(staging.ID)

	if barrier, ok := d.resources.Transition(buffer, metadata.UsageTransferDst); ok {
		d.backend.ResourceBarrier(barrier)
	}
	if err := d.backend.CopyBufferToBuffer(staging, 0, res, start, count); err != nil {
		err = errors.Wrapf(err, "failed to upload %d bytes to '%s'", count, res.Label)
		core.LogError(err.Error())
		return err
	}
	return nil
}
