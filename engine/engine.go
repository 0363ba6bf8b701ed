package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/commands"
	"github.com/spaghettifunk/gpucore/engine/renderer/executor"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
	"github.com/spaghettifunk/gpucore/engine/renderer/tracker"
)

type Stage uint8

const (
	// Device is in an uninitialized state
	DeviceStageUninitialized Stage = iota
	// Device accepts work
	DeviceStageRunning
	// Device is waiting for in-flight work before tearing down
	DeviceStageShuttingDown
	// Device released every native object
	DeviceStageShutdown
)

func (s Stage) String() string {
	switch s {
	case DeviceStageRunning:
		return "running"
	case DeviceStageShuttingDown:
		return "shutting-down"
	case DeviceStageShutdown:
		return "shutdown"
	default:
		return "uninitialized"
	}
}

// Device ties the allocators, the completion tracker and the executor to
// one backend timeline. It is not safe for concurrent use.
type Device struct {
	ID uuid.UUID

	config *core.Config
	stage  Stage

	// Serial the work recorded right now will be submitted with.
	currentSerial core.Serial
	// Highest serial every component was ticked with.
	completedSerial core.Serial

	backend   renderer.Backend
	memory    *memory.Allocator
	resources *resource.Allocator
	mapReads  *tracker.Tracker[MapReadRequest]
	mapStates map[uint32]*bufferMapState
	objects   *registry
	executor  *executor.Executor
}

var _ core.SerialSource = (*Device)(nil)

func New(cfg *core.Config, backend renderer.Backend) (*Device, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.New("device needs a backend")
	}

	d := &Device{
		ID:            uuid.New(),
		config:        cfg,
		stage:         DeviceStageUninitialized,
		currentSerial: 1,
		backend:       backend,
		mapReads:      tracker.New[MapReadRequest]("map-read"),
		mapStates:     make(map[uint32]*bufferMapState),
		objects:       newRegistry(),
	}
	d.memory = memory.NewAllocator(backend.MemoryDevice(), d, cfg.Memory)
	d.resources = resource.NewAllocator(backend.ResourceDevice(d.memory), d)
	d.executor = executor.New(backend, d.resources, d.objects)
	d.stage = DeviceStageRunning

	core.LogInfo("device %s running on the %s backend", d.ID, backend.Name())
	return d, nil
}

func (d *Device) CurrentSerial() core.Serial {
	return d.currentSerial
}

func (d *Device) CompletedSerial() core.Serial {
	return d.completedSerial
}

func (d *Device) Stage() Stage {
	return d.stage
}

func (d *Device) Backend() renderer.Backend {
	return d.backend
}

func (d *Device) Executor() *executor.Executor {
	return d.executor
}

func (d *Device) Memory() *memory.Allocator {
	return d.memory
}

func (d *Device) Resources() *resource.Allocator {
	return d.resources
}

func (d *Device) checkRunning(op string) error {
	if d.stage != DeviceStageRunning {
		return errors.Wrapf(core.ErrDeviceShutdown, "%s on device %s (%s)", op, d.ID, d.stage)
	}
	return nil
}

func (d *Device) nextSerial() {
	d.currentSerial++
}

func (d *Device) Allocate(req memory.Requirements, mappable bool) (*memory.Allocation, error) {
	if err := d.checkRunning("allocate"); err != nil {
		return nil, err
	}
	return d.memory.Allocate(req, mappable)
}

// Free defers the release of alloc until the current serial is finished.
func (d *Device) Free(alloc *memory.Allocation) {
	d.memory.Free(alloc)
}

func (d *Device) CreateBuffer(desc resource.Descriptor) (*resource.Resource, error) {
	if err := d.checkRunning("create buffer"); err != nil {
		return nil, err
	}
	desc.Kind = metadata.ResourceKindBuffer
	return d.resources.Create(desc)
}

func (d *Device) CreateTexture(desc resource.Descriptor) (*resource.Resource, error) {
	if err := d.checkRunning("create texture"); err != nil {
		return nil, err
	}
	desc.Kind = metadata.ResourceKindTexture
	return d.resources.Create(desc)
}

// Release cancels a pending map read of the resource and schedules its
// destruction once the current serial is finished.
func (d *Device) Release(id uint32) error {
	if _, ok := d.resources.Get(id); !ok {
		return errors.Wrapf(core.ErrInvalidHandle, "releasing resource %d", id)
	}
	if state, ok := d.mapStates[id]; ok {
		state.cancel()
		delete(d.mapStates, id)
	}
	d.resources.Release(id)
	return nil
}

func (d *Device) RegisterPipeline(pipeline *metadata.Pipeline) uint32 {
	pipeline.ID = d.objects.pipelines.Acquire(pipeline)
	return pipeline.ID
}

func (d *Device) RegisterRenderPass(renderPass *metadata.RenderPass) uint32 {
	renderPass.ID = d.objects.renderPasses.Acquire(renderPass)
	return renderPass.ID
}

// RegisterFramebuffer checks every attachment is a live texture.
func (d *Device) RegisterFramebuffer(framebuffer *metadata.Framebuffer) (uint32, error) {
	for slot, id := range framebuffer.Attachments {
		res, ok := d.resources.Get(id)
		if !ok || res.Kind != metadata.ResourceKindTexture {
			return 0, errors.Wrapf(core.ErrInvalidHandle, "framebuffer attachment %d is not a texture (handle %d)", slot, id)
		}
	}
	framebuffer.ID = d.objects.framebuffers.Acquire(framebuffer)
	return framebuffer.ID, nil
}

func (d *Device) RegisterBindGroup(group *metadata.BindGroup) uint32 {
	group.ID = d.objects.bindGroups.Acquire(group)
	return group.ID
}

// UnregisterPipeline frees the slot right away. The native pipeline is
// destroyed once the current serial is finished.
func (d *Device) UnregisterPipeline(id uint32) error {
	pipeline, ok := d.objects.pipelines.Get(id)
	if err := d.objects.pipelines.Release(id); err != nil {
		return err
	}
	if ok {
		d.backend.DestroyPipeline(pipeline)
	}
	return nil
}

func (d *Device) UnregisterRenderPass(id uint32) error {
	return d.objects.renderPasses.Release(id)
}

func (d *Device) UnregisterFramebuffer(id uint32) error {
	return d.objects.framebuffers.Release(id)
}

func (d *Device) UnregisterBindGroup(id uint32) error {
	group, ok := d.objects.bindGroups.Get(id)
	if err := d.objects.bindGroups.Release(id); err != nil {
		return err
	}
	if ok {
		d.backend.DestroyBindGroup(group)
	}
	return nil
}

// Submit replays stream and submits it with the current serial, which is
// returned. A nil stream submits whatever was recorded so far.
func (d *Device) Submit(stream *commands.Stream) (core.Serial, error) {
	if err := d.checkRunning("submit"); err != nil {
		return 0, err
	}
	if stream != nil {
		if err := d.executor.Execute(stream); err != nil {
			err = errors.Wrapf(err, "failed to execute stream for serial %d", d.currentSerial)
			core.LogError(err.Error())
			return 0, err
		}
	}

	serial := d.currentSerial
	if err := d.backend.Submit(serial); err != nil {
		return 0, errors.Wrapf(err, "failed to submit serial %d", serial)
	}
	d.nextSerial()
	return serial, nil
}

// Tick releases everything the backend reports finished, then submits the
// current serial so work released since the last submit can finish too.
func (d *Device) Tick() error {
	if err := d.checkRunning("tick"); err != nil {
		return err
	}
	d.TickTo(d.backend.CompletedSerial())

	serial := d.currentSerial
	if err := d.backend.Submit(serial); err != nil {
		return errors.Wrapf(err, "failed to submit serial %d", serial)
	}
	d.nextSerial()
	return nil
}

// TickTo releases everything that was waiting on a serial up to finished.
// Repeating a serial, or passing an older one, does nothing new.
func (d *Device) TickTo(finished core.Serial) {
	core.Assert(finished < d.currentSerial, "device: serial %d reported finished but only %d was issued",
		finished, d.currentSerial-1)
	if finished > d.completedSerial {
		d.completedSerial = finished
	}

	d.resources.Tick(finished)
	d.memory.Tick(finished)
	d.mapReads.Tick(finished)
	d.backend.Tick(finished)
}

// WaitIdle submits pending work and blocks until the GPU has finished all
// of it.
func (d *Device) WaitIdle(ctx context.Context) error {
	if err := d.checkRunning("wait idle"); err != nil {
		return err
	}
	serial, err := d.Submit(nil)
	if err != nil {
		return err
	}
	if err := d.backend.WaitForSerial(ctx, serial); err != nil {
		return errors.Wrapf(err, "failed to wait for serial %d", serial)
	}
	d.TickTo(serial)
	return nil
}

// Shutdown waits for in-flight work, runs a last tick and destroys every
// object. Every map read must have completed by then.
func (d *Device) Shutdown(ctx context.Context) error {
	if d.stage != DeviceStageRunning {
		return nil
	}
	d.stage = DeviceStageShuttingDown

	if n := d.objects.len(); n > 0 {
		core.LogDebug("device %s: destroying %d registered objects", d.ID, n)
	}
	d.objects.pipelines.Each(func(_ uint32, pipeline *metadata.Pipeline) {
		d.backend.DestroyPipeline(pipeline)
	})
	d.objects.bindGroups.Each(func(_ uint32, group *metadata.BindGroup) {
		d.backend.DestroyBindGroup(group)
	})

	previous := d.currentSerial
	if err := d.backend.Submit(previous); err != nil {
		return errors.Wrapf(err, "failed to submit serial %d", previous)
	}
	d.nextSerial()
	if err := d.backend.WaitForSerial(ctx, previous); err != nil {
		return errors.Wrapf(err, "failed to wait for serial %d", previous)
	}
	d.TickTo(previous)

	d.mapReads.Destroy()
	d.mapStates = make(map[uint32]*bufferMapState)
	d.resources.Destroy()
	// Nothing is in flight anymore, memory freed by the resource teardown
	// can go back right away.
	d.memory.Tick(d.currentSerial)
	d.memory.Destroy()

	if err := d.backend.Shutdown(); err != nil {
		return errors.Wrap(err, "failed to shut the backend down")
	}
	d.stage = DeviceStageShutdown
	core.LogInfo("device %s shut down at serial %d", d.ID, previous)
	return nil
}
