package null

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/containers"
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

var (
	memoryTypes = []memory.MemoryType{
		{Flags: memory.PropertyDeviceLocal, HeapIndex: 0},
		{Flags: memory.PropertyHostVisible | memory.PropertyHostCoherent, HeapIndex: 1},
		{Flags: memory.PropertyHostVisible | memory.PropertyHostCoherent | memory.PropertyHostCached, HeapIndex: 2},
	}
	memoryHeaps = []memory.MemoryHeap{
		{Size: 256 << 20, DeviceLocal: true},
		{Size: 64 << 20},
		{Size: 64 << 20},
	}
)

var _ renderer.Backend = (*Backend)(nil)

// Backend executes nothing. It records every native call, keeps resource
// contents in host memory and simulates the GPU timeline.
type Backend struct {
	autoComplete bool

	submitted core.Serial
	completed core.Serial
	tickedTo  core.Serial

	heapUsed    []uint64
	liveMemory  int
	temporaries int

	target   *metadata.RenderTargetDescriptor
	shutdown bool

	// Destructions requested since the last submit, then queued on the
	// serial they were submitted with.
	transients []Call
	garbage    *containers.SerialQueue[Call]

	calls []Call
}

func New(cfg core.DeviceConfig) *Backend {
	return &Backend{
		autoComplete: cfg.AutoComplete,
		heapUsed:     make([]uint64, len(memoryHeaps)),
		garbage:      containers.NewSerialQueue[Call](),
	}
}

func (b *Backend) Name() string {
	return core.BackendNull
}

func (b *Backend) Submit(serial core.Serial) error {
	if b.shutdown {
		return errors.Wrap(core.ErrDeviceShutdown, "null backend")
	}
	core.Assert(serial > b.submitted, "null backend: submit serial %d is not after %d", serial, b.submitted)
	core.Assert(b.target == nil, "null backend: submitting inside a render target")

	b.submitted = serial
	if b.autoComplete {
		b.completed = serial
	}
	b.record(Call{Kind: CallSubmit, Serial: serial})
	for _, c := range b.transients {
		b.garbage.Enqueue(c, serial)
	}
	b.transients = b.transients[:0]
	return nil
}

func (b *Backend) CompletedSerial() core.Serial {
	return b.completed
}

// Complete marks work up to serial as finished, as a GPU interrupt would.
func (b *Backend) Complete(serial core.Serial) {
	if serial > b.submitted {
		serial = b.submitted
	}
	if serial > b.completed {
		b.completed = serial
	}
}

func (b *Backend) WaitForSerial(ctx context.Context, serial core.Serial) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "waiting for serial %d", serial)
	}
	if serial > b.submitted {
		return errors.Newf("waiting for serial %d which was never submitted (last %d)", serial, b.submitted)
	}
	b.Complete(serial)
	return nil
}

func (b *Backend) Tick(finished core.Serial) {
	if finished > b.tickedTo {
		b.tickedTo = finished
	}
	b.garbage.IterateUpTo(finished, b.record)
}

func (b *Backend) Shutdown() error {
	b.garbage.IterateUpTo(b.submitted, b.record)
	for _, c := range b.transients {
		b.record(c)
	}
	b.transients = nil
	if b.liveMemory > 0 {
		core.LogWarn("null backend: shutting down with %d live memory objects", b.liveMemory)
	}
	b.shutdown = true
	return nil
}

func (b *Backend) Submitted() core.Serial {
	return b.submitted
}

func (b *Backend) TickedTo() core.Serial {
	return b.tickedTo
}

func (b *Backend) LiveMemory() int {
	return b.liveMemory
}

// TemporaryObjects counts native objects created by a call that were not
// destroyed before it returned.
func (b *Backend) TemporaryObjects() int {
	return b.temporaries
}

func (b *Backend) BeginRenderTarget(desc *metadata.RenderTargetDescriptor) error {
	core.Assert(b.target == nil, "null backend: render target already begun")
	if desc.Width == 0 || desc.Height == 0 {
		return errors.Wrapf(core.ErrNativeCall, "render target of %dx%d", desc.Width, desc.Height)
	}
	b.target = desc
	b.record(Call{Kind: CallBeginRenderTarget, Target: desc})
	return nil
}

func (b *Backend) EndRenderTarget() {
	core.Assert(b.target != nil, "null backend: no render target")
	b.target = nil
	b.record(Call{Kind: CallEndRenderTarget})
}

// ClearColor also fills the attachment so clears can be read back.
func (b *Backend) ClearColor(location uint32, color [4]float32) {
	core.Assert(b.target != nil && b.target.ColorsSet&(1<<location) != 0, "null backend: no color attachment at %d", location)
	attachment := b.target.Colors[location]
	if res, ok := attachment.Native.(*Resource); ok {
		fillColor(res.data, attachment.Format, color)
	}
	b.record(Call{Kind: CallClearColor, Slot: location, Color: color})
}

func (b *Backend) ClearDepthStencil(aspects metadata.ClearAspect, depth float32, stencil uint32) {
	core.Assert(b.target != nil && b.target.HasDepthStencil, "null backend: no depth-stencil attachment")
	b.record(Call{Kind: CallClearDepthStencil, Aspects: aspects, Color: [4]float32{depth}, Value: stencil})
}

func (b *Backend) SetViewport(x, y, width, height float32) {
	b.record(Call{Kind: CallSetViewport, Color: [4]float32{x, y, width, height}})
}

func (b *Backend) SetBlendColor(color [4]float32) {
	b.record(Call{Kind: CallSetBlendColor, Color: color})
}

func (b *Backend) SetStencilReference(reference uint32) {
	b.record(Call{Kind: CallSetStencilReference, Value: reference})
}

func (b *Backend) DestroyPipeline(pipeline *metadata.Pipeline) {
	b.transients = append(b.transients, Call{Kind: CallDestroyPipeline, Pipeline: pipeline})
}

func (b *Backend) DestroyBindGroup(group *metadata.BindGroup) {
	b.transients = append(b.transients, Call{Kind: CallDestroyBindGroup, Group: group})
}

// PendingDestructions counts destructions whose serial is not finished yet.
func (b *Backend) PendingDestructions() int {
	return len(b.transients) + b.garbage.Len()
}

func (b *Backend) BindPipeline(pipeline *metadata.Pipeline) error {
	if pipeline == nil {
		return errors.Wrap(core.ErrNativeCall, "binding a nil pipeline")
	}
	b.record(Call{Kind: CallBindPipeline, Pipeline: pipeline})
	return nil
}

func (b *Backend) SetPushConstant(stage metadata.ShaderStage, slot uint32, kind metadata.PushConstantType, value uint32) {
	b.record(Call{Kind: CallSetPushConstant, Stage: stage, Slot: slot, Value: value})
}

func (b *Backend) BindVertexBuffer(slot uint32, buffer *resource.Resource, offset uint64, input metadata.VertexInput) {
	b.record(Call{Kind: CallBindVertexBuffer, Slot: slot, Resource: buffer, Offset: offset, Value: input.Stride})
}

func (b *Backend) BindIndexBuffer(buffer *resource.Resource, offset uint64, format metadata.IndexFormat) {
	b.record(Call{Kind: CallBindIndexBuffer, Resource: buffer, Offset: offset, Value: uint32(format)})
}

func (b *Backend) BindGroup(index uint32, group *metadata.BindGroup, bindings []metadata.ResolvedBinding) {
	b.record(Call{Kind: CallBindGroup, Slot: index, Value: group.ID, Bindings: bindings})
}

func (b *Backend) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	b.record(Call{Kind: CallDraw, Counts: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (b *Backend) DrawIndexed(indexCount, instanceCount, firstIndex, firstInstance uint32) {
	b.record(Call{Kind: CallDrawIndexed, Counts: [4]uint32{indexCount, instanceCount, firstIndex, firstInstance}})
}

func (b *Backend) Dispatch(x, y, z uint32) {
	b.record(Call{Kind: CallDispatch, Counts: [4]uint32{x, y, z}})
}

func (b *Backend) MemoryBarrier() {
	b.record(Call{Kind: CallMemoryBarrier})
}

func (b *Backend) ResourceBarrier(barrier metadata.Barrier) {
	if res, ok := barrier.Native.(*Resource); ok {
		core.Assert(res.state == barrier.StateBefore,
			"null backend: barrier expects state 0x%x, resource is in 0x%x", uint32(barrier.StateBefore), uint32(res.state))
		res.state = barrier.StateAfter
	}
	b.record(Call{Kind: CallResourceBarrier, Barrier: barrier})
}

func fillColor(data []byte, format metadata.TextureFormat, color [4]float32) {
	if format.PixelSize() != 4 {
		return
	}
	var texel [4]byte
	for i, c := range color {
		switch format {
		case metadata.TextureFormatR8G8B8A8Uint:
			texel[i] = byte(c)
		default:
			texel[i] = byte(clamp01(c)*255 + 0.5)
		}
	}
	if format == metadata.TextureFormatB8G8R8A8Unorm {
		texel[0], texel[2] = texel[2], texel[0]
	}
	for i := 0; i+4 <= len(data); i += 4 {
		copy(data[i:i+4], texel[:])
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
