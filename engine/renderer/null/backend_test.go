package null

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

type testSerials struct {
	current core.Serial
}

func (s *testSerials) CurrentSerial() core.Serial {
	return s.current
}

type fixture struct {
	backend   *Backend
	serials   *testSerials
	memory    *memory.Allocator
	resources *resource.Allocator
}

func newFixture(t *testing.T, autoComplete bool) *fixture {
	t.Helper()
	backend := New(core.DeviceConfig{AutoComplete: autoComplete})
	serials := &testSerials{current: 1}
	mem := memory.NewAllocator(backend.MemoryDevice(), serials, core.DefaultConfig().Memory)
	return &fixture{
		backend:   backend,
		serials:   serials,
		memory:    mem,
		resources: resource.NewAllocator(backend.ResourceDevice(mem), serials),
	}
}

func (f *fixture) buffer(t *testing.T, size uint64, usage metadata.Usage) *resource.Resource {
	t.Helper()
	res, err := f.resources.Create(resource.Descriptor{Kind: metadata.ResourceKindBuffer, Size: size, AllowedUsage: usage})
	require.NoError(t, err)
	return res
}

func (f *fixture) texture(t *testing.T, width, height uint32) *resource.Resource {
	t.Helper()
	res, err := f.resources.Create(resource.Descriptor{
		Kind:         metadata.ResourceKindTexture,
		Width:        width,
		Height:       height,
		Format:       metadata.TextureFormatR8G8B8A8Unorm,
		AllowedUsage: metadata.UsageTransferSrc | metadata.UsageTransferDst | metadata.UsageOutputAttachment,
	})
	require.NoError(t, err)
	return res
}

func TestHeapBudgetExhaustion(t *testing.T) {
	b := New(core.DeviceConfig{})

	first, err := b.AllocateMemory(48<<20, 1)
	require.NoError(t, err)
	_, err = b.AllocateMemory(32<<20, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrOutOfDeviceMemory))

	b.FreeMemory(first)
	_, err = b.AllocateMemory(32<<20, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, b.LiveMemory())
}

func TestMapMemoryRequiresHostVisible(t *testing.T) {
	b := New(core.DeviceConfig{})
	local, err := b.AllocateMemory(1024, 0)
	require.NoError(t, err)
	_, err = b.MapMemory(local, 1024)
	assert.Error(t, err)

	host, err := b.AllocateMemory(1024, 2)
	require.NoError(t, err)
	data, err := b.MapMemory(host, 1024)
	require.NoError(t, err)
	assert.Len(t, data, 1024)
}

func TestCopyBufferToBufferMovesBytes(t *testing.T) {
	f := newFixture(t, true)
	src := f.buffer(t, 16, metadata.UsageMapWrite|metadata.UsageTransferSrc)
	dst := f.buffer(t, 16, metadata.UsageMapRead|metadata.UsageTransferDst)

	upload, err := f.resources.Map(src.ID, 0, 16)
	require.NoError(t, err)
	copy(upload, []byte("0123456789abcdef"))

	require.NoError(t, f.backend.CopyBufferToBuffer(src, 4, dst, 0, 8))
	assert.Equal(t, []byte("456789ab"), Bytes(dst.Native)[:8])

	err = f.backend.CopyBufferToBuffer(src, 250, dst, 0, 8)
	assert.True(t, errors.Is(err, core.ErrNativeCall))
}

func TestTextureRoundTripThroughReadTarget(t *testing.T) {
	f := newFixture(t, true)
	texture := f.texture(t, 4, 4)
	upload := f.buffer(t, 256, metadata.UsageMapWrite|metadata.UsageTransferSrc)
	readback := f.buffer(t, 256, metadata.UsageMapRead|metadata.UsageTransferDst)

	data, err := f.resources.Map(upload.ID, 0, 256)
	require.NoError(t, err)
	for i := range data {
		data[i] = byte(i)
	}

	region := metadata.TextureRegion{X: 1, Y: 1, Width: 2, Height: 2}
	require.NoError(t, f.backend.CopyBufferToTexture(upload, 0, 16, texture, region))
	require.NoError(t, f.backend.CopyTextureToBuffer(texture, region, readback, 0, 8))

	out := Bytes(readback.Native)
	assert.Equal(t, data[0:8], out[0:8])
	assert.Equal(t, data[16:24], out[8:16])

	assert.Equal(t, []CallKind{
		CallCopyBufferToTexture,
		CallCreateReadTarget,
		CallReadPixels,
		CallDestroyReadTarget,
	}, f.backend.Kinds())
	assert.Zero(t, f.backend.TemporaryObjects())
}

func TestReadTargetDestroyedOnFailure(t *testing.T) {
	f := newFixture(t, true)
	texture := f.texture(t, 4, 4)
	readback := f.buffer(t, 16, metadata.UsageMapRead|metadata.UsageTransferDst)

	err := f.backend.CopyTextureToBuffer(texture, metadata.TextureRegion{Width: 4, Height: 4}, readback, 0, 8)
	require.Error(t, err)
	assert.Equal(t, []CallKind{CallCreateReadTarget, CallDestroyReadTarget}, f.backend.Kinds())
	assert.Zero(t, f.backend.TemporaryObjects())
}

func TestClearColorFillsAttachment(t *testing.T) {
	f := newFixture(t, true)
	texture := f.texture(t, 2, 2)

	desc := &metadata.RenderTargetDescriptor{Width: 2, Height: 2, ColorsSet: 1}
	desc.Colors[0] = metadata.RenderTargetAttachment{Texture: texture.ID, Format: texture.Format, Native: texture.Native}
	require.NoError(t, f.backend.BeginRenderTarget(desc))
	f.backend.ClearColor(0, [4]float32{1, 0, 0, 1})
	f.backend.EndRenderTarget()

	assert.Equal(t, []byte{255, 0, 0, 255}, Bytes(texture.Native)[12:16])
}

func TestBarrierFollowsNativeState(t *testing.T) {
	f := newFixture(t, true)
	buffer := f.buffer(t, 64, metadata.UsageTransferDst|metadata.UsageVertex)

	barrier, ok := f.resources.Transition(buffer.ID, metadata.UsageTransferDst)
	require.True(t, ok)
	f.backend.ResourceBarrier(barrier)
	assert.Equal(t, metadata.NativeStateCopyDest, State(buffer.Native))
}

func TestTimeline(t *testing.T) {
	b := New(core.DeviceConfig{AutoComplete: false})

	require.NoError(t, b.Submit(1))
	require.NoError(t, b.Submit(2))
	assert.Equal(t, core.Serial(0), b.CompletedSerial())

	b.Complete(1)
	assert.Equal(t, core.Serial(1), b.CompletedSerial())

	// Completing past the last submission is clamped.
	b.Complete(9)
	assert.Equal(t, core.Serial(2), b.CompletedSerial())

	require.NoError(t, b.Submit(3))
	require.NoError(t, b.WaitForSerial(context.Background(), 3))
	assert.Equal(t, core.Serial(3), b.CompletedSerial())
	assert.Error(t, b.WaitForSerial(context.Background(), 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(b.WaitForSerial(ctx, 3), context.Canceled))

	require.NoError(t, b.Shutdown())
	assert.True(t, errors.Is(b.Submit(4), core.ErrDeviceShutdown))
}

func TestResourceMemoryReturnsAfterTick(t *testing.T) {
	f := newFixture(t, true)
	buffer := f.buffer(t, 1024, metadata.UsageVertex)
	require.Equal(t, 1, f.backend.LiveMemory())

	f.resources.Release(buffer.ID)
	f.resources.Tick(1)
	assert.Equal(t, 1, f.backend.LiveMemory())

	f.serials.current = 2
	f.memory.Tick(1)
	assert.Equal(t, 0, f.backend.LiveMemory())
}

func TestDestroyWaitsForSubmittedSerial(t *testing.T) {
	f := newFixture(t, false)
	pipeline := &metadata.Pipeline{Label: "blit"}
	f.backend.DestroyPipeline(pipeline)

	f.backend.Tick(0)
	assert.Empty(t, f.backend.CallsOfKind(CallDestroyPipeline))
	require.NoError(t, f.backend.Submit(1))
	assert.Empty(t, f.backend.CallsOfKind(CallDestroyPipeline))
	assert.Equal(t, 1, f.backend.PendingDestructions())

	f.backend.Complete(1)
	f.backend.Tick(1)
	calls := f.backend.CallsOfKind(CallDestroyPipeline)
	require.Len(t, calls, 1)
	assert.Same(t, pipeline, calls[0].Pipeline)

	// Shutdown flushes destructions that were never submitted.
	group := &metadata.BindGroup{ID: 3}
	f.backend.DestroyBindGroup(group)
	require.NoError(t, f.backend.Shutdown())
	groups := f.backend.CallsOfKind(CallDestroyBindGroup)
	require.Len(t, groups, 1)
	assert.Same(t, group, groups[0].Group)
	assert.Zero(t, f.backend.PendingDestructions())
}
