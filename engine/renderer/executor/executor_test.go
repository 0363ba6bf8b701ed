package executor

import (
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/commands"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/null"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

type testSerials struct {
	current core.Serial
}

func (s *testSerials) CurrentSerial() core.Serial {
	return s.current
}

type testObjects struct {
	pipelines    map[uint32]*metadata.Pipeline
	renderPasses map[uint32]*metadata.RenderPass
	framebuffers map[uint32]*metadata.Framebuffer
	bindGroups   map[uint32]*metadata.BindGroup
}

func (o *testObjects) Pipeline(id uint32) (*metadata.Pipeline, bool) {
	p, ok := o.pipelines[id]
	return p, ok
}

func (o *testObjects) RenderPass(id uint32) (*metadata.RenderPass, bool) {
	rp, ok := o.renderPasses[id]
	return rp, ok
}

func (o *testObjects) Framebuffer(id uint32) (*metadata.Framebuffer, bool) {
	fb, ok := o.framebuffers[id]
	return fb, ok
}

func (o *testObjects) BindGroup(id uint32) (*metadata.BindGroup, bool) {
	g, ok := o.bindGroups[id]
	return g, ok
}

type fixture struct {
	backend   *null.Backend
	resources *resource.Allocator
	objects   *testObjects
	executor  *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := null.New(core.DeviceConfig{AutoComplete: true})
	serials := &testSerials{current: 1}
	mem := memory.NewAllocator(backend.MemoryDevice(), serials, core.DefaultConfig().Memory)
	resources := resource.NewAllocator(backend.ResourceDevice(mem), serials)
	objects := &testObjects{
		pipelines:    map[uint32]*metadata.Pipeline{},
		renderPasses: map[uint32]*metadata.RenderPass{},
		framebuffers: map[uint32]*metadata.Framebuffer{},
		bindGroups:   map[uint32]*metadata.BindGroup{},
	}
	return &fixture{
		backend:   backend,
		resources: resources,
		objects:   objects,
		executor:  New(backend, resources, objects),
	}
}

func (f *fixture) buffer(t *testing.T, usage metadata.Usage, initial metadata.Usage) *resource.Resource {
	t.Helper()
	res, err := f.resources.Create(resource.Descriptor{
		Kind:         metadata.ResourceKindBuffer,
		Size:         1024,
		AllowedUsage: usage,
		InitialUsage: initial,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) texture(t *testing.T, format metadata.TextureFormat) *resource.Resource {
	t.Helper()
	res, err := f.resources.Create(resource.Descriptor{
		Kind:         metadata.ResourceKindTexture,
		Width:        4,
		Height:       4,
		Format:       format,
		AllowedUsage: metadata.UsageOutputAttachment | metadata.UsageTransferSrc | metadata.UsageSampled,
		InitialUsage: metadata.UsageOutputAttachment,
	})
	require.NoError(t, err)
	return res
}

// singleColorPass registers render pass 1 and framebuffer 1 with one cleared
// color attachment used by the given number of subpasses.
func (f *fixture) singleColorPass(t *testing.T, subpasses int) *resource.Resource {
	t.Helper()
	color := f.texture(t, metadata.TextureFormatR8G8B8A8Unorm)
	infos := make([]metadata.SubpassInfo, subpasses)
	for i := range infos {
		infos[i] = metadata.SubpassInfo{ColorAttachmentsSet: 0b1}
	}
	rp := metadata.NewRenderPass(
		[]metadata.AttachmentInfo{{Format: color.Format, ColorLoadOp: metadata.LoadOpClear}},
		infos,
	)
	rp.ID = 1
	f.objects.renderPasses[1] = rp
	f.objects.framebuffers[1] = &metadata.Framebuffer{
		ID:          1,
		Width:       4,
		Height:      4,
		Attachments: []uint32{color.ID},
		Clears:      []metadata.ClearValue{{Color: [4]float32{0, 0, 1, 1}}},
	}
	return color
}

func (f *fixture) renderPipeline(id uint32, inputsMask uint64) *metadata.Pipeline {
	p := &metadata.Pipeline{
		ID:         id,
		Label:      "render",
		Kind:       metadata.PipelineKindRender,
		InputState: &metadata.InputState{InputsSetMask: inputsMask},
	}
	for _, slot := range metadata.IterateBits(inputsMask) {
		p.InputState.Inputs[slot] = metadata.VertexInput{Stride: 16}
	}
	f.objects.pipelines[id] = p
	return p
}

// failingBackend rejects every pipeline bind.
type failingBackend struct {
	*null.Backend
}

func (b *failingBackend) BindPipeline(pipeline *metadata.Pipeline) error {
	return errors.Wrapf(core.ErrNativeCall, "driver rejected pipeline '%s'", pipeline.Label)
}

func indexOf(kinds []null.CallKind, kind null.CallKind) int {
	for i, k := range kinds {
		if k == kind {
			return i
		}
	}
	return -1
}

func requireFatal(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fatal assertion")
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.IsAssertionFailure(err), "%v", err)
	}()
	fn()
}

func TestClearPrecedesDrawAndVertexSlotIsClean(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)
	f.renderPipeline(7, 0b1)
	vertices := f.buffer(t, metadata.UsageVertex, metadata.UsageVertex)

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.SetRenderPipelineCmd{Pipeline: 7}).
		SetVertexBuffers(0, []uint32{vertices.ID}, []uint32{0}).
		Encode(commands.DrawArraysCmd{VertexCount: 3, InstanceCount: 1}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()

	require.NoError(t, f.executor.Execute(stream))

	kinds := f.backend.Kinds()
	require.Len(t, f.backend.CallsOfKind(null.CallClearColor), 1)
	require.Len(t, f.backend.CallsOfKind(null.CallDraw), 1)
	assert.Less(t, indexOf(kinds, null.CallClearColor), indexOf(kinds, null.CallDraw))
	assert.Zero(t, f.executor.VertexInputs().Dirty()&0b1)

	draw := f.backend.CallsOfKind(null.CallDraw)[0]
	assert.Equal(t, [4]uint32{3, 1, 0, 0}, draw.Counts)
	bound := f.backend.CallsOfKind(null.CallBindVertexBuffer)
	require.Len(t, bound, 1)
	assert.Equal(t, vertices, bound[0].Resource)
	assert.Equal(t, uint32(16), bound[0].Value)

	assert.Equal(t, PASS_STATE_IDLE, f.executor.State())
	assert.Equal(t, uint64(1), f.executor.Stats().Draws)
	assert.Equal(t, uint64(1), f.executor.Stats().Clears)
	assert.Equal(t, uint64(1), f.executor.Metrics().Count())
}

func TestClearOnlyInFirstSubpassUsingAttachment(t *testing.T) {
	f := newFixture(t)
	color := f.singleColorPass(t, 2)
	f.renderPipeline(1, 0)

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	assert.Len(t, f.backend.CallsOfKind(null.CallBeginRenderTarget), 2)
	assert.Len(t, f.backend.CallsOfKind(null.CallEndRenderTarget), 2)
	clears := f.backend.CallsOfKind(null.CallClearColor)
	require.Len(t, clears, 1)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, clears[0].Color)
	assert.Equal(t, []byte{0, 0, 255, 255}, null.Bytes(color.Native)[:4])

	target := f.backend.CallsOfKind(null.CallBeginRenderTarget)[0].Target
	assert.Equal(t, color.ID, target.Colors[0].Texture)
	assert.Equal(t, uint32(4), target.Width)
}

func TestDepthStencilClearAspects(t *testing.T) {
	f := newFixture(t)
	color := f.texture(t, metadata.TextureFormatR8G8B8A8Unorm)
	depth := f.texture(t, metadata.TextureFormatD32FloatS8Uint)
	rp := metadata.NewRenderPass(
		[]metadata.AttachmentInfo{
			{Format: color.Format, ColorLoadOp: metadata.LoadOpLoad},
			{Format: depth.Format, DepthLoadOp: metadata.LoadOpClear, StencilLoadOp: metadata.LoadOpLoad},
		},
		[]metadata.SubpassInfo{{
			ColorAttachmentsSet:       0b1,
			DepthStencilAttachmentSet: true,
			DepthStencilAttachment:    1,
		}},
	)
	f.objects.renderPasses[2] = rp
	f.objects.framebuffers[2] = &metadata.Framebuffer{
		Width:       4,
		Height:      4,
		Attachments: []uint32{color.ID, depth.ID},
		Clears:      []metadata.ClearValue{{}, {Depth: 1, Stencil: 3}},
	}

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 2, Framebuffer: 2}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	assert.Empty(t, f.backend.CallsOfKind(null.CallClearColor))
	clears := f.backend.CallsOfKind(null.CallClearDepthStencil)
	require.Len(t, clears, 1)
	assert.Equal(t, metadata.ClearAspectDepth, clears[0].Aspects)
	assert.Equal(t, float32(1), clears[0].Color[0])
}

func TestPipelineSwitchReappliesOnlyItsSlots(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)
	narrow := f.renderPipeline(1, 0b01)
	f.renderPipeline(2, 0b11)
	narrow.PushConstants[metadata.ShaderStageVertex].Mask = 0b1
	a := f.buffer(t, metadata.UsageVertex, metadata.UsageVertex)
	b := f.buffer(t, metadata.UsageVertex, metadata.UsageVertex)

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		SetVertexBuffers(0, []uint32{a.ID, b.ID}, []uint32{0, 64}).
		SetPushConstants(metadata.ShaderStageBitVertex, 0, []uint32{42, 43}).
		Encode(commands.SetRenderPipelineCmd{Pipeline: 1}).
		Encode(commands.DrawArraysCmd{VertexCount: 3, InstanceCount: 1}).
		Encode(commands.DrawArraysCmd{VertexCount: 3, InstanceCount: 1}).
		Encode(commands.SetRenderPipelineCmd{Pipeline: 2}).
		Encode(commands.DrawArraysCmd{VertexCount: 3, InstanceCount: 1}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	bound := f.backend.CallsOfKind(null.CallBindVertexBuffer)
	require.Len(t, bound, 3)
	assert.Equal(t, uint32(0), bound[0].Slot)
	// The second pipeline has a different layout, both slots are rebound.
	assert.Equal(t, uint32(0), bound[1].Slot)
	assert.Equal(t, uint32(1), bound[2].Slot)
	assert.Equal(t, uint64(64), bound[2].Offset)

	pushed := f.backend.CallsOfKind(null.CallSetPushConstant)
	require.Len(t, pushed, 1)
	assert.Equal(t, uint32(42), pushed[0].Value)
	// Slot 1 was never read by a pipeline and stays dirty.
	assert.Equal(t, uint64(0b10), f.executor.PushConstants().Dirty(metadata.ShaderStageVertex))
}

func TestDrawElementsBindsIndexBuffer(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)
	p := f.renderPipeline(1, 0)
	p.IndexFormat = metadata.IndexFormatUint32
	indices := f.buffer(t, metadata.UsageIndex, metadata.UsageIndex)

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.SetRenderPipelineCmd{Pipeline: 1}).
		Encode(commands.SetIndexBufferCmd{Buffer: indices.ID, Offset: 12}).
		Encode(commands.DrawElementsCmd{IndexCount: 6, InstanceCount: 1, FirstIndex: 2}).
		Encode(commands.DrawElementsCmd{IndexCount: 6, InstanceCount: 1}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	bound := f.backend.CallsOfKind(null.CallBindIndexBuffer)
	require.Len(t, bound, 1)
	assert.Equal(t, uint64(12), bound[0].Offset)
	assert.Equal(t, uint32(metadata.IndexFormatUint32), bound[0].Value)

	draws := f.backend.CallsOfKind(null.CallDrawIndexed)
	require.Len(t, draws, 2)
	assert.Equal(t, [4]uint32{6, 1, 2, 0}, draws[0].Counts)
}

func TestDispatchAppliesComputeConstantsAndBarrier(t *testing.T) {
	f := newFixture(t)
	compute := &metadata.Pipeline{ID: 3, Kind: metadata.PipelineKindCompute}
	compute.PushConstants[metadata.ShaderStageCompute].Mask = 0b11
	f.objects.pipelines[3] = compute

	stream := commands.NewEncoder().
		Encode(commands.BeginComputePassCmd{}).
		Encode(commands.SetComputePipelineCmd{Pipeline: 3}).
		SetPushConstants(metadata.ShaderStageBitCompute, 1, []uint32{9}).
		Encode(commands.DispatchCmd{X: 8, Y: 4, Z: 1}).
		Encode(commands.EndComputePassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	assert.Equal(t, []null.CallKind{
		null.CallBindPipeline,
		null.CallSetPushConstant,
		null.CallSetPushConstant,
		null.CallDispatch,
		null.CallMemoryBarrier,
	}, f.backend.Kinds())
	pushed := f.backend.CallsOfKind(null.CallSetPushConstant)
	assert.Equal(t, uint32(0), pushed[0].Value)
	assert.Equal(t, uint32(9), pushed[1].Value)
	assert.Equal(t, uint64(1), f.executor.Stats().Dispatches)
}

func TestRedundantFixedFunctionStateIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.SetBlendColorCmd{R: 1, G: 1, B: 1, A: 1}).
		Encode(commands.SetBlendColorCmd{R: 1, G: 1, B: 1, A: 1}).
		Encode(commands.SetStencilReferenceCmd{Reference: 0}).
		Encode(commands.SetStencilReferenceCmd{Reference: 5}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	// One default each at subpass begin, then only actual changes.
	assert.Len(t, f.backend.CallsOfKind(null.CallSetBlendColor), 2)
	assert.Len(t, f.backend.CallsOfKind(null.CallSetStencilReference), 2)
	assert.Len(t, f.backend.CallsOfKind(null.CallSetViewport), 1)
	assert.Equal(t, [4]float32{0, 0, 4, 4}, f.executor.PipelineState().Viewport())
	assert.Equal(t, uint32(5), f.executor.PipelineState().StencilReference())
}

func TestTransitionsEmitBarriersOnlyOnStateChange(t *testing.T) {
	f := newFixture(t)
	buf := f.buffer(t, metadata.UsageTransferDst|metadata.UsageVertex|metadata.UsageUniform, metadata.UsageTransferDst)
	mapped := f.buffer(t, metadata.UsageMapRead|metadata.UsageTransferDst, metadata.UsageNone)

	stream := commands.NewEncoder().
		Encode(commands.TransitionBufferUsageCmd{Buffer: buf.ID, Usage: metadata.UsageVertex}).
		Encode(commands.TransitionBufferUsageCmd{Buffer: buf.ID, Usage: metadata.UsageUniform}).
		Encode(commands.TransitionBufferUsageCmd{Buffer: mapped.ID, Usage: metadata.UsageTransferDst}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	barriers := f.backend.CallsOfKind(null.CallResourceBarrier)
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.NativeStateCopyDest, barriers[0].Barrier.StateBefore)
	assert.Equal(t, metadata.NativeStateVertexAndConstantBuffer, barriers[0].Barrier.StateAfter)
	assert.Equal(t, metadata.UsageUniform, buf.CurrentUsage)
	assert.Equal(t, metadata.UsageTransferDst, mapped.CurrentUsage)
	assert.Equal(t, uint64(1), f.executor.Stats().Barriers)
}

func TestCopiesTearDownTemporaries(t *testing.T) {
	f := newFixture(t)
	texture := f.texture(t, metadata.TextureFormatR8G8B8A8Unorm)
	staging := f.buffer(t, metadata.UsageMapRead|metadata.UsageTransferDst, metadata.UsageNone)
	upload := f.buffer(t, metadata.UsageMapWrite|metadata.UsageTransferSrc, metadata.UsageNone)

	region := commands.TextureCopyLocation{Texture: texture.ID, Width: 4, Height: 4, Depth: 1}
	stream := commands.NewEncoder().
		Encode(commands.TransitionTextureUsageCmd{Texture: texture.ID, Usage: metadata.UsageTransferSrc}).
		Encode(commands.CopyBufferToBufferCmd{
			Source:      commands.BufferCopyLocation{Buffer: upload.ID},
			Destination: commands.BufferCopyLocation{Buffer: staging.ID, Offset: 512},
			Size:        64,
		}).
		Encode(commands.CopyTextureToBufferCmd{
			Source:      region,
			Destination: commands.BufferCopyLocation{Buffer: staging.ID},
			RowPitch:    16,
		}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	assert.Zero(t, f.backend.TemporaryObjects())
	assert.Len(t, f.backend.CallsOfKind(null.CallCreateReadTarget), 1)
	assert.Len(t, f.backend.CallsOfKind(null.CallDestroyReadTarget), 1)
	assert.Equal(t, uint64(2), f.executor.Stats().Copies)
}

func TestBindGroupResolvesBindings(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)
	uniforms := f.buffer(t, metadata.UsageUniform, metadata.UsageUniform)
	texture := f.texture(t, metadata.TextureFormatR8G8B8A8Unorm)

	group := &metadata.BindGroup{ID: 5}
	group.Layout.Mask = 0b101
	group.Layout.Types[0] = metadata.BindingTypeUniformBuffer
	group.Layout.Types[2] = metadata.BindingTypeSampledTexture
	group.Bindings[0] = metadata.Binding{Resource: uniforms.ID, Offset: 256}
	group.Bindings[2] = metadata.Binding{Resource: texture.ID}
	f.objects.bindGroups[5] = group

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.SetBindGroupCmd{Index: 1, Group: 5}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(stream))

	calls := f.backend.CallsOfKind(null.CallBindGroup)
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(1), calls[0].Slot)
	bindings := calls[0].Bindings
	require.Len(t, bindings, 2)
	assert.Equal(t, uniforms.Native, bindings[0].Native)
	assert.Equal(t, uint64(1024-256), bindings[0].Size)
	assert.Equal(t, uint32(2), bindings[1].Binding)
	assert.Equal(t, texture.Native, bindings[1].Native)
}

func TestNativeFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)
	f.objects.framebuffers[1].Width = 0

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	err := f.executor.Execute(stream)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNativeCall))
	assert.Contains(t, err.Error(), "BeginRenderSubpass")
}

func TestNativeFailureInSubpassClosesRenderTarget(t *testing.T) {
	f := newFixture(t)
	f.singleColorPass(t, 1)
	f.renderPipeline(7, 0)
	f.executor = New(&failingBackend{f.backend}, f.resources, f.objects)

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.SetRenderPipelineCmd{Pipeline: 7}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	err := f.executor.Execute(stream)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNativeCall))
	assert.Equal(t, PASS_STATE_IDLE, f.executor.State())

	kinds := f.backend.Kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, null.CallEndRenderTarget, kinds[len(kinds)-1])
	require.NoError(t, f.backend.Submit(1))

	// the executor accepts the next stream from a clean state
	next := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Finish()
	require.NoError(t, f.executor.Execute(next))
	require.NoError(t, f.backend.Submit(2))
}

func TestNativeFailureInComputePassResetsState(t *testing.T) {
	f := newFixture(t)
	f.objects.pipelines[3] = &metadata.Pipeline{ID: 3, Label: "compute", Kind: metadata.PipelineKindCompute}
	f.executor = New(&failingBackend{f.backend}, f.resources, f.objects)

	stream := commands.NewEncoder().
		Encode(commands.BeginComputePassCmd{}).
		Encode(commands.SetComputePipelineCmd{Pipeline: 3}).
		Encode(commands.EndComputePassCmd{}).
		Finish()
	require.Error(t, f.executor.Execute(stream))
	assert.Equal(t, PASS_STATE_IDLE, f.executor.State())
	assert.Empty(t, f.backend.CallsOfKind(null.CallEndRenderTarget))
}

func TestBindingPastBufferEndIsFatal(t *testing.T) {
	for name, binding := range map[string]metadata.Binding{
		"offset":      {Offset: 2048},
		"sized range": {Offset: 512, Size: 1024},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.singleColorPass(t, 1)
			uniforms := f.buffer(t, metadata.UsageUniform, metadata.UsageUniform)

			group := &metadata.BindGroup{ID: 5}
			group.Layout.Mask = 0b1
			group.Layout.Types[0] = metadata.BindingTypeUniformBuffer
			binding.Resource = uniforms.ID
			group.Bindings[0] = binding
			f.objects.bindGroups[5] = group

			stream := commands.NewEncoder().
				Encode(commands.BeginRenderPassCmd{RenderPass: 1, Framebuffer: 1}).
				Encode(commands.BeginRenderSubpassCmd{}).
				Encode(commands.SetBindGroupCmd{Index: 0, Group: 5}).
				Encode(commands.EndRenderSubpassCmd{}).
				Encode(commands.EndRenderPassCmd{}).
				Finish()
			requireFatal(t, func() { _ = f.executor.Execute(stream) })
			assert.Empty(t, f.backend.CallsOfKind(null.CallBindGroup))
		})
	}
}

func TestBrokenStreamsAreFatal(t *testing.T) {
	t.Run("unknown tag", func(t *testing.T) {
		f := newFixture(t)
		raw := binary.LittleEndian.AppendUint32(nil, 999)
		raw = binary.LittleEndian.AppendUint32(raw, 0)
		requireFatal(t, func() { _ = f.executor.Execute(commands.NewStream(raw)) })
	})

	t.Run("under-read payload", func(t *testing.T) {
		f := newFixture(t)
		raw := binary.LittleEndian.AppendUint32(nil, uint32(commands.BeginComputePass))
		raw = binary.LittleEndian.AppendUint32(raw, 4)
		raw = binary.LittleEndian.AppendUint32(raw, 0)
		requireFatal(t, func() { _ = f.executor.Execute(commands.NewStream(raw)) })
	})

	t.Run("copy inside a pass", func(t *testing.T) {
		f := newFixture(t)
		stream := commands.NewEncoder().
			Encode(commands.BeginComputePassCmd{}).
			Encode(commands.CopyBufferToBufferCmd{}).
			Finish()
		requireFatal(t, func() { _ = f.executor.Execute(stream) })
	})

	t.Run("unknown buffer", func(t *testing.T) {
		f := newFixture(t)
		stream := commands.NewEncoder().
			Encode(commands.TransitionBufferUsageCmd{Buffer: 77, Usage: metadata.UsageVertex}).
			Finish()
		requireFatal(t, func() { _ = f.executor.Execute(stream) })
	})

	t.Run("replayed stream", func(t *testing.T) {
		f := newFixture(t)
		stream := commands.NewEncoder().Encode(commands.BeginComputePassCmd{}).Encode(commands.EndComputePassCmd{}).Finish()
		require.NoError(t, f.executor.Execute(stream))
		requireFatal(t, func() { _ = f.executor.Execute(stream) })
	})

	t.Run("unterminated pass", func(t *testing.T) {
		f := newFixture(t)
		stream := commands.NewEncoder().Encode(commands.BeginComputePassCmd{}).Finish()
		requireFatal(t, func() { _ = f.executor.Execute(stream) })
	})
}
