package executor

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/commands"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

type PassState int

const (
	PASS_STATE_IDLE PassState = iota
	PASS_STATE_IN_RENDER_PASS
	PASS_STATE_IN_RENDER_SUBPASS
	PASS_STATE_IN_COMPUTE_PASS
)

func (s PassState) String() string {
	switch s {
	case PASS_STATE_IN_RENDER_PASS:
		return "in-render-pass"
	case PASS_STATE_IN_RENDER_SUBPASS:
		return "in-render-subpass"
	case PASS_STATE_IN_COMPUTE_PASS:
		return "in-compute-pass"
	default:
		return "idle"
	}
}

// Objects resolves the handles a stream refers to, other than resources.
type Objects interface {
	Pipeline(id uint32) (*metadata.Pipeline, bool)
	RenderPass(id uint32) (*metadata.RenderPass, bool)
	Framebuffer(id uint32) (*metadata.Framebuffer, bool)
	BindGroup(id uint32) (*metadata.BindGroup, bool)
}

type Stats struct {
	Commands             uint64
	Draws                uint64
	Dispatches           uint64
	Copies               uint64
	Clears               uint64
	Barriers             uint64
	PushConstantsApplied uint64
	VertexBuffersApplied uint64
}

// Executor replays command streams against a backend. Caches live for one
// executor and are reset at pass boundaries.
type Executor struct {
	backend   renderer.Backend
	resources *resource.Allocator
	objects   Objects

	pushConstants *PushConstantCache
	vertexInputs  *VertexInputCache
	pipelineState *PersistentPipelineState

	state       PassState
	pipeline    *metadata.Pipeline
	renderPass  *metadata.RenderPass
	framebuffer *metadata.Framebuffer
	subpass     uint32

	stats   Stats
	clock   *core.Clock
	metrics *core.ExecutionMetrics
}

func New(backend renderer.Backend, resources *resource.Allocator, objects Objects) *Executor {
	return &Executor{
		backend:       backend,
		resources:     resources,
		objects:       objects,
		pushConstants: NewPushConstantCache(),
		vertexInputs:  NewVertexInputCache(),
		pipelineState: NewPersistentPipelineState(),
		clock:         core.NewClock(),
		metrics:       core.NewExecutionMetrics(),
	}
}

// Execute consumes stream. Broken streams are fatal, native failures are
// returned after closing the render target the stream left open.
func (e *Executor) Execute(stream *commands.Stream) error {
	e.clock.Start()
	defer func() {
		e.clock.Stop()
		e.metrics.Update(e.clock.Elapsed())
	}()

	it := stream.Iterate()
	e.state = PASS_STATE_IDLE
	e.pipeline = nil
	e.renderPass = nil
	e.framebuffer = nil

	index := 0
	for {
		id, ok := it.NextCommandID()
		if !ok {
			break
		}
		e.stats.Commands++
		if err := e.executeCommand(id, it); err != nil {
			e.abort()
			return errors.Wrapf(err, "command %d (%s)", index, id)
		}
		index++
	}

	core.Assert(e.state == PASS_STATE_IDLE, "command stream ended %s", e.state)
	return nil
}

// abort leaves the backend outside any render target and the executor idle.
func (e *Executor) abort() {
	if e.state == PASS_STATE_IN_RENDER_SUBPASS {
		e.backend.EndRenderTarget()
	}
	e.state = PASS_STATE_IDLE
	e.pipeline = nil
	e.renderPass = nil
	e.framebuffer = nil
}

func (e *Executor) executeCommand(id commands.ID, it *commands.Iterator) error {
	switch id {
	case commands.BeginComputePass:
		e.expectState(id, PASS_STATE_IDLE)
		it.NextCommand(&commands.BeginComputePassCmd{})
		e.pushConstants.OnBeginPass()
		e.pipeline = nil
		e.state = PASS_STATE_IN_COMPUTE_PASS

	case commands.EndComputePass:
		e.expectState(id, PASS_STATE_IN_COMPUTE_PASS)
		it.NextCommand(&commands.EndComputePassCmd{})
		e.pipeline = nil
		e.state = PASS_STATE_IDLE

	case commands.BeginRenderPass:
		e.expectState(id, PASS_STATE_IDLE)
		var cmd commands.BeginRenderPassCmd
		it.NextCommand(&cmd)
		e.renderPass = e.mustRenderPass(cmd.RenderPass)
		e.framebuffer = e.mustFramebuffer(cmd.Framebuffer)
		core.Assert(len(e.framebuffer.Attachments) >= len(e.renderPass.Attachments),
			"framebuffer %d has %d attachments, render pass %d needs %d",
			cmd.Framebuffer, len(e.framebuffer.Attachments), cmd.RenderPass, len(e.renderPass.Attachments))
		e.subpass = 0
		e.state = PASS_STATE_IN_RENDER_PASS

	case commands.BeginRenderSubpass:
		e.expectState(id, PASS_STATE_IN_RENDER_PASS)
		it.NextCommand(&commands.BeginRenderSubpassCmd{})
		if err := e.beginSubpass(); err != nil {
			return err
		}
		e.state = PASS_STATE_IN_RENDER_SUBPASS

	case commands.EndRenderSubpass:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		it.NextCommand(&commands.EndRenderSubpassCmd{})
		e.backend.EndRenderTarget()
		e.pipeline = nil
		e.subpass++
		e.state = PASS_STATE_IN_RENDER_PASS

	case commands.EndRenderPass:
		e.expectState(id, PASS_STATE_IN_RENDER_PASS)
		it.NextCommand(&commands.EndRenderPassCmd{})
		e.renderPass = nil
		e.framebuffer = nil
		e.state = PASS_STATE_IDLE

	case commands.SetRenderPipeline:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.SetRenderPipelineCmd
		it.NextCommand(&cmd)
		pipeline := e.mustPipeline(cmd.Pipeline, metadata.PipelineKindRender)
		if err := e.backend.BindPipeline(pipeline); err != nil {
			return err
		}
		e.pushConstants.OnSetPipeline(pipeline)
		e.vertexInputs.OnSetPipeline(pipeline)
		e.pipeline = pipeline

	case commands.SetComputePipeline:
		e.expectState(id, PASS_STATE_IN_COMPUTE_PASS)
		var cmd commands.SetComputePipelineCmd
		it.NextCommand(&cmd)
		pipeline := e.mustPipeline(cmd.Pipeline, metadata.PipelineKindCompute)
		if err := e.backend.BindPipeline(pipeline); err != nil {
			return err
		}
		e.pushConstants.OnSetPipeline(pipeline)
		e.pipeline = pipeline

	case commands.SetPushConstants:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS, PASS_STATE_IN_COMPUTE_PASS)
		var cmd commands.SetPushConstantsCmd
		it.NextCommand(&cmd)
		values := make([]uint32, cmd.Count)
		it.NextData(values)
		e.pushConstants.OnSetPushConstants(cmd.Stages, cmd.Offset, values)

	case commands.SetStencilReference:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.SetStencilReferenceCmd
		it.NextCommand(&cmd)
		e.pipelineState.SetStencilReference(e.backend, cmd.Reference)

	case commands.SetBlendColor:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.SetBlendColorCmd
		it.NextCommand(&cmd)
		e.pipelineState.SetBlendColor(e.backend, [4]float32{cmd.R, cmd.G, cmd.B, cmd.A})

	case commands.SetBindGroup:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS, PASS_STATE_IN_COMPUTE_PASS)
		var cmd commands.SetBindGroupCmd
		it.NextCommand(&cmd)
		core.Assert(cmd.Index < metadata.MaxBindGroups, "bind group index %d out of range", cmd.Index)
		group := e.mustBindGroup(cmd.Group)
		e.backend.BindGroup(cmd.Index, group, e.resolveBindings(group))

	case commands.SetIndexBuffer:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.SetIndexBufferCmd
		it.NextCommand(&cmd)
		e.vertexInputs.OnSetIndexBuffer(e.mustBuffer(cmd.Buffer), uint64(cmd.Offset))

	case commands.SetVertexBuffers:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.SetVertexBuffersCmd
		it.NextCommand(&cmd)
		handles := make([]uint32, cmd.Count)
		rawOffsets := make([]uint32, cmd.Count)
		it.NextData(handles)
		it.NextData(rawOffsets)

		buffers := make([]*resource.Resource, cmd.Count)
		offsets := make([]uint64, cmd.Count)
		for i := range handles {
			buffers[i] = e.mustBuffer(handles[i])
			offsets[i] = uint64(rawOffsets[i])
		}
		e.vertexInputs.OnSetVertexBuffers(cmd.StartSlot, buffers, offsets)

	case commands.DrawArrays:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.DrawArraysCmd
		it.NextCommand(&cmd)
		e.applyRenderState(id)
		e.backend.Draw(cmd.VertexCount, cmd.InstanceCount, cmd.FirstVertex, cmd.FirstInstance)
		e.stats.Draws++

	case commands.DrawElements:
		e.expectState(id, PASS_STATE_IN_RENDER_SUBPASS)
		var cmd commands.DrawElementsCmd
		it.NextCommand(&cmd)
		core.Assert(e.vertexInputs.HasIndexBuffer(), "%s without an index buffer", id)
		e.applyRenderState(id)
		e.backend.DrawIndexed(cmd.IndexCount, cmd.InstanceCount, cmd.FirstIndex, cmd.FirstInstance)
		e.stats.Draws++

	case commands.Dispatch:
		e.expectState(id, PASS_STATE_IN_COMPUTE_PASS)
		var cmd commands.DispatchCmd
		it.NextCommand(&cmd)
		core.Assert(e.pipeline != nil, "%s without a compute pipeline", id)
		e.stats.PushConstantsApplied += uint64(e.pushConstants.Apply(e.backend, e.pipeline, metadata.ShaderStageBitCompute))
		e.backend.Dispatch(cmd.X, cmd.Y, cmd.Z)
		e.backend.MemoryBarrier()
		e.stats.Dispatches++

	case commands.CopyBufferToBuffer:
		e.expectState(id, PASS_STATE_IDLE)
		var cmd commands.CopyBufferToBufferCmd
		it.NextCommand(&cmd)
		src := e.mustBuffer(cmd.Source.Buffer)
		dst := e.mustBuffer(cmd.Destination.Buffer)
		if err := e.backend.CopyBufferToBuffer(src, cmd.Source.Offset, dst, cmd.Destination.Offset, cmd.Size); err != nil {
			return err
		}
		e.stats.Copies++

	case commands.CopyBufferToTexture:
		e.expectState(id, PASS_STATE_IDLE)
		var cmd commands.CopyBufferToTextureCmd
		it.NextCommand(&cmd)
		src := e.mustBuffer(cmd.Source.Buffer)
		dst := e.mustTexture(cmd.Destination.Texture)
		if err := e.backend.CopyBufferToTexture(src, cmd.Source.Offset, cmd.RowPitch, dst, textureRegion(cmd.Destination)); err != nil {
			return err
		}
		e.stats.Copies++

	case commands.CopyTextureToBuffer:
		e.expectState(id, PASS_STATE_IDLE)
		var cmd commands.CopyTextureToBufferCmd
		it.NextCommand(&cmd)
		src := e.mustTexture(cmd.Source.Texture)
		dst := e.mustBuffer(cmd.Destination.Buffer)
		if err := e.backend.CopyTextureToBuffer(src, textureRegion(cmd.Source), dst, cmd.Destination.Offset, cmd.RowPitch); err != nil {
			return err
		}
		e.stats.Copies++

	case commands.TransitionBufferUsage:
		e.expectState(id, PASS_STATE_IDLE, PASS_STATE_IN_RENDER_PASS, PASS_STATE_IN_COMPUTE_PASS)
		var cmd commands.TransitionBufferUsageCmd
		it.NextCommand(&cmd)
		e.mustBuffer(cmd.Buffer)
		e.transition(cmd.Buffer, cmd.Usage)

	case commands.TransitionTextureUsage:
		e.expectState(id, PASS_STATE_IDLE, PASS_STATE_IN_RENDER_PASS, PASS_STATE_IN_COMPUTE_PASS)
		var cmd commands.TransitionTextureUsageCmd
		it.NextCommand(&cmd)
		e.mustTexture(cmd.Texture)
		e.transition(cmd.Texture, cmd.Usage)

	default:
		core.Fatalf("unknown command tag %d", uint32(id))
	}
	return nil
}

func (e *Executor) beginSubpass() error {
	rp := e.renderPass
	fb := e.framebuffer
	core.Assert(int(e.subpass) < len(rp.Subpasses), "render pass %d has no subpass %d", rp.ID, e.subpass)
	subpass := rp.Subpasses[e.subpass]

	e.pushConstants.OnBeginPass()
	e.vertexInputs.OnBeginPass()
	e.pipeline = nil

	desc := &metadata.RenderTargetDescriptor{
		Width:     fb.Width,
		Height:    fb.Height,
		ColorsSet: subpass.ColorAttachmentsSet,
	}
	for _, location := range metadata.IterateBits(uint64(subpass.ColorAttachmentsSet)) {
		texture := e.mustTexture(fb.Attachments[subpass.ColorAttachments[location]])
		desc.Colors[location] = metadata.RenderTargetAttachment{Texture: texture.ID, Format: texture.Format, Native: texture.Native}
	}
	if subpass.DepthStencilAttachmentSet {
		texture := e.mustTexture(fb.Attachments[subpass.DepthStencilAttachment])
		desc.HasDepthStencil = true
		desc.DepthStencil = metadata.RenderTargetAttachment{Texture: texture.ID, Format: texture.Format, Native: texture.Native}
	}
	if err := e.backend.BeginRenderTarget(desc); err != nil {
		return err
	}

	// Load operations only apply in the first subpass using an attachment.
	for _, location := range metadata.IterateBits(uint64(subpass.ColorAttachmentsSet)) {
		slot := subpass.ColorAttachments[location]
		info := rp.Attachments[slot]
		if info.FirstSubpass != e.subpass || info.ColorLoadOp != metadata.LoadOpClear {
			continue
		}
		e.backend.ClearColor(location, fb.ClearValue(slot).Color)
		e.stats.Clears++
	}
	if subpass.DepthStencilAttachmentSet {
		slot := subpass.DepthStencilAttachment
		info := rp.Attachments[slot]
		var aspects metadata.ClearAspect
		if info.Format.HasDepth() && info.DepthLoadOp == metadata.LoadOpClear {
			aspects |= metadata.ClearAspectDepth
		}
		if info.Format.HasStencil() && info.StencilLoadOp == metadata.LoadOpClear {
			aspects |= metadata.ClearAspectStencil
		}
		if info.FirstSubpass == e.subpass && aspects != 0 {
			clear := fb.ClearValue(slot)
			e.backend.ClearDepthStencil(aspects, clear.Depth, clear.Stencil)
			e.stats.Clears++
		}
	}

	e.pipelineState.SetDefaultState(e.backend, fb.Width, fb.Height)
	return nil
}

func (e *Executor) applyRenderState(id commands.ID) {
	core.Assert(e.pipeline != nil, "%s without a render pipeline", id)
	e.stats.PushConstantsApplied += uint64(e.pushConstants.Apply(e.backend, e.pipeline, metadata.ShaderStageBitVertex|metadata.ShaderStageBitFragment))
	e.stats.VertexBuffersApplied += uint64(e.vertexInputs.Apply(e.backend, e.pipeline))
}

func (e *Executor) transition(id uint32, usage metadata.Usage) {
	barrier, ok := e.resources.Transition(id, usage)
	if !ok {
		return
	}
	e.backend.ResourceBarrier(barrier)
	e.stats.Barriers++
}

func (e *Executor) resolveBindings(group *metadata.BindGroup) []metadata.ResolvedBinding {
	bits := metadata.IterateBits(group.Layout.Mask)
	resolved := make([]metadata.ResolvedBinding, 0, len(bits))
	for _, index := range bits {
		binding := group.Bindings[index]
		rb := metadata.ResolvedBinding{
			Binding: index,
			Type:    group.Layout.Types[index],
		}
		switch rb.Type {
		case metadata.BindingTypeUniformBuffer, metadata.BindingTypeStorageBuffer:
			buffer := e.mustBuffer(binding.Resource)
			rb.Native = buffer.Native
			rb.Offset = binding.Offset
			core.Assert(binding.Offset <= buffer.Size, "binding %d offset %d is past the end of buffer %d (%d bytes)",
				index, binding.Offset, binding.Resource, buffer.Size)
			rb.Size = binding.Size
			if rb.Size == 0 {
				rb.Size = buffer.Size - binding.Offset
			}
			core.Assert(rb.Size <= buffer.Size-binding.Offset, "binding %d range [%d, +%d) overflows buffer %d (%d bytes)",
				index, binding.Offset, rb.Size, binding.Resource, buffer.Size)
		case metadata.BindingTypeSampler:
			rb.Sampler = binding.Sampler
		case metadata.BindingTypeSampledTexture:
			rb.Native = e.mustTexture(binding.Resource).Native
		}
		resolved = append(resolved, rb)
	}
	return resolved
}

func textureRegion(loc commands.TextureCopyLocation) metadata.TextureRegion {
	return metadata.TextureRegion{
		X:      loc.X,
		Y:      loc.Y,
		Z:      loc.Z,
		Width:  loc.Width,
		Height: loc.Height,
		Depth:  loc.Depth,
		Level:  loc.Level,
	}
}

func (e *Executor) expectState(id commands.ID, allowed ...PassState) {
	for _, s := range allowed {
		if e.state == s {
			return
		}
	}
	core.Fatalf("%s is not allowed %s", id, e.state)
}

func (e *Executor) mustBuffer(id uint32) *resource.Resource {
	res, ok := e.resources.Get(id)
	core.Assert(ok && res.Kind == metadata.ResourceKindBuffer, "unknown buffer %d", id)
	return res
}

func (e *Executor) mustTexture(id uint32) *resource.Resource {
	res, ok := e.resources.Get(id)
	core.Assert(ok && res.Kind == metadata.ResourceKindTexture, "unknown texture %d", id)
	return res
}

func (e *Executor) mustPipeline(id uint32, kind metadata.PipelineKind) *metadata.Pipeline {
	pipeline, ok := e.objects.Pipeline(id)
	core.Assert(ok && pipeline.Kind == kind, "unknown pipeline %d", id)
	return pipeline
}

func (e *Executor) mustRenderPass(id uint32) *metadata.RenderPass {
	rp, ok := e.objects.RenderPass(id)
	core.Assert(ok, "unknown render pass %d", id)
	return rp
}

func (e *Executor) mustFramebuffer(id uint32) *metadata.Framebuffer {
	fb, ok := e.objects.Framebuffer(id)
	core.Assert(ok, "unknown framebuffer %d", id)
	return fb
}

func (e *Executor) mustBindGroup(id uint32) *metadata.BindGroup {
	group, ok := e.objects.BindGroup(id)
	core.Assert(ok, "unknown bind group %d", id)
	return group
}

func (e *Executor) State() PassState {
	return e.state
}

func (e *Executor) PushConstants() *PushConstantCache {
	return e.pushConstants
}

func (e *Executor) VertexInputs() *VertexInputCache {
	return e.vertexInputs
}

func (e *Executor) PipelineState() *PersistentPipelineState {
	return e.pipelineState
}

func (e *Executor) Stats() Stats {
	return e.stats
}

func (e *Executor) Metrics() *core.ExecutionMetrics {
	return e.metrics
}
