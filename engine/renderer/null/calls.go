package null

import (
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

type CallKind string

const (
	CallSubmit              CallKind = "Submit"
	CallBeginRenderTarget   CallKind = "BeginRenderTarget"
	CallEndRenderTarget     CallKind = "EndRenderTarget"
	CallClearColor          CallKind = "ClearColor"
	CallClearDepthStencil   CallKind = "ClearDepthStencil"
	CallSetViewport         CallKind = "SetViewport"
	CallSetBlendColor       CallKind = "SetBlendColor"
	CallSetStencilReference CallKind = "SetStencilReference"
	CallBindPipeline        CallKind = "BindPipeline"
	CallSetPushConstant     CallKind = "SetPushConstant"
	CallBindVertexBuffer    CallKind = "BindVertexBuffer"
	CallBindIndexBuffer     CallKind = "BindIndexBuffer"
	CallBindGroup           CallKind = "BindGroup"
	CallDraw                CallKind = "Draw"
	CallDrawIndexed         CallKind = "DrawIndexed"
	CallDispatch            CallKind = "Dispatch"
	CallMemoryBarrier       CallKind = "MemoryBarrier"
	CallCopyBufferToBuffer  CallKind = "CopyBufferToBuffer"
	CallCopyBufferToTexture CallKind = "CopyBufferToTexture"
	CallCreateReadTarget    CallKind = "CreateReadTarget"
	CallReadPixels          CallKind = "ReadPixels"
	CallDestroyReadTarget   CallKind = "DestroyReadTarget"
	CallResourceBarrier     CallKind = "ResourceBarrier"
	CallDestroyPipeline     CallKind = "DestroyPipeline"
	CallDestroyBindGroup    CallKind = "DestroyBindGroup"
)

// Call is one recorded native call. Only the fields meaningful for Kind
// are set.
type Call struct {
	Kind     CallKind
	Stage    metadata.ShaderStage
	Slot     uint32
	Value    uint32
	Counts   [4]uint32
	Color    [4]float32
	Offset   uint64
	Resource *resource.Resource
	Pipeline *metadata.Pipeline
	Group    *metadata.BindGroup
	Target   *metadata.RenderTargetDescriptor
	Bindings []metadata.ResolvedBinding
	Barrier  metadata.Barrier
	Aspects  metadata.ClearAspect
	Serial   core.Serial
}

func (b *Backend) record(call Call) {
	b.calls = append(b.calls, call)
}

func (b *Backend) Calls() []Call {
	return b.calls
}

func (b *Backend) CallsOfKind(kind CallKind) []Call {
	var out []Call
	for _, c := range b.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Kinds lists the kinds of the recorded calls in order.
func (b *Backend) Kinds() []CallKind {
	kinds := make([]CallKind, len(b.calls))
	for i, c := range b.calls {
		kinds[i] = c.Kind
	}
	return kinds
}

func (b *Backend) ResetCalls() {
	b.calls = nil
}
