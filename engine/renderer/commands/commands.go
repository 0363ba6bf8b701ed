package commands

import (
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

// ID tags an entry of a command stream.
type ID uint32

const (
	CommandInvalid ID = iota
	BeginComputePass
	BeginRenderPass
	BeginRenderSubpass
	CopyBufferToBuffer
	CopyBufferToTexture
	CopyTextureToBuffer
	Dispatch
	DrawArrays
	DrawElements
	EndComputePass
	EndRenderPass
	EndRenderSubpass
	SetComputePipeline
	SetRenderPipeline
	SetPushConstants
	SetStencilReference
	SetBlendColor
	SetBindGroup
	SetIndexBuffer
	SetVertexBuffers
	TransitionBufferUsage
	TransitionTextureUsage
	commandCount
)

var commandNames = [commandCount]string{
	CommandInvalid:         "Invalid",
	BeginComputePass:       "BeginComputePass",
	BeginRenderPass:        "BeginRenderPass",
	BeginRenderSubpass:     "BeginRenderSubpass",
	CopyBufferToBuffer:     "CopyBufferToBuffer",
	CopyBufferToTexture:    "CopyBufferToTexture",
	CopyTextureToBuffer:    "CopyTextureToBuffer",
	Dispatch:               "Dispatch",
	DrawArrays:             "DrawArrays",
	DrawElements:           "DrawElements",
	EndComputePass:         "EndComputePass",
	EndRenderPass:          "EndRenderPass",
	EndRenderSubpass:       "EndRenderSubpass",
	SetComputePipeline:     "SetComputePipeline",
	SetRenderPipeline:      "SetRenderPipeline",
	SetPushConstants:       "SetPushConstants",
	SetStencilReference:    "SetStencilReference",
	SetBlendColor:          "SetBlendColor",
	SetBindGroup:           "SetBindGroup",
	SetIndexBuffer:         "SetIndexBuffer",
	SetVertexBuffers:       "SetVertexBuffers",
	TransitionBufferUsage:  "TransitionBufferUsage",
	TransitionTextureUsage: "TransitionTextureUsage",
}

func (id ID) String() string {
	if id < commandCount {
		return commandNames[id]
	}
	return "Unknown"
}

func (id ID) IsValid() bool {
	return id > CommandInvalid && id < commandCount
}

// Command is a fixed-size payload. Every field must be a fixed-size value so
// the payload can go through encoding/binary.
type Command interface {
	CommandID() ID
}

type BeginComputePassCmd struct{}

type BeginRenderPassCmd struct {
	RenderPass  uint32
	Framebuffer uint32
}

type BeginRenderSubpassCmd struct{}

type BufferCopyLocation struct {
	Buffer uint32
	Offset uint64
}

type TextureCopyLocation struct {
	Texture uint32
	X       uint32
	Y       uint32
	Z       uint32
	Width   uint32
	Height  uint32
	Depth   uint32
	Level   uint32
}

type CopyBufferToBufferCmd struct {
	Source      BufferCopyLocation
	Destination BufferCopyLocation
	Size        uint64
}

type CopyBufferToTextureCmd struct {
	Source      BufferCopyLocation
	Destination TextureCopyLocation
	RowPitch    uint32
}

type CopyTextureToBufferCmd struct {
	Source      TextureCopyLocation
	Destination BufferCopyLocation
	RowPitch    uint32
}

type DispatchCmd struct {
	X uint32
	Y uint32
	Z uint32
}

type DrawArraysCmd struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

type DrawElementsCmd struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	FirstInstance uint32
}

type EndComputePassCmd struct{}

type EndRenderPassCmd struct{}

type EndRenderSubpassCmd struct{}

type SetComputePipelineCmd struct {
	Pipeline uint32
}

type SetRenderPipelineCmd struct {
	Pipeline uint32
}

// SetPushConstantsCmd is followed by Count uint32 values.
type SetPushConstantsCmd struct {
	Stages metadata.ShaderStageBit
	Offset uint32
	Count  uint32
}

type SetStencilReferenceCmd struct {
	Reference uint32
}

type SetBlendColorCmd struct {
	R float32
	G float32
	B float32
	A float32
}

type SetBindGroupCmd struct {
	Index uint32
	Group uint32
}

type SetIndexBufferCmd struct {
	Buffer uint32
	Offset uint32
}

// SetVertexBuffersCmd is followed by Count buffer handles then Count offsets,
// both uint32.
type SetVertexBuffersCmd struct {
	StartSlot uint32
	Count     uint32
}

type TransitionBufferUsageCmd struct {
	Buffer uint32
	Usage  metadata.Usage
}

type TransitionTextureUsageCmd struct {
	Texture uint32
	Usage   metadata.Usage
}

func (BeginComputePassCmd) CommandID() ID       { return BeginComputePass }
func (BeginRenderPassCmd) CommandID() ID        { return BeginRenderPass }
func (BeginRenderSubpassCmd) CommandID() ID     { return BeginRenderSubpass }
func (CopyBufferToBufferCmd) CommandID() ID     { return CopyBufferToBuffer }
func (CopyBufferToTextureCmd) CommandID() ID    { return CopyBufferToTexture }
func (CopyTextureToBufferCmd) CommandID() ID    { return CopyTextureToBuffer }
func (DispatchCmd) CommandID() ID               { return Dispatch }
func (DrawArraysCmd) CommandID() ID             { return DrawArrays }
func (DrawElementsCmd) CommandID() ID           { return DrawElements }
func (EndComputePassCmd) CommandID() ID         { return EndComputePass }
func (EndRenderPassCmd) CommandID() ID          { return EndRenderPass }
func (EndRenderSubpassCmd) CommandID() ID       { return EndRenderSubpass }
func (SetComputePipelineCmd) CommandID() ID     { return SetComputePipeline }
func (SetRenderPipelineCmd) CommandID() ID      { return SetRenderPipeline }
func (SetPushConstantsCmd) CommandID() ID       { return SetPushConstants }
func (SetStencilReferenceCmd) CommandID() ID    { return SetStencilReference }
func (SetBlendColorCmd) CommandID() ID          { return SetBlendColor }
func (SetBindGroupCmd) CommandID() ID           { return SetBindGroup }
func (SetIndexBufferCmd) CommandID() ID         { return SetIndexBuffer }
func (SetVertexBuffersCmd) CommandID() ID       { return SetVertexBuffers }
func (TransitionBufferUsageCmd) CommandID() ID  { return TransitionBufferUsage }
func (TransitionTextureUsageCmd) CommandID() ID { return TransitionTextureUsage }
