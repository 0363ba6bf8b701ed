package commands

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

func requireAssertion(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fatal assertion")
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.IsAssertionFailure(err))
	}()
	fn()
}

func TestStreamDecodesInOrder(t *testing.T) {
	enc := NewEncoder()
	enc.Encode(BeginRenderPassCmd{RenderPass: 1, Framebuffer: 2})
	enc.Encode(BeginRenderSubpassCmd{})
	enc.SetPushConstants(metadata.ShaderStageBitVertex, 3, []uint32{7, 8})
	enc.SetVertexBuffers(1, []uint32{4, 5}, []uint32{0, 16})
	enc.Encode(DrawArraysCmd{VertexCount: 3, InstanceCount: 1})
	enc.Encode(EndRenderSubpassCmd{})
	enc.Encode(EndRenderPassCmd{})
	stream := enc.Finish()
	assert.Equal(t, 7, stream.Len())

	it := stream.Iterate()

	id, ok := it.NextCommandID()
	require.True(t, ok)
	require.Equal(t, BeginRenderPass, id)
	var begin BeginRenderPassCmd
	it.NextCommand(&begin)
	assert.Equal(t, BeginRenderPassCmd{RenderPass: 1, Framebuffer: 2}, begin)

	id, _ = it.NextCommandID()
	require.Equal(t, BeginRenderSubpass, id)
	it.NextCommand(&BeginRenderSubpassCmd{})

	id, _ = it.NextCommandID()
	require.Equal(t, SetPushConstants, id)
	var pc SetPushConstantsCmd
	it.NextCommand(&pc)
	assert.Equal(t, uint32(3), pc.Offset)
	values := make([]uint32, pc.Count)
	it.NextData(values)
	assert.Equal(t, []uint32{7, 8}, values)

	id, _ = it.NextCommandID()
	require.Equal(t, SetVertexBuffers, id)
	var vb SetVertexBuffersCmd
	it.NextCommand(&vb)
	buffers := make([]uint32, vb.Count)
	offsets := make([]uint32, vb.Count)
	it.NextData(buffers)
	it.NextData(offsets)
	assert.Equal(t, []uint32{4, 5}, buffers)
	assert.Equal(t, []uint32{0, 16}, offsets)

	id, _ = it.NextCommandID()
	require.Equal(t, DrawArrays, id)
	var draw DrawArraysCmd
	it.NextCommand(&draw)
	assert.Equal(t, uint32(3), draw.VertexCount)

	for _, want := range []ID{EndRenderSubpass, EndRenderPass} {
		id, ok = it.NextCommandID()
		require.True(t, ok)
		assert.Equal(t, want, id)
	}

	_, ok = it.NextCommandID()
	assert.False(t, ok)
}

func TestStreamUnderReadIsFatal(t *testing.T) {
	stream := NewEncoder().
		Encode(DispatchCmd{X: 1, Y: 1, Z: 1}).
		Finish()
	it := stream.Iterate()
	_, ok := it.NextCommandID()
	require.True(t, ok)

	requireAssertion(t, func() { it.NextCommandID() })
}

func TestStreamOverReadIsFatal(t *testing.T) {
	stream := NewEncoder().
		SetPushConstants(metadata.ShaderStageBitFragment, 0, []uint32{1}).
		Finish()
	it := stream.Iterate()
	it.NextCommandID()
	var pc SetPushConstantsCmd
	it.NextCommand(&pc)

	requireAssertion(t, func() { it.NextData(make([]uint32, 2)) })
}

func TestStreamMismatchedPayloadIsFatal(t *testing.T) {
	it := NewEncoder().Encode(DrawArraysCmd{}).Finish().Iterate()
	it.NextCommandID()

	requireAssertion(t, func() { it.NextCommand(&DrawElementsCmd{}) })
}

func TestStreamIteratesOnce(t *testing.T) {
	stream := NewEncoder().Encode(EndComputePassCmd{}).Finish()
	stream.Iterate()
	assert.True(t, stream.Consumed())

	requireAssertion(t, func() { stream.Iterate() })
}

func TestStreamTruncatedPayloadIsFatal(t *testing.T) {
	full := NewEncoder().Encode(SetBindGroupCmd{Index: 1, Group: 2}).Finish()
	raw := NewStream(full.data[:full.Size()-2])
	it := raw.Iterate()

	requireAssertion(t, func() { it.NextCommandID() })
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "DrawElements", DrawElements.String())
	assert.Equal(t, "Unknown", ID(9999).String())
	assert.False(t, CommandInvalid.IsValid())
	assert.False(t, ID(9999).IsValid())
	assert.True(t, TransitionTextureUsage.IsValid())
}
