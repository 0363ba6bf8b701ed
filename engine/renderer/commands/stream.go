package commands

import (
	"encoding/binary"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
)

var byteOrder = binary.LittleEndian

// Every entry is [id u32][payload size u32][payload].
const headerSize = 8

// Stream is a recorded sequence of commands. It can be iterated exactly once.
type Stream struct {
	data     []byte
	count    int
	consumed bool
}

// NewStream wraps already encoded bytes.
func NewStream(data []byte) *Stream {
	return &Stream{data: data, count: -1}
}

// Len is the number of encoded commands, or -1 for wrapped raw bytes.
func (s *Stream) Len() int {
	return s.count
}

func (s *Stream) Size() int {
	return len(s.data)
}

func (s *Stream) Consumed() bool {
	return s.consumed
}

// Iterate hands out the single reader of the stream.
func (s *Stream) Iterate() *Iterator {
	core.Assert(!s.consumed, "command stream iterated twice")
	s.consumed = true
	return &Iterator{data: s.data}
}

type Encoder struct {
	buf   []byte
	count int
}

func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// Encode appends cmd followed by optional trailing data, each a fixed-size
// value or a slice of fixed-size values.
func (e *Encoder) Encode(cmd Command, data ...any) *Encoder {
	start := len(e.buf)
	e.buf = byteOrder.AppendUint32(e.buf, uint32(cmd.CommandID()))
	e.buf = byteOrder.AppendUint32(e.buf, 0)

	e.buf = appendValue(e.buf, cmd)
	for _, d := range data {
		e.buf = appendValue(e.buf, d)
	}

	byteOrder.PutUint32(e.buf[start+4:], uint32(len(e.buf)-start-headerSize))
	e.count++
	return e
}

func (e *Encoder) SetPushConstants(stages metadata.ShaderStageBit, offset uint32, values []uint32) *Encoder {
	return e.Encode(SetPushConstantsCmd{Stages: stages, Offset: offset, Count: uint32(len(values))}, values)
}

func (e *Encoder) SetVertexBuffers(startSlot uint32, buffers, offsets []uint32) *Encoder {
	core.Assert(len(buffers) == len(offsets), "vertex buffers: %d buffers but %d offsets", len(buffers), len(offsets))
	return e.Encode(SetVertexBuffersCmd{StartSlot: startSlot, Count: uint32(len(buffers))}, buffers, offsets)
}

// Finish returns the recorded stream and resets the encoder.
func (e *Encoder) Finish() *Stream {
	s := &Stream{data: e.buf, count: e.count}
	e.buf = make([]byte, 0, 256)
	e.count = 0
	return s
}

func appendValue(buf []byte, v any) []byte {
	size := binary.Size(v)
	core.Assert(size >= 0, "command payload %T is not fixed-size", v)
	if size == 0 {
		return buf
	}
	out, err := binary.Append(buf, byteOrder, v)
	core.Assert(err == nil, "encoding %T: %v", v, err)
	return out
}

// Iterator reads a stream strictly in order: the id, then the command
// payload, then any trailing data. Reading past the end of an entry or
// leaving part of it unread is fatal.
type Iterator struct {
	data     []byte
	offset   int
	entryEnd int
	current  ID
	inEntry  bool
}

func (it *Iterator) NextCommandID() (ID, bool) {
	if it.inEntry {
		core.Assert(it.offset == it.entryEnd,
			"command %s: payload under-read, %d bytes left", it.current, it.entryEnd-it.offset)
		it.inEntry = false
	}
	if it.offset == len(it.data) {
		return CommandInvalid, false
	}

	core.Assert(len(it.data)-it.offset >= headerSize, "command stream truncated at offset %d", it.offset)
	id := ID(byteOrder.Uint32(it.data[it.offset:]))
	size := int(byteOrder.Uint32(it.data[it.offset+4:]))
	it.offset += headerSize
	core.Assert(it.offset+size <= len(it.data),
		"command %s: payload of %d bytes truncated to %d", id, size, len(it.data)-it.offset)

	it.entryEnd = it.offset + size
	it.current = id
	it.inEntry = true
	return id, true
}

// NextCommand decodes the payload of the current entry into cmd, which must
// be a pointer to the command type matching the id.
func (it *Iterator) NextCommand(cmd Command) {
	core.Assert(it.inEntry, "NextCommand called without a current command")
	core.Assert(cmd.CommandID() == it.current, "reading %s payload as %s", it.current, cmd.CommandID())
	it.read(cmd)
}

// NextData decodes trailing data of the current entry into out, a pointer or
// a pre-sized slice.
func (it *Iterator) NextData(out any) {
	core.Assert(it.inEntry, "NextData called without a current command")
	it.read(out)
}

func (it *Iterator) read(out any) {
	size := binary.Size(out)
	core.Assert(size >= 0, "payload %T is not fixed-size", out)
	if size == 0 {
		return
	}
	core.Assert(it.offset+size <= it.entryEnd,
		"command %s: payload over-read, want %d bytes, %d left", it.current, size, it.entryEnd-it.offset)

	n, err := binary.Decode(it.data[it.offset:it.entryEnd], byteOrder, out)
	core.Assert(err == nil, "decoding %s: %v", it.current, err)
	it.offset += n
}
