package containers

import (
	"github.com/spaghettifunk/gpucore/engine/core"
)

type serialEntry[T any] struct {
	serial core.Serial
	item   T
}

// SerialQueue holds work tagged with the serial after which it becomes safe
// to perform. Entries are appended in serial order, so draining only ever
// looks at the front of the queue.
type SerialQueue[T any] struct {
	entries     *RingQueue[serialEntry[T]]
	lastSerial  core.Serial
	lastDrained core.Serial
}

func NewSerialQueue[T any]() *SerialQueue[T] {
	return &SerialQueue[T]{
		entries: NewRingQueue[serialEntry[T]](16),
	}
}

// Enqueue appends item tagged with serial. Serials must not go backwards.
func (sq *SerialQueue[T]) Enqueue(item T, serial core.Serial) {
	core.Assert(serial >= sq.lastSerial, "serial queue: enqueue serial %d is lower than the last enqueued serial %d", serial, sq.lastSerial)
	sq.entries.Enqueue(serialEntry[T]{serial: serial, item: item})
	sq.lastSerial = serial
}

// IterateUpTo removes every entry whose serial is <= finished and hands it
// to fn in the order it was enqueued. A stale finished serial is a no-op.
func (sq *SerialQueue[T]) IterateUpTo(finished core.Serial, fn func(item T)) {
	if finished < sq.lastDrained {
		core.LogDebug("serial queue: ignoring stale drain to %d (already drained to %d)", finished, sq.lastDrained)
		return
	}
	sq.lastDrained = finished

	for !sq.entries.IsEmpty() {
		front, _ := sq.entries.Peek()
		if front.serial > finished {
			break
		}
		entry, _ := sq.entries.Dequeue()
		fn(entry.item)
	}
}

// DrainUpTo is IterateUpTo collecting the drained items.
func (sq *SerialQueue[T]) DrainUpTo(finished core.Serial) []T {
	var drained []T
	sq.IterateUpTo(finished, func(item T) {
		drained = append(drained, item)
	})
	return drained
}

func (sq *SerialQueue[T]) IsEmpty() bool {
	return sq.entries.IsEmpty()
}

func (sq *SerialQueue[T]) Len() int {
	return sq.entries.Len()
}

// LastSerial is the serial of the most recently enqueued entry.
func (sq *SerialQueue[T]) LastSerial() core.Serial {
	return sq.lastSerial
}
