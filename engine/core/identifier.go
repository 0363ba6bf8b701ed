package core

import "github.com/cockroachdb/errors"

type handleSlot[T any] struct {
	owner T
	used  bool
}

// HandleTable is an arena of owners addressed by uint32 handles. Released
// slots are reused by later acquisitions.
type HandleTable[T any] struct {
	slots []handleSlot[T]
	live  int
}

func NewHandleTable[T any](capacity int) *HandleTable[T] {
	return &HandleTable[T]{
		slots: make([]handleSlot[T], 0, capacity),
	}
}

// Acquire stores owner and returns its handle.
func (ht *HandleTable[T]) Acquire(owner T) uint32 {
	ht.live++
	length := uint32(len(ht.slots))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if !ht.slots[i].used {
			ht.slots[i] = handleSlot[T]{owner: owner, used: true}
			return i
		}
	}

	// No existing free slots, the id will be length.
	ht.slots = append(ht.slots, handleSlot[T]{owner: owner, used: true})
	return length
}

// Release frees the slot of id so that it can be acquired again.
func (ht *HandleTable[T]) Release(id uint32) error {
	if id >= uint32(len(ht.slots)) {
		return errors.Wrapf(ErrInvalidHandle, "handle '%d' out of range (max=%d). Nothing was done", id, len(ht.slots))
	}
	if !ht.slots[id].used {
		return errors.Wrapf(ErrInvalidHandle, "handle '%d' is not in use. Nothing was done", id)
	}

	var zero T
	ht.slots[id] = handleSlot[T]{owner: zero}
	ht.live--
	return nil
}

// Get returns the owner of id.
func (ht *HandleTable[T]) Get(id uint32) (T, bool) {
	if id >= uint32(len(ht.slots)) || !ht.slots[id].used {
		var zero T
		return zero, false
	}
	return ht.slots[id].owner, true
}

// Each calls fn for every live handle in ascending order.
func (ht *HandleTable[T]) Each(fn func(id uint32, owner T)) {
	for i := range ht.slots {
		if ht.slots[i].used {
			fn(uint32(i), ht.slots[i].owner)
		}
	}
}

func (ht *HandleTable[T]) Len() int {
	return ht.live
}
