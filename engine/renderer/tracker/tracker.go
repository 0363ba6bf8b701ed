package tracker

import (
	"github.com/spaghettifunk/gpucore/engine/containers"
	"github.com/spaghettifunk/gpucore/engine/core"
)

// Completer is notified once the serial its payload was tracked with is
// finished.
type Completer[P any] interface {
	OnSerialCompleted(payload P)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc[P any] func(payload P)

func (f CompleterFunc[P]) OnSerialCompleted(payload P) {
	f(payload)
}

type pending[P any] struct {
	requester Completer[P]
	payload   P
}

// Tracker delivers completions in the order they were tracked. Every
// tracked entry must have been delivered before the tracker goes away.
type Tracker[P any] struct {
	name    string
	pending *containers.SerialQueue[pending[P]]
}

func New[P any](name string) *Tracker[P] {
	return &Tracker[P]{
		name:    name,
		pending: containers.NewSerialQueue[pending[P]](),
	}
}

func (t *Tracker[P]) Track(requester Completer[P], serial core.Serial, payload P) {
	core.Assert(requester != nil, "%s: tracking a completion without requester", t.name)
	t.pending.Enqueue(pending[P]{requester: requester, payload: payload}, serial)
}

// Tick fires every completion tracked at or before finished, exactly once.
func (t *Tracker[P]) Tick(finished core.Serial) {
	t.pending.IterateUpTo(finished, func(p pending[P]) {
		p.requester.OnSerialCompleted(p.payload)
	})
}

// Destroy asserts nothing is left. A leftover entry means a serial was
// never reported as finished.
func (t *Tracker[P]) Destroy() {
	core.Assert(t.pending.IsEmpty(), "%s: destroyed with %d pending completions, last serial %d",
		t.name, t.pending.Len(), t.pending.LastSerial())
}

func (t *Tracker[P]) IsEmpty() bool {
	return t.pending.IsEmpty()
}

func (t *Tracker[P]) Len() int {
	return t.pending.Len()
}
