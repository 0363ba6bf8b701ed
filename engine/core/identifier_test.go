package core

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTableReusesReleasedSlots(t *testing.T) {
	ht := NewHandleTable[string](4)

	a := ht.Acquire("a")
	b := ht.Acquire("b")
	c := ht.Acquire("c")
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{a, b, c})
	assert.Equal(t, 3, ht.Len())

	require.NoError(t, ht.Release(b))
	_, ok := ht.Get(b)
	assert.False(t, ok)

	d := ht.Acquire("d")
	assert.Equal(t, b, d)
	owner, ok := ht.Get(d)
	require.True(t, ok)
	assert.Equal(t, "d", owner)
	assert.Equal(t, 3, ht.Len())
}

func TestHandleTableReleaseErrors(t *testing.T) {
	ht := NewHandleTable[int](0)

	err := ht.Release(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidHandle))

	id := ht.Acquire(7)
	require.NoError(t, ht.Release(id))
	err = ht.Release(id)
	assert.True(t, errors.Is(err, ErrInvalidHandle))
}

func TestHandleTableEach(t *testing.T) {
	ht := NewHandleTable[int](0)
	for i := 0; i < 4; i++ {
		ht.Acquire(i * 10)
	}
	require.NoError(t, ht.Release(1))

	var seen []int
	ht.Each(func(_ uint32, owner int) { seen = append(seen, owner) })
	assert.Equal(t, []int{0, 20, 30}, seen)
}

func TestAssertPanicsWithAssertionFailure(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "never") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.IsAssertionFailure(err))
		assert.Contains(t, err.Error(), "serial 3")
	}()
	Assert(false, "serial %d", 3)
}

func TestExecutionMetricsAverage(t *testing.T) {
	m := NewExecutionMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(2_000_000) // 2ms
	}
	assert.InDelta(t, 2.0, m.AverageMS(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), m.Count())
}
