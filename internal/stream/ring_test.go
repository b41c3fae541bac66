package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fincore/internal/schema"
)

func TestRing(t *testing.T) {
	r := NewRing(3)
	for i := range 3 {
		assert.False(t, r.Push(schema.Record{"n": i}))
	}
	assert.True(t, r.Push(schema.Record{"n": 3}))
	assert.True(t, r.Push(schema.Record{"n": 4}))

	var got []int
	for _, row := range r.Snapshot() {
		got = append(got, row["n"].(int))
	}
	assert.Equal(t, []int{2, 3, 4}, got)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, 1, r.Cap())
	r.Push(schema.Record{"n": 1})
	assert.True(t, r.Push(schema.Record{"n": 2}))
	assert.Equal(t, 2, r.Snapshot()[0]["n"])
}

func TestState(t *testing.T) {
	assert.Equal(t, "DEGRADED", StateDegraded.String())
	assert.True(t, StateClosed.Terminal())
	assert.False(t, StateUnauthorized.Terminal())
}

func TestRing_Since(t *testing.T) {
	r := NewRing(3)
	rows, seq := r.Since(0)
	assert.Empty(t, rows)
	assert.EqualValues(t, 0, seq)

	r.Push(schema.Record{"n": 0})
	r.Push(schema.Record{"n": 1})
	rows, seq = r.Since(0)
	assert.Len(t, rows, 2)
	assert.EqualValues(t, 2, seq)

	for i := 2; i < 6; i++ {
		r.Push(schema.Record{"n": i})
	}
	rows, seq = r.Since(seq)
	assert.EqualValues(t, 6, seq)
	var got []int
	for _, row := range rows {
		got = append(got, row["n"].(int))
	}
	assert.Equal(t, []int{3, 4, 5}, got, "evicted rows are skipped")

	rows, seq = r.Since(seq)
	assert.Empty(t, rows)
	assert.EqualValues(t, 6, seq)

	rows, _ = r.Since(5)
	assert.Equal(t, 5, rows[0]["n"])
}
