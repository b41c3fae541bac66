package stream

import (
	"sync"

	"fincore/internal/schema"
)

// Ring is a fixed-capacity buffer that evicts its oldest row when full.
// One writer, any number of readers.
type Ring struct {
	mu    sync.RWMutex
	buf   []schema.Record
	start int
	size  int
	total int64
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]schema.Record, capacity)}
}

// Push appends row and reports whether an older row was evicted.
func (r *Ring) Push(row schema.Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	capacity := len(r.buf)
	r.total++
	if r.size < capacity {
		r.buf[(r.start+r.size)%capacity] = row
		r.size++
		return false
	}
	r.buf[r.start] = row
	r.start = (r.start + 1) % capacity
	return true
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

func (r *Ring) Cap() int {
	return len(r.buf)
}

// Snapshot returns the rows oldest first.
func (r *Ring) Snapshot() []schema.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.Record, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Since returns the rows pushed after the first seq, oldest first, and the
// sequence to pass next time. Rows already evicted are skipped.
func (r *Ring) Since(seq int64) ([]schema.Record, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	first := r.total - int64(r.size)
	seq = max(seq, first)
	if seq >= r.total {
		return nil, r.total
	}
	out := make([]schema.Record, 0, r.total-seq)
	for i := int(seq - first); i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out, r.total
}
