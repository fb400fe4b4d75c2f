// Package ringbuf provides a fixed-capacity overwrite ring of model.Record
// used as the per-stream history window: signal detection scans it backward
// and the query interface reads it most-recent-first. Old records fall off
// the front once capacity is reached.
package ringbuf

import (
	"sync"

	"github.com/wayneWudh/aiagent/internal/model"
)

// Ring is a fixed-capacity record window. Push always succeeds, overwriting
// the oldest record when full. Safe for one writer and many readers.
type Ring struct {
	mu    sync.RWMutex
	buf   []model.Record
	head  int // next write position
	count int // number of live records, <= cap
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.Record, capacity)}
}

// Push appends a record, evicting the oldest when full.
func (r *Ring) Push(rec model.Record) {
	r.mu.Lock()
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the window capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// At returns the record at position i, where 0 is the oldest retained
// record and Len()-1 the newest. Panics on out-of-range i, matching
// slice semantics.
func (r *Ring) At(i int) model.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= r.count {
		panic("ringbuf: index out of range")
	}
	oldest := (r.head - r.count + len(r.buf)) % len(r.buf)
	return r.buf[(oldest+i)%len(r.buf)]
}

// Last returns the newest record, or false when the ring is empty.
func (r *Ring) Last() (model.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.count == 0 {
		return model.Record{}, false
	}
	idx := (r.head - 1 + len(r.buf)) % len(r.buf)
	return r.buf[idx], true
}

// Recent returns up to n records newest-first.
func (r *Ring) Recent(n int) []model.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > r.count {
		n = r.count
	}
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + 2*len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
