// Package deque implements each worker's local ready queue: a bounded,
// lock-free circular buffer the owner pushes and pops from the bottom
// (tail), and peer workers steal from the top (head).
//
// The power-of-two capacity and mask-based index arithmetic are grounded
// on catrate.ringBuffer's indexing idiom
// (joeycumines/go-utilpkg/catrate/ring.go); the lock-free head/tail CAS
// protocol itself is the classic Chase-Lev work-stealing deque, adapted
// to this scheduler's fixed (non-growing) capacity.
package deque

import (
	"sync/atomic"

	"github.com/janus-lang/janus-sub015/sched/task"
)

// DefaultCapacity is the deque capacity used when a worker is configured
// with zero (i.e. "use the default").
const DefaultCapacity = 256

// Deque is a bounded work-stealing deque of *task.Task. The zero value is
// not usable; construct with New.
type Deque struct {
	buf  []atomic.Pointer[task.Task]
	mask uint64

	// head is advanced only by successful steals (and by the owner's
	// pop_bottom when it wins the last-element race against a thief).
	head atomic.Uint64
	// tail is advanced only by the owner, via push_bottom/pop_bottom.
	tail atomic.Uint64
}

// New constructs an empty Deque with the given capacity, rounded up to
// the next power of two (minimum 2, so the head==tail-1 race check below
// always has room). capacity<=0 selects DefaultCapacity.
func New(capacity int) *Deque {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	size := 2
	for size < capacity {
		size <<= 1
	}
	return &Deque{
		buf:  make([]atomic.Pointer[task.Task], size),
		mask: uint64(size - 1),
	}
}

// Cap returns the deque's fixed capacity.
func (d *Deque) Cap() int { return len(d.buf) }

// Len returns a snapshot of the queue length. Because head and tail are
// read independently, a concurrent steal or push may make this stale the
// instant it is returned; it is intended for diagnostics, not
// synchronization.
func (d *Deque) Len() int {
	h := d.head.Load()
	t := d.tail.Load()
	if t < h {
		return 0
	}
	return int(t - h)
}

// PushBottom appends t at the tail. Only the owning worker may call this.
// It fails (returning false) without modifying the deque if it is full.
func (d *Deque) PushBottom(t *task.Task) bool {
	tail := d.tail.Load()
	head := d.head.Load()
	if tail-head >= uint64(len(d.buf)) {
		return false
	}
	d.buf[tail&d.mask].Store(t)
	d.tail.Store(tail + 1)
	return true
}

// PopBottom removes and returns the task most recently pushed. Only the
// owning worker may call this. It may race with a concurrent StealTop for
// the single remaining element; if that race is lost, PopBottom reports
// empty even though an element was briefly present.
func (d *Deque) PopBottom() (*task.Task, bool) {
	tail := d.tail.Load()
	if tail == 0 {
		return nil, false
	}
	tail--
	d.tail.Store(tail)

	head := d.head.Load()
	if head > tail {
		// Already empty: nothing was here, so restore tail exactly at head.
		d.tail.Store(head)
		return nil, false
	}

	item := d.buf[tail&d.mask].Load()

	if head == tail {
		// Exactly one element left: racing against any concurrent
		// StealTop for it. Whoever wins the CAS on head claims it; either
		// way, tail is reset to head+1 so the deque reports empty
		// afterward regardless of who won.
		won := d.head.CompareAndSwap(head, head+1)
		d.tail.Store(head + 1)
		if !won {
			return nil, false
		}
		return item, true
	}

	return item, true
}

// StealTop removes and returns the oldest task in the deque, for use by
// any worker other than the owner. It returns empty on a lost race or a
// genuinely empty queue; it never blocks.
func (d *Deque) StealTop() (*task.Task, bool) {
	head := d.head.Load()
	tail := d.tail.Load()
	if head >= tail {
		return nil, false
	}
	item := d.buf[head&d.mask].Load()
	if !d.head.CompareAndSwap(head, head+1) {
		// Another thief (or the owner's PopBottom) won.
		return nil, false
	}
	return item, true
}
