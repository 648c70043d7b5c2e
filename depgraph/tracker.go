package depgraph

import (
	"sync"

	"github.com/joeycumines/goroutineid"

	"github.com/janus-lang/janus-sub015/id"
)

// Tracker captures dependencies observed during the execution of a query
// without requiring the query body to know it is being observed.
//
// A single conceptual "current dependency set" stack only makes sense
// for one logical thread of control; because this engine's scheduler
// (see the sched package) may run many top-level query executions
// concurrently across worker goroutines, Tracker keeps one stack per
// goroutine, keyed by github.com/joeycumines/goroutineid's goroutine id.
// Nested (sub-)queries executing recursively within the same goroutine
// still push and pop their own frame; concurrent sibling executions on
// other goroutines never see each other's frames.
type Tracker struct {
	mu     sync.Mutex
	stacks map[int64][]*DependencySet
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{stacks: make(map[int64][]*DependencySet)}
}

func (t *Tracker) goroutineID() int64 {
	return goroutineid.Get()
}

// StartTracking pushes a fresh frame for the calling goroutine. The
// previous current set, if any, is preserved beneath it.
func (t *Tracker) StartTracking() *DependencySet {
	gid := t.goroutineID()
	s := new(DependencySet)
	*s = NewDependencySet()

	t.mu.Lock()
	t.stacks[gid] = append(t.stacks[gid], s)
	t.mu.Unlock()

	return s
}

// StopTracking pops the calling goroutine's top frame and returns it. It
// panics if called without a matching StartTracking — that pairing is a
// programming error in the executor, not a recoverable runtime condition.
func (t *Tracker) StopTracking() *DependencySet {
	gid := t.goroutineID()

	t.mu.Lock()
	defer t.mu.Unlock()

	stack := t.stacks[gid]
	if len(stack) == 0 {
		panic("depgraph: StopTracking called without a matching StartTracking")
	}
	top := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(t.stacks, gid)
	} else {
		t.stacks[gid] = stack
	}
	return top
}

// RecordCID appends c to the calling goroutine's current frame, if one is
// active; otherwise it is a no-op.
func (t *Tracker) RecordCID(c id.CID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.currentLocked(); s != nil {
		s.AddCID(c)
	}
}

// RecordQuery appends q to the calling goroutine's current frame, if one
// is active; otherwise it is a no-op. The query executor calls this at a
// sub-query call site once the child has finished, merging the child's
// memo key into the parent's set (the child's own captured CIDs/queries
// stay private to its own cache entry; only its identity is recorded as a
// dependency of the parent).
func (t *Tracker) RecordQuery(q id.MemoKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.currentLocked(); s != nil {
		s.AddQuery(q)
	}
}

func (t *Tracker) currentLocked() *DependencySet {
	gid := t.goroutineID()
	stack := t.stacks[gid]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// Depth returns the number of active frames for the calling goroutine,
// useful for diagnostics and for quota's recursion-depth accounting.
func (t *Tracker) Depth() int {
	gid := t.goroutineID()
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stacks[gid])
}
