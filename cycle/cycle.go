// Package cycle implements the cycle detector: it refuses to let a
// query's execution re-enter a memo key that is already on the current
// dependency path, and refuses to let it record a dependency that would
// close a cycle transitively.
//
// It tracks only currently-executing queries — completed queries cannot
// participate in cycles by construction, since a cached result has no
// pending edges left to close.
package cycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/janus-lang/janus-sub015/id"
)

// ErrCycle is returned by StartQuery and AddDependency when entering a
// query or recording a dependency would create a cycle.
var ErrCycle = errors.New("cycle: dependency cycle detected")

// running holds the bookkeeping the detector keeps for one in-flight
// query: owning worker, start time, and direct dependencies seen so far.
type running struct {
	owner     string // opaque worker/goroutine identity, for diagnostics
	startedAt time.Time
	direct    map[id.MemoKey]struct{}
}

// Detector is the cycle detector: a map from memo-key to running-query
// state.
type Detector struct {
	mu      sync.Mutex
	active  map[id.MemoKey]*running
	nowFn   func() time.Time
}

// New constructs an empty Detector.
func New() *Detector {
	return &Detector{
		active: make(map[id.MemoKey]*running),
		nowFn:  time.Now,
	}
}

// StartQuery marks k as currently executing, owned by owner (an opaque
// diagnostic label, e.g. a worker id). It fails with ErrCycle if k is
// already active — that means the same query is already on the current
// execution path, i.e. it has re-entered itself.
func (d *Detector) StartQuery(k id.MemoKey, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.active[k]; exists {
		return fmt.Errorf("%w: query %s is already executing", ErrCycle, k)
	}
	d.active[k] = &running{
		owner:     owner,
		startedAt: d.nowFn(),
		direct:    make(map[id.MemoKey]struct{}),
	}
	return nil
}

// AddDependency records that the currently-executing query k directly
// depends on d2. It fails with ErrCycle if d2 == k, or if d2 transitively
// reaches k via the graph of currently-active queries' direct edges
// (i.e. adding the edge would close a cycle among in-flight queries).
func (det *Detector) AddDependency(k, d2 id.MemoKey) error {
	det.mu.Lock()
	defer det.mu.Unlock()

	r, ok := det.active[k]
	if !ok {
		// k isn't tracked as active (e.g. called outside StartQuery/EndQuery
		// bracketing); nothing to check or record.
		return nil
	}

	if d2 == k {
		return fmt.Errorf("%w: query %s depends on itself", ErrCycle, k)
	}
	if det.reachesLocked(d2, k, make(map[id.MemoKey]struct{})) {
		return fmt.Errorf("%w: query %s transitively depends on %s, which depends on %s", ErrCycle, k, d2, k)
	}

	r.direct[d2] = struct{}{}
	return nil
}

// reachesLocked reports whether, starting from "from", following direct
// edges among currently-active queries reaches "target". Callers must
// hold det.mu.
func (det *Detector) reachesLocked(from, target id.MemoKey, seen map[id.MemoKey]struct{}) bool {
	if from == target {
		return true
	}
	if _, visited := seen[from]; visited {
		return false
	}
	seen[from] = struct{}{}

	r, ok := det.active[from]
	if !ok {
		return false
	}
	for next := range r.direct {
		if det.reachesLocked(next, target, seen) {
			return true
		}
	}
	return false
}

// EndQuery releases k's tracked state. It must be called exactly once for
// every successful StartQuery, on both success and failure paths, so that
// completed queries stop participating in cycle checks.
func (d *Detector) EndQuery(k id.MemoKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, k)
}

// Active reports whether k is currently tracked as executing.
func (d *Detector) Active(k id.MemoKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[k]
	return ok
}

// Len returns the number of currently-executing queries tracked.
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}
