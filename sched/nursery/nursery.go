// Package nursery implements structured concurrency over the scheduler:
// a nursery owns a set of spawned child tasks, tracks their completion,
// and propagates cancellation and the first observed error.
//
// The state machine is a single atomic word with CAS transitions for the
// temporary states and a CAS loop into the absorbing terminal ones,
// grounded on joeycumines/go-utilpkg/eventloop's FastState idiom, the
// same one sched/task's Task.state already follows. The owning-task →
// owned-nursery lookup needed for transitive cancellation is a
// package-level id-keyed registry, grounded on the same "no true
// goroutine/thread-local storage, so key a map by id instead" idiom
// depgraph.Tracker uses for its per-goroutine dependency-set stacks.
package nursery

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janus-lang/janus-sub015/internal/rtlog"
	"github.com/janus-lang/janus-sub015/sched"
	"github.com/janus-lang/janus-sub015/sched/budget"
	"github.com/janus-lang/janus-sub015/sched/fiber"
	"github.com/janus-lang/janus-sub015/sched/task"
	"github.com/janus-lang/janus-sub015/sched/worker"
)

// State is one state in a Nursery's lifecycle.
type State int32

const (
	Open State = iota
	Closing
	Cancelling
	Closed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Cancelling:
		return "cancelling"
	case Closed:
		return "closed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown-state"
	}
}

// Terminal reports whether s is Closed or Cancelled.
func (s State) Terminal() bool { return s == Closed || s == Cancelled }

// pollInterval is how often AwaitAll re-checks completion when called
// from outside a fiber context (no Blocked-yield machinery available).
const pollInterval = time.Millisecond

var nextID atomic.Uint64

// Result is the outcome of AwaitAll: errors beat cancellation, which
// beats plain success, per the mandatory "errors beat cancellation"
// priority.
type Result struct {
	Err       error
	Cancelled bool
}

// Nursery owns a budget and a set of spawned child tasks.
type Nursery struct {
	ID       uint64
	Budget   *budget.Budget
	ParentID uint64 // 0 if this is a root nursery

	pool   *worker.Pool
	submit func(*task.Task) bool

	state atomic.Int32

	mu        sync.Mutex
	children  []*task.Task
	completed int
	firstErr  error
	awaiter   *task.Task
	ownerTask *task.Task
}

// New constructs an Open Nursery bound to pool, using submit to hand
// spawned tasks to the scheduler (the explicit-submit-function
// requirement that keeps this package free of any ambient scheduler
// lookup). parentID is 0 for a root nursery.
func New(pool *worker.Pool, submit func(*task.Task) bool, b *budget.Budget, parentID uint64) *Nursery {
	return &Nursery{
		ID:       nextID.Add(1),
		Budget:   b,
		ParentID: parentID,
		pool:     pool,
		submit:   submit,
	}
}

// State returns the nursery's current lifecycle state.
func (n *Nursery) State() State { return State(n.state.Load()) }

// Spawn allocates and submits a new child task running entry with arg.
// It fails with sched.ErrSpawnRejected if the nursery is not Open or if
// the nursery's budget cannot cover a spawn operation. If the nursery
// accepts the request but the scheduler itself rejects submission (a
// worker's deque is at capacity), it fails with
// sched.ErrSubmissionFailed instead, the just-appended child is rolled
// back, and the budget charge is not refunded — matching quota.Gas's own
// no-rollback-on-failure-path behavior elsewhere in this engine.
func (n *Nursery) Spawn(entry task.Entry, arg any) (*task.Task, error) {
	if n.State() != Open {
		return nil, sched.ErrSpawnRejected
	}
	if !n.Budget.Charge(budget.OpSpawn) {
		return nil, sched.ErrSpawnRejected
	}

	t := task.New(entry, arg, n.ID)
	n.mu.Lock()
	n.children = append(n.children, t)
	n.mu.Unlock()

	if !n.submit(t) {
		n.mu.Lock()
		for i := len(n.children) - 1; i >= 0; i-- {
			if n.children[i].ID == t.ID {
				n.children = append(n.children[:i], n.children[i+1:]...)
				break
			}
		}
		n.mu.Unlock()
		return nil, sched.ErrSubmissionFailed
	}
	return t, nil
}

// Close transitions Open→Closing, after which Spawn always fails. It
// reports whether this call performed the transition.
func (n *Nursery) Close() bool {
	return n.state.CompareAndSwap(int32(Open), int32(Closing))
}

// Cancel transitions Open→Cancelling or Closing→Cancelling, marks every
// non-finished child Cancelled, and recursively cancels any nursery a
// child owns. It is idempotent: calling it again while already
// Cancelling, or once terminal, is a no-op.
//
// A child still Ready (sitting in a worker's deque, never picked up) or
// Blocked (parked pending its own wake-up) is force-cancelled here, and
// since no worker loop will ever run it to a terminal state on its own,
// this call notifies the nursery of its completion synchronously —
// otherwise allChildrenDone would never observe it and AwaitAll would
// hang. A child that is already Running is left alone (Task.Cancel is a
// no-op for it); the worker driving it will reach Complete/Fail/Panic
// normally and notify through the usual scheduler dispatch path, so
// notifying it here too would double-count.
func (n *Nursery) Cancel() {
	if !n.state.CompareAndSwap(int32(Open), int32(Cancelling)) {
		if !n.state.CompareAndSwap(int32(Closing), int32(Cancelling)) {
			return
		}
	}

	n.mu.Lock()
	children := append([]*task.Task(nil), n.children...)
	n.mu.Unlock()

	rtlog.Info().Uint64("nursery_id", n.ID).Int("child_count", len(children)).Log("nursery cancelled")

	for _, c := range children {
		if owned, ok := lookupOwnedNursery(c.ID); ok {
			owned.Cancel()
		}
		if c.Cancel() {
			n.NotifyChildComplete(c)
		}
	}
}

// SetOwnerTask establishes the bidirectional owning-task ↔ nursery
// binding: when t is later cancelled, the runtime's cancellation path
// can find n via the owning-task id and cancel it transitively before t
// becomes terminal.
func (n *Nursery) SetOwnerTask(t *task.Task) {
	n.mu.Lock()
	n.ownerTask = t
	n.mu.Unlock()
	ownerRegistry.Store(t.ID, n)
}

// ClearOwnerTask removes the binding established by SetOwnerTask.
func (n *Nursery) ClearOwnerTask() {
	n.mu.Lock()
	t := n.ownerTask
	n.ownerTask = nil
	n.mu.Unlock()
	if t != nil {
		ownerRegistry.Delete(t.ID)
	}
}

// NotifyChildComplete records t's outcome (first error wins), increments
// the completion counter, and — if every child has now finished and a
// task is parked in AwaitAll — wakes that awaiter. The scheduler wires
// this as the termination callback for tasks belonging to this nursery.
func (n *Nursery) NotifyChildComplete(t *task.Task) {
	n.mu.Lock()
	n.completed++
	if n.firstErr == nil {
		r := t.Result()
		switch {
		case r.Panicked:
			n.firstErr = fmt.Errorf("nursery: child task %d panicked: %v", t.ID, r.PanicInfo)
		case r.Err != nil:
			n.firstErr = r.Err
		}
	}
	allDone := n.completed >= len(n.children)
	var awaiter *task.Task
	if allDone {
		awaiter = n.awaiter
		n.awaiter = nil
	}
	n.mu.Unlock()

	if allDone && awaiter != nil {
		n.pool.WakeBlocked(awaiter, struct{}{})
	}
}

// allChildrenDone reports whether every spawned child has reached a
// terminal state.
func (n *Nursery) allChildrenDone() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.completed >= len(n.children)
}

// AwaitAll closes the nursery, waits for every child to finish, and
// transitions Closing→Closed or Cancelling→Cancelled. Inside a fiber it
// waits by parking the calling task as the awaiter and yielding Blocked;
// outside a fiber (e.g. a plain goroutine driving the runtime directly)
// it falls back to short polling. The owner-task binding, if any, is
// cleared before returning.
func (n *Nursery) AwaitAll() Result {
	n.Close()

	for !n.allChildrenDone() {
		if fiber.InFiberContext() {
			n.mu.Lock()
			n.awaiter = fiber.CurrentTask()
			n.mu.Unlock()
			fiber.YieldBlocked("nursery-await-all")
		} else {
			time.Sleep(pollInterval)
		}
	}

	cancelled := false
	for {
		switch State(n.state.Load()) {
		case Cancelling:
			if n.state.CompareAndSwap(int32(Cancelling), int32(Cancelled)) {
				cancelled = true
			}
		case Closing:
			n.state.CompareAndSwap(int32(Closing), int32(Closed))
		default:
			cancelled = State(n.state.Load()) == Cancelled
		}
		if State(n.state.Load()).Terminal() {
			break
		}
	}

	n.ClearOwnerTask()

	n.mu.Lock()
	err := n.firstErr
	n.mu.Unlock()

	return Result{Err: err, Cancelled: cancelled && err == nil}
}

// ownerRegistry maps a task id to the nursery it owns, if any. It is the
// mechanism Cancel uses to find and recursively cancel a nursery created
// by a task it is in the middle of cancelling.
var ownerRegistry sync.Map // map[uint64]*Nursery

func lookupOwnedNursery(taskID uint64) (*Nursery, bool) {
	v, ok := ownerRegistry.Load(taskID)
	if !ok {
		return nil, false
	}
	return v.(*Nursery), true
}
