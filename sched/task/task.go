// Package task implements the unit of scheduled work: a monotonic id, an
// atomic state machine, an entry callable, and a result slot holding
// exactly one of a success value, an error, a panic marker, or
// cancellation.
//
// The single-word atomic state machine is grounded on
// joeycumines/go-utilpkg/eventloop's FastState: pure CompareAndSwap
// transitions throughout, including into the absorbing terminal states,
// so two callers racing the same terminal transition can never both win.
package task

import (
	"sync/atomic"
)

// State is one state in a Task's lifecycle.
type State uint32

const (
	// Ready means the task was created (or unblocked) and is eligible to
	// be picked up by a worker.
	Ready State = iota
	// Running means a worker is currently executing the task's entry
	// function.
	Running
	// Blocked means the task yielded pending an external event (a
	// nursery awaitAll, a channel operation) and is not in any deque.
	Blocked
	// Completed, Errored, Cancelled, and BudgetExhausted are terminal:
	// once reached, State never changes again.
	Completed
	Errored
	Cancelled
	BudgetExhausted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Cancelled:
		return "cancelled"
	case BudgetExhausted:
		return "budget-exhausted"
	default:
		return "unknown-state"
	}
}

// Terminal reports whether s is one of the absorbing terminal states.
func (s State) Terminal() bool {
	switch s {
	case Completed, Errored, Cancelled, BudgetExhausted:
		return true
	default:
		return false
	}
}

// Entry is a task's body: given its argument, it runs to completion,
// yields a result, or panics.
type Entry func(arg any) (any, error)

var nextID atomic.Uint64

// Result holds exactly one of a success value, an error, or a panic
// marker, once the owning Task reaches a terminal state.
type Result struct {
	Value     any
	Err       error
	Panicked  bool
	PanicInfo any
}

// Task is one scheduled unit of work, owned by exactly one nursery.
type Task struct {
	ID    uint64
	Entry Entry
	Arg   any

	// NurseryID is the back-pointer to the owning nursery, 0 if none.
	NurseryID uint64

	state atomic.Uint32

	result atomic.Pointer[Result]
}

// New constructs a Ready task with a fresh, process-wide unique id. id is
// always non-zero, so 0 is reserved to mean "no task" in back-pointers.
func New(entry Entry, arg any, nurseryID uint64) *Task {
	return &Task{
		ID:        nextID.Add(1),
		Entry:     entry,
		Arg:       arg,
		NurseryID: nurseryID,
	}
}

// State returns the task's current state.
func (t *Task) State() State {
	return State(t.state.Load())
}

// TryTransition attempts an atomic from→to state change, succeeding only
// if the task is still in from. It is the only way a task's state may
// change to a non-terminal state; terminal states are set via
// Complete/Fail/Cancel/ExhaustBudget instead, which also populate Result.
func (t *Task) TryTransition(from, to State) bool {
	return t.state.CompareAndSwap(uint32(from), uint32(to))
}

// finishFrom attempts to move the task into the terminal state to and
// store result, but only from a state allowed satisfies. It loops on CAS
// failure (another goroutine racing the same transition) rather than
// blindly overwriting, so terminal states stay absorbing: once some
// caller wins the transition, every other caller's finishFrom observes
// the new terminal state and backs off.
func (t *Task) finishFrom(allowed func(State) bool, to State, result Result) bool {
	for {
		cur := State(t.state.Load())
		if !allowed(cur) {
			return false
		}
		if t.state.CompareAndSwap(uint32(cur), uint32(to)) {
			t.result.Store(&result)
			return true
		}
	}
}

// finish moves the task into a terminal state from any non-terminal one.
// It reports whether this call performed the transition; a false return
// means the task had already reached some other terminal state first.
func (t *Task) finish(state State, result Result) bool {
	return t.finishFrom(func(s State) bool { return !s.Terminal() }, state, result)
}

// Complete marks the task Completed with the given success value.
func (t *Task) Complete(value any) {
	t.finish(Completed, Result{Value: value})
}

// Fail marks the task Errored with err.
func (t *Task) Fail(err error) {
	t.finish(Errored, Result{Err: err})
}

// Panic marks the task Errored with a panic marker, so a nursery
// propagating a panicking child's failure can tell a panic apart from an
// ordinary returned error.
func (t *Task) Panic(info any) {
	t.finish(Errored, Result{Panicked: true, PanicInfo: info})
}

// Cancel marks the task Cancelled, but only if it is still Ready or
// Blocked — a task already Running is not preempted; this scheduler is
// cooperative and never interrupts a task mid-execution, so a Running
// task simply runs to its own Complete/Fail/Panic. It reports whether
// this call performed the transition, so a caller (a nursery force-
// cancelling its children) knows whether it must itself record the
// task's completion or leave that to the worker that is running it.
func (t *Task) Cancel() bool {
	return t.finishFrom(func(s State) bool { return s == Ready || s == Blocked }, Cancelled, Result{})
}

// ExhaustBudget marks the task BudgetExhausted.
func (t *Task) ExhaustBudget() {
	t.finish(BudgetExhausted, Result{})
}

// Result returns the task's result slot. It is only meaningful once
// State().Terminal() is true.
func (t *Task) Result() Result {
	if r := t.result.Load(); r != nil {
		return *r
	}
	return Result{}
}
