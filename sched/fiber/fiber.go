// Package fiber implements the scheduler's stackful-continuation
// contract without architecture-specific assembly: one logical thread of
// control per fiber, explicit suspend/resume, one fiber's state never
// touched by another.
//
// Real callee-saved-register/stack-pointer context switching is not
// expressible as safe, reviewable Go. Instead, each Fiber is backed by a
// dedicated goroutine blocked on a pair of rendezvous channels:
// "switching into" a fiber means sending on its resume channel and
// blocking on its yield channel, and vice versa for switching out. Go's
// own runtime supplies the M:N goroutine multiplexing and stack
// management a hand-rolled primitive would otherwise have to provide.
// Only one side of the rendezvous is ever runnable at a time, so the
// cooperative, non-preemptive scheduling model is preserved even though
// the mechanism is channels rather than registers.
//
// A fiber's body discovers "itself" — CurrentTask, InFiberContext, Yield,
// YieldBlocked, YieldComplete — via a goroutine-id-keyed registry rather
// than a parameter, mirroring depgraph.Tracker's per-goroutine-id stack:
// the same "no true thread-local storage in Go, so key a map by
// goroutineid.Get() instead" idiom used there.
package fiber

import (
	"fmt"
	"sync"

	"github.com/joeycumines/goroutineid"

	"github.com/janus-lang/janus-sub015/sched/task"
)

// Outcome is what a Resume call observes when the fiber it switched into
// hands control back: either it suspended (Blocked, with a reason) or it
// reached a terminal outcome (completed, errored, or panicked).
type Outcome struct {
	Blocked   bool
	Reason    any
	Result    any
	Err       error
	Panicked  bool
	PanicInfo any
}

// Terminal reports whether the fiber's underlying task has finished,
// i.e. this Outcome is not a suspension.
func (o Outcome) Terminal() bool { return !o.Blocked }

// Fiber wraps one task.Task with its own dedicated goroutine and
// rendezvous channels.
type Fiber struct {
	Task *task.Task

	resumeCh chan any
	yieldCh  chan Outcome

	startOnce sync.Once
}

// New constructs a Fiber for t. The backing goroutine is not started
// until the first Resume call.
func New(t *task.Task) *Fiber {
	return &Fiber{
		Task:     t,
		resumeCh: make(chan any),
		yieldCh:  make(chan Outcome),
	}
}

// Resume switches the calling goroutine (normally a worker) into f,
// handing it value — the initial entry argument on the first call, or
// the wake-up value on every subsequent call after a suspension — and
// blocks until f suspends or finishes.
func (f *Fiber) Resume(value any) Outcome {
	f.startOnce.Do(func() { go f.run() })
	f.resumeCh <- value
	return <-f.yieldCh
}

// completionSignal is the panic payload YieldComplete uses to unwind the
// fiber's goroutine early without returning normally from its entry.
type completionSignal struct{ result any }

func (f *Fiber) run() {
	arg := <-f.resumeCh
	register(f)
	var out Outcome
	func() {
		defer unregister()
		defer func() {
			if r := recover(); r != nil {
				if cs, ok := r.(completionSignal); ok {
					out = Outcome{Result: cs.result}
					return
				}
				out = Outcome{Panicked: true, PanicInfo: r}
			}
		}()
		result, err := f.Task.Entry(arg)
		out = Outcome{Result: result, Err: err}
	}()
	f.yieldCh <- out
}

var (
	regMu sync.Mutex
	reg   = make(map[int64]*Fiber)
)

func register(f *Fiber) {
	regMu.Lock()
	reg[goroutineid.Get()] = f
	regMu.Unlock()
}

func unregister() {
	regMu.Lock()
	delete(reg, goroutineid.Get())
	regMu.Unlock()
}

func current() *Fiber {
	regMu.Lock()
	defer regMu.Unlock()
	return reg[goroutineid.Get()]
}

// CurrentTask returns the task.Task backing the fiber the calling
// goroutine is running as, or nil if the calling goroutine is not
// running as any fiber.
func CurrentTask() *task.Task {
	if f := current(); f != nil {
		return f.Task
	}
	return nil
}

// InFiberContext reports whether the calling goroutine is executing
// inside a fiber's entry function.
func InFiberContext() bool {
	return current() != nil
}

// mustCurrent panics if called outside a fiber context: yielding with no
// fiber to yield from is a programming error in the caller, not a
// recoverable runtime condition.
func mustCurrent() *Fiber {
	f := current()
	if f == nil {
		panic(fmt.Sprintf("fiber: called outside fiber context from goroutine %d", goroutineid.Get()))
	}
	return f
}

// Yield cooperatively suspends the calling fiber at a voluntary
// preemption point, with no blocking reason — the worker is free to
// reschedule it again immediately. It returns whatever value the next
// Resume call supplies.
func Yield() any {
	f := mustCurrent()
	f.yieldCh <- Outcome{Blocked: true}
	return <-f.resumeCh
}

// YieldBlocked suspends the calling fiber pending an external event
// (e.g. a nursery awaitAll or channel operation), recorded as reason for
// diagnostics. It returns whatever value the eventual wake-up Resume
// call supplies.
func YieldBlocked(reason any) any {
	f := mustCurrent()
	f.yieldCh <- Outcome{Blocked: true, Reason: reason}
	return <-f.resumeCh
}

// YieldComplete ends the calling fiber immediately with the given
// success result, skipping the remainder of its entry function. It never
// returns.
func YieldComplete(result any) {
	panic(completionSignal{result: result})
}
