// Package worker implements the per-OS-thread loop that drives task
// execution: pop from the local deque, else steal from a peer, else park
// briefly, repeat until shutdown.
package worker

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janus-lang/janus-sub015/internal/rtlog"
	"github.com/janus-lang/janus-sub015/sched"
	"github.com/janus-lang/janus-sub015/sched/deque"
	"github.com/janus-lang/janus-sub015/sched/fiber"
	"github.com/janus-lang/janus-sub015/sched/task"
)

// ParkInterval is how long an idle worker sleeps between ready-queue
// scans when it finds no work to steal either.
const ParkInterval = time.Millisecond

// Worker drives one OS thread (in practice, one long-lived goroutine
// parked on its own deque) through the run/steal/park loop.
type Worker struct {
	id    int
	pool  *Pool
	deque *deque.Deque

	stealOrder []int // peer indices in this worker's fixed, seeded steal order
	stealPos   int
}

// Pool owns every Worker, the cross-worker fiber registry (a task's
// backing Fiber can be resumed by whichever worker next pops or steals
// it), and the shutdown flag every worker loop polls.
type Pool struct {
	workers []*Worker

	started  atomic.Bool
	shutdown atomic.Bool
	wg       sync.WaitGroup

	mu         sync.Mutex
	fibers     map[uint64]*fiber.Fiber
	wakeValues map[uint64]any

	onTerminal func(t *task.Task)

	submitCursor atomic.Uint64
}

// NewPool constructs a Pool of workerCount workers (workerCount <= 0 is
// treated as 1; this package does no host detection, so choosing
// GOMAXPROCS is left to the caller), each with a deque of dequeCapacity,
// and a fixed, seed-derived steal order per worker so steal victim selection is round-robin but
// reproducible across runs given the same seed.
func NewPool(workerCount, dequeCapacity int, seed int64) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	p := &Pool{
		fibers:     make(map[uint64]*fiber.Fiber),
		wakeValues: make(map[uint64]any),
	}
	p.workers = make([]*Worker, workerCount)
	for i := range p.workers {
		p.workers[i] = &Worker{id: i, pool: p, deque: deque.New(dequeCapacity)}
	}
	rng := rand.New(rand.NewSource(seed))
	for _, w := range p.workers {
		order := make([]int, 0, workerCount-1)
		for i := 0; i < workerCount; i++ {
			if i != w.id {
				order = append(order, i)
			}
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		w.stealOrder = order
	}
	return p
}

// SetNotifier installs the callback invoked whenever a task reaches a
// terminal state. The scheduler package wires this to a nursery's
// notifyChildComplete, kept out of this package to avoid an import
// cycle (nursery depends on worker, not the reverse).
func (p *Pool) SetNotifier(fn func(t *task.Task)) {
	p.mu.Lock()
	p.onTerminal = fn
	p.mu.Unlock()
}

// Start launches one goroutine per worker running its loop. It fails
// with sched.ErrAlreadyStarted if called again without an intervening
// Stop.
func (p *Pool) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return sched.ErrAlreadyStarted
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.loop()
		}(w)
	}
	return nil
}

// Stop signals every worker to exit its loop once it next checks the
// shutdown flag, and blocks until all worker goroutines have returned.
// Afterward the Pool may be started again.
func (p *Pool) Stop() {
	p.shutdown.Store(true)
	p.wg.Wait()
	p.shutdown.Store(false)
	p.started.Store(false)
}

// Submit pushes t onto one worker's deque, chosen round-robin, and
// reports whether that deque accepted it (false only if that worker's
// deque was full).
func (p *Pool) Submit(t *task.Task) bool {
	idx := int(p.submitCursor.Add(1)-1) % len(p.workers)
	return p.workers[idx].deque.PushBottom(t)
}

// WakeBlocked marks a Blocked task Ready again with the given wake-up
// value, and resubmits it to the pool so some worker's loop picks it up
// and resumes its (already-started) fiber. It reports false if t was not
// in the Blocked state.
func (p *Pool) WakeBlocked(t *task.Task, value any) bool {
	if !t.TryTransition(task.Blocked, task.Ready) {
		return false
	}
	p.mu.Lock()
	p.wakeValues[t.ID] = value
	p.mu.Unlock()
	return p.Submit(t)
}

func (p *Pool) getOrCreateFiber(t *task.Task) (f *fiber.Fiber, resumeArg any, fresh bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.fibers[t.ID]; ok {
		arg := p.wakeValues[t.ID]
		delete(p.wakeValues, t.ID)
		return existing, arg, false
	}
	f = fiber.New(t)
	p.fibers[t.ID] = f
	return f, t.Arg, true
}

func (p *Pool) deleteFiber(id uint64) {
	p.mu.Lock()
	delete(p.fibers, id)
	delete(p.wakeValues, id)
	p.mu.Unlock()
}

func (p *Pool) notifyTerminal(t *task.Task) {
	p.mu.Lock()
	fn := p.onTerminal
	p.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (w *Worker) loop() {
	for !w.pool.shutdown.Load() {
		t, ok := w.deque.PopBottom()
		if !ok {
			t, ok = w.steal()
		}
		if !ok {
			time.Sleep(ParkInterval)
			continue
		}
		w.runOne(t)
	}
}

// steal tries every peer in this worker's fixed seeded order, returning
// the first successfully stolen task.
func (w *Worker) steal() (*task.Task, bool) {
	n := len(w.stealOrder)
	for i := 0; i < n; i++ {
		peerIdx := w.stealOrder[w.stealPos]
		w.stealPos = (w.stealPos + 1) % n
		if t, ok := w.pool.workers[peerIdx].deque.StealTop(); ok {
			return t, true
		}
	}
	return nil, false
}

func (w *Worker) runOne(t *task.Task) {
	if !t.TryTransition(task.Ready, task.Running) {
		return
	}

	f, resumeArg, _ := w.pool.getOrCreateFiber(t)
	outcome := f.Resume(resumeArg)

	if outcome.Terminal() {
		w.pool.deleteFiber(t.ID)
		switch {
		case outcome.Panicked:
			t.Panic(outcome.PanicInfo)
			rtlog.Err(fmt.Errorf("task panic: %v", outcome.PanicInfo)).Uint64("task_id", t.ID).Log("worker caught task panic")
		case outcome.Err != nil:
			t.Fail(outcome.Err)
		default:
			t.Complete(outcome.Result)
		}
		w.pool.notifyTerminal(t)
		return
	}

	t.TryTransition(task.Running, task.Blocked)
}
