// Package runtime implements the Runtime Root: the single process-wide
// handle that owns exactly one scheduler, created once by an explicit
// Init call and destroyed by an explicit Stop. Every other subsystem
// receives the scheduler via an explicit parameter (the nursery
// package's submit function, the worker pool passed into
// nursery.New) rather than by ambient lookup.
package runtime

import (
	"errors"
	goruntime "runtime"
	"sync"

	_ "github.com/KimMachineGun/automemlimit" // sets GOMEMLIMIT from the cgroup/container limit on import
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/janus-lang/janus-sub015/sched/budget"
	"github.com/janus-lang/janus-sub015/sched/nursery"
	"github.com/janus-lang/janus-sub015/sched/task"
	"github.com/janus-lang/janus-sub015/sched/worker"
)

// ErrAlreadyInitialized is returned by Init when a Runtime is already
// live and has not been Stopped.
var ErrAlreadyInitialized = errors.New("runtime: already initialized; call Stop before re-initializing")

// Config configures a Runtime at Init time.
type Config struct {
	// WorkerCount is the number of worker goroutines to run, one per
	// logical OS-thread slot. 0 selects GOMAXPROCS.
	WorkerCount int
	// DequeCapacity is each worker's local ready-queue capacity. 0
	// selects deque.DefaultCapacity.
	DequeCapacity int
	// Seed drives the deterministic, reproducible steal order every
	// worker computes at construction.
	Seed int64
}

// Runtime is the process-wide scheduler handle.
type Runtime struct {
	pool *worker.Pool

	mu        sync.Mutex
	nurseries map[uint64]*nursery.Nursery
}

var (
	rootMu sync.Mutex
	root   *Runtime
)

// Init creates a new Runtime and its scheduler. It fails with
// ErrAlreadyInitialized if a Runtime is already live; call Stop first.
func Init(cfg Config) (*Runtime, error) {
	rootMu.Lock()
	defer rootMu.Unlock()

	if root != nil {
		return nil, ErrAlreadyInitialized
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		// container-aware: reconciles GOMAXPROCS with the cgroup CPU quota
		// before falling back to the host's logical CPU count.
		_, _ = maxprocs.Set()
		workerCount = goruntime.GOMAXPROCS(0)
	}

	rt := &Runtime{
		pool:      worker.NewPool(workerCount, cfg.DequeCapacity, cfg.Seed),
		nurseries: make(map[uint64]*nursery.Nursery),
	}
	rt.pool.SetNotifier(rt.dispatch)

	root = rt
	return rt, nil
}

func (rt *Runtime) dispatch(t *task.Task) {
	rt.mu.Lock()
	n, ok := rt.nurseries[t.NurseryID]
	rt.mu.Unlock()
	if ok {
		n.NotifyChildComplete(t)
	}
}

// Start spawns the runtime's worker goroutines. It fails with
// sched.ErrAlreadyStarted if called again without an intervening Stop.
func (rt *Runtime) Start() error {
	return rt.pool.Start()
}

// Stop signals shutdown, joins every worker goroutine, and releases the
// process-wide handle so a later Init call succeeds again.
func (rt *Runtime) Stop() {
	rt.pool.Stop()
	rootMu.Lock()
	if root == rt {
		root = nil
	}
	rootMu.Unlock()
}

// Shutdown cancels every nursery still live on this runtime and waits for
// all of them to drain concurrently (one goroutine per nursery, fanned
// out with golang.org/x/sync/errgroup so the slowest nursery's teardown
// doesn't serialize behind the others), then stops the scheduler. It
// returns the first child error observed across every nursery, if any.
func (rt *Runtime) Shutdown() error {
	rt.mu.Lock()
	live := make([]*nursery.Nursery, 0, len(rt.nurseries))
	for _, n := range rt.nurseries {
		live = append(live, n)
	}
	rt.mu.Unlock()

	var g errgroup.Group
	for _, n := range live {
		n := n
		g.Go(func() error {
			n.Cancel()
			res := n.AwaitAll()
			return res.Err
		})
	}
	err := g.Wait()

	rt.Stop()
	return err
}

// CreateNursery returns a nursery bound to this runtime's scheduler and
// an explicit submit function, tracked so the runtime can route child
// task completions back to it.
func (rt *Runtime) CreateNursery(b *budget.Budget) *nursery.Nursery {
	n := nursery.New(rt.pool, rt.pool.Submit, b, 0)
	rt.mu.Lock()
	rt.nurseries[n.ID] = n
	rt.mu.Unlock()
	return n
}

// CreateChildNursery returns a nursery whose ParentID is set to parent's
// id, for a task that wants to structure its own further concurrency
// underneath an already-running nursery.
func (rt *Runtime) CreateChildNursery(parent *nursery.Nursery, b *budget.Budget) *nursery.Nursery {
	n := nursery.New(rt.pool, rt.pool.Submit, b, parent.ID)
	rt.mu.Lock()
	rt.nurseries[n.ID] = n
	rt.mu.Unlock()
	return n
}
