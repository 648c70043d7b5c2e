package runtime

import (
	"errors"
	"sync"

	"github.com/joeycumines/goroutineid"

	"github.com/janus-lang/janus-sub015/sched/budget"
	"github.com/janus-lang/janus-sub015/sched/nursery"
)

// ErrNoCurrentNursery is returned by a shim call that needs an ambient
// nursery but finds none pushed for the calling goroutine.
var ErrNoCurrentNursery = errors.New("runtime: no current nursery for this goroutine")

// shimStacks is the thread-local (goroutine-local, via goroutineid) stack
// of nursery handles the C-ABI shim layer threads implicitly, so legacy
// callers that cannot pass an explicit nursery handle through every call
// still have somewhere to spawn into. This is a gasket confined to this
// file: no scheduler-internal code path consults it, and the native
// Go API (Runtime.CreateNursery, Nursery.Spawn) never requires it.
var (
	shimMu     sync.Mutex
	shimStacks = make(map[int64][]*nursery.Nursery)
)

func shimKey() int64 { return goroutineid.Get() }

// ShimPushNursery pushes n as the calling goroutine's current nursery for
// the duration of a C-ABI call span. Paired with ShimPopNursery.
func ShimPushNursery(n *nursery.Nursery) {
	k := shimKey()
	shimMu.Lock()
	shimStacks[k] = append(shimStacks[k], n)
	shimMu.Unlock()
}

// ShimPopNursery pops the calling goroutine's current nursery, restoring
// whatever was pushed before it (or none). It is a no-op if the stack is
// already empty.
func ShimPopNursery() {
	k := shimKey()
	shimMu.Lock()
	defer shimMu.Unlock()
	stack := shimStacks[k]
	if len(stack) == 0 {
		return
	}
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(shimStacks, k)
	} else {
		shimStacks[k] = stack
	}
}

// shimCurrentNursery returns the calling goroutine's top-of-stack
// nursery, if any.
func shimCurrentNursery() (*nursery.Nursery, bool) {
	k := shimKey()
	shimMu.Lock()
	defer shimMu.Unlock()
	stack := shimStacks[k]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

// ShimSpawn is the C-ABI entry point for spawning a task without an
// explicit nursery handle: it spawns into whatever nursery the calling
// goroutine last pushed via ShimPushNursery. It returns
// ErrNoCurrentNursery if the goroutine has none pushed, and otherwise
// whatever error the native Nursery.Spawn itself returns
// (sched.ErrSpawnRejected, sched.ErrSubmissionFailed).
func ShimSpawn(entry func(arg any) (any, error), arg any) (uint64, error) {
	n, ok := shimCurrentNursery()
	if !ok {
		return 0, ErrNoCurrentNursery
	}
	t, err := n.Spawn(entry, arg)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

// ShimCreateNursery pushes and returns a new nursery under rt bound to
// the given budget, for a legacy caller about to make a span of
// ShimSpawn calls. The caller must pair this with ShimPopNursery.
func (rt *Runtime) ShimCreateNursery(b *budget.Budget) *nursery.Nursery {
	n := rt.CreateNursery(b)
	ShimPushNursery(n)
	return n
}
