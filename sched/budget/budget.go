// Package budget implements the scheduler's typed-decrement resource
// counter: nurseries and tasks spend from a Budget using named
// operations, never raw arithmetic, so every spend site is self
// -documenting and the cost table lives in exactly one place.
//
// The atomic-CAS, no-mutex counter is grounded on
// joeycumines/go-utilpkg/eventloop's FastState: a single atomic word,
// pure CompareAndSwap transitions, no validation on the hot path.
package budget

import "sync/atomic"

// Op identifies a typed cost-table slot a Budget can be charged against.
type Op uint8

const (
	OpSpawn Op = iota
	OpNodeVisit
	OpSymbolLookup
	OpTypeInference
	OpDispatchResolution
	OpEffectAnalysis
	OpIRGeneration
	OpRecursiveCall
	OpCacheMiss
)

func (o Op) String() string {
	switch o {
	case OpSpawn:
		return "spawn"
	case OpNodeVisit:
		return "node-visit"
	case OpSymbolLookup:
		return "symbol-lookup"
	case OpTypeInference:
		return "type-inference"
	case OpDispatchResolution:
		return "dispatch-resolution"
	case OpEffectAnalysis:
		return "effect-analysis"
	case OpIRGeneration:
		return "ir-generation"
	case OpRecursiveCall:
		return "recursive-call"
	case OpCacheMiss:
		return "cache-miss"
	default:
		return "unknown-op"
	}
}

// costTable is the static, typed cost of each Op, shared by every Budget.
var costTable = map[Op]int64{
	OpSpawn:              1,
	OpNodeVisit:          1,
	OpSymbolLookup:       10,
	OpTypeInference:      50,
	OpDispatchResolution: 100,
	OpEffectAnalysis:     200,
	OpIRGeneration:       500,
	OpRecursiveCall:      25,
	OpCacheMiss:          5,
}

// Budget is an opaque counter with typed decrement operations. It never
// goes negative: a Charge that would cross zero fails and leaves the
// counter unchanged.
type Budget struct {
	remaining atomic.Int64
}

// New constructs a Budget with the given starting balance.
func New(initial int64) *Budget {
	b := &Budget{}
	b.remaining.Store(initial)
	return b
}

// ServiceDefault is the starting budget for a nursery backing an
// interactive service request.
const ServiceDefault = 1_000_000

// ChildDefault is the starting budget for one spawned task.
const ChildDefault = 100_000

// Zero is an exhausted budget, useful for tests that must observe
// exhaustion behavior without spending real operations first.
const Zero = 0

// Charge attempts to spend op's cost. It succeeds by atomically
// decrementing remaining and returning true, or fails by leaving
// remaining unchanged and returning false, via a CAS retry loop so
// concurrent charges never both succeed against a balance that can only
// cover one of them.
func (b *Budget) Charge(op Op) bool {
	cost := costTable[op]
	for {
		cur := b.remaining.Load()
		if cur < cost {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-cost) {
			return true
		}
	}
}

// Remaining returns the current balance.
func (b *Budget) Remaining() int64 {
	return b.remaining.Load()
}

// Exhausted reports whether the balance is too low to charge the
// cheapest operation (a single node-visit).
func (b *Budget) Exhausted() bool {
	return b.remaining.Load() < costTable[OpNodeVisit]
}
