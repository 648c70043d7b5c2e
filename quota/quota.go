// Package quota implements per-query resource accounting: a typed cost
// table, three named profiles, and atomic decrement operations that
// either succeed or report exhaustion and leave state unchanged.
package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/pbnjay/memory"
)

// ErrQuotaExceeded is returned by any Charge* operation that would cross a
// configured limit.
var ErrQuotaExceeded = errors.New("quota: exceeded")

// Op identifies a typed cost-table slot.
type Op uint8

const (
	OpNodeVisit Op = iota
	OpSymbolLookup
	OpTypeInference
	OpDispatchResolution
	OpEffectAnalysis
	OpIRGeneration
	OpRecursiveCall
	OpCacheMiss
)

// gasCost is the static, typed gas cost table.
var gasCost = map[Op]int64{
	OpNodeVisit:          1,
	OpSymbolLookup:       10,
	OpTypeInference:      50,
	OpDispatchResolution: 100,
	OpEffectAnalysis:     200,
	OpIRGeneration:       500,
	OpRecursiveCall:      25,
	OpCacheMiss:          5,
}

func (o Op) gas() int64 { return gasCost[o] }

func (o Op) String() string {
	switch o {
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

// Limits is a static resource ceiling for one query execution.
type Limits struct {
	WallTime    time.Duration
	MemoryBytes int64
	NodeVisits  int64
	MaxDepth    int
	Gas         int64
}

// Profile name constants.
const (
	ProfileInteractive = "interactive"
	ProfileBackground  = "background"
	ProfileBatch       = "batch"
)

const mib = 1 << 20
const gib = 1 << 30

// DefaultProfiles returns the three named profiles (interactive,
// background, batch), each with fixed memory ceilings (10MiB / 100MiB /
// 1GiB). See HostAwareBatchMemoryCeiling for a host-aware variant of the
// batch profile's memory ceiling.
func DefaultProfiles() map[string]Limits {
	return map[string]Limits{
		ProfileInteractive: {
			WallTime:    10 * time.Millisecond,
			MemoryBytes: 10 * mib,
			NodeVisits:  10_000,
			MaxDepth:    100,
			Gas:         1_000_000,
		},
		ProfileBackground: {
			WallTime:    time.Second,
			MemoryBytes: 100 * mib,
			NodeVisits:  1_000_000,
			MaxDepth:    1_000,
			Gas:         100_000_000,
		},
		ProfileBatch: {
			WallTime:    60 * time.Second,
			MemoryBytes: 1 * gib,
			NodeVisits:  10_000_000,
			MaxDepth:    10_000,
			Gas:         1_000_000_000,
		},
	}
}

// HostAwareBatchMemoryCeiling scales the batch profile's memory ceiling to
// a quarter of the host's total physical memory (falling back to the
// fixed 1GiB default when that is larger), using github.com/pbnjay/memory
// to detect the host's total RAM. This lets a batch-mode toolchain driver
// (e.g. a CI build) use more of a large machine without hand-tuning a
// config file, while never exceeding what the host can offer.
func HostAwareBatchMemoryCeiling() int64 {
	total := memory.TotalMemory()
	if total == 0 {
		// detection failed (e.g. sandboxed/unsupported platform); keep the
		// fixed default.
		return 1 * gib
	}
	quarter := int64(total / 4)
	if quarter < 1*gib {
		return 1 * gib
	}
	return quarter
}

// Gas tracks live resource usage for one query execution against a fixed
// Limits ceiling. It is not safe for concurrent use by more than one
// goroutine at a time — a single query execution is (by construction)
// driven by exactly one goroutine, even though many Gas instances are
// live concurrently across the engine.
type Gas struct {
	limits Limits

	usedGas    int64
	usedNodes  int64
	usedMemory int64
	depth      int
	started    time.Time
	nowFn      func() time.Time
}

// New constructs a Gas tracker bound to limits, with its wall-clock timer
// started immediately.
func New(limits Limits) *Gas {
	return &Gas{limits: limits, nowFn: time.Now, started: time.Now()}
}

// Charge attempts to spend one unit of op against the gas budget, plus any
// op-specific node/memory accounting. It fails with ErrQuotaExceeded,
// leaving all counters unchanged, if doing so would cross Limits.Gas,
// Limits.NodeVisits, or Limits.WallTime.
func (g *Gas) Charge(op Op) error {
	cost := op.gas()

	if d := g.nowFn().Sub(g.started); d > g.limits.WallTime {
		return fmt.Errorf("%w: wall time %s exceeds limit %s", ErrQuotaExceeded, d, g.limits.WallTime)
	}
	if g.usedGas+cost > g.limits.Gas {
		return fmt.Errorf("%w: gas %d+%d exceeds limit %d", ErrQuotaExceeded, g.usedGas, cost, g.limits.Gas)
	}
	if op == OpNodeVisit {
		if g.usedNodes+1 > g.limits.NodeVisits {
			return fmt.Errorf("%w: node visits %d exceeds limit %d", ErrQuotaExceeded, g.usedNodes+1, g.limits.NodeVisits)
		}
		g.usedNodes++
	}

	g.usedGas += cost
	return nil
}

// ChargeMemory records additional memory usage in bytes, failing with
// ErrQuotaExceeded (and leaving usage unchanged) if it would cross
// Limits.MemoryBytes.
func (g *Gas) ChargeMemory(bytes int64) error {
	if g.usedMemory+bytes > g.limits.MemoryBytes {
		return fmt.Errorf("%w: memory %d+%d exceeds limit %d", ErrQuotaExceeded, g.usedMemory, bytes, g.limits.MemoryBytes)
	}
	g.usedMemory += bytes
	return nil
}

// EnterRecursion increments the recursion depth counter and charges
// OpRecursiveCall, failing with ErrQuotaExceeded if the new depth would
// exceed Limits.MaxDepth.
//
// NOTE (deliberate, not an oversight): if the subsequent sub-query call
// fails, the caller is expected to invoke ExitRecursion on the unwind
// path exactly like a success; this tracker does not special-case a
// failed sub-query by re-crediting the gas it already spent entering the
// recursive call. Gas already committed to exploring a path stays spent
// regardless of how that path ends.
func (g *Gas) EnterRecursion() error {
	if g.depth+1 > g.limits.MaxDepth {
		return fmt.Errorf("%w: recursion depth %d exceeds limit %d", ErrQuotaExceeded, g.depth+1, g.limits.MaxDepth)
	}
	if err := g.Charge(OpRecursiveCall); err != nil {
		return err
	}
	g.depth++
	return nil
}

// ExitRecursion decrements the recursion depth counter on unwind.
func (g *Gas) ExitRecursion() {
	if g.depth > 0 {
		g.depth--
	}
}

// Depth returns the current recursion depth.
func (g *Gas) Depth() int { return g.depth }

// UsedGas returns the gas spent so far.
func (g *Gas) UsedGas() int64 { return g.usedGas }

// UsedNodes returns the node-visit count so far.
func (g *Gas) UsedNodes() int64 { return g.usedNodes }

// Elapsed returns the wall-clock time spent so far.
func (g *Gas) Elapsed() time.Duration { return g.nowFn().Sub(g.started) }
