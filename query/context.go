package query

import (
	"github.com/janus-lang/janus-sub015/codec"
	"github.com/janus-lang/janus-sub015/id"
	"github.com/janus-lang/janus-sub015/internal/rtlog"
	"github.com/janus-lang/janus-sub015/quota"
)

// Body is the caller-supplied implementation of one query kind: given its
// canonical arguments and a Context for issuing sub-queries and charging
// gas, it computes and returns a Result. A Body must never read or write
// the memo cache, dependency graph, or cycle detector directly — every
// interaction with those collaborators is mediated by Context, so the
// executor can observe every dependency a body creates.
type Body func(ctx *Context, args []id.Arg) (codec.Result, error)

// Context is the capability handle passed to a running query body. It is
// valid only for the duration of that one Body call; a Body must not
// retain it past return.
type Context struct {
	exec    *Executor
	gas     *quota.Gas
	owner   string
	memoKey id.MemoKey
}

// Gas returns the resource accountant for the currently executing query,
// so a body can charge for the work it performs (e.g. quota.OpNodeVisit
// per AST node visited).
func (c *Context) Gas() *quota.Gas { return c.gas }

// RecordCID records that the currently executing query observed c — for
// example, reading an AST node or a source file identified by c. Recorded
// CIDs become edges in the dependency graph, so invalidating c will
// invalidate this query's cached result.
func (c *Context) RecordCID(cid id.CID) {
	c.exec.tracker.RecordCID(cid)
}

// Query executes a sub-query of kind with args, sharing this Context's gas
// budget (a sub-query spends from the same ceiling as its caller, so a
// deeply recursive query cannot evade its own quota by delegating work).
// On success, the sub-query's memo key is recorded as a dependency of the
// currently executing query, both in the dependency graph (via the
// executor's own bookkeeping) and in the cycle detector's direct-edge set.
func (c *Context) Query(kind id.Kind, args []id.Arg) (codec.Result, error) {
	if err := c.gas.EnterRecursion(); err != nil {
		c.exec.Counters.IncQuotaExceeded()
		if diagLimiter.Allow("quota-exceeded") {
			rtlog.Warn().Str("memo_key", c.memoKey.String()).Str("kind", kind.String()).Err(err).Log("quota exceeded on sub-query recursion")
		}
		return codec.Result{}, err
	}
	defer c.gas.ExitRecursion()

	res, _, _, childKey, err := c.exec.execute(kind, args, c.gas, c.owner)
	if err != nil {
		return codec.Result{}, err
	}

	// Best-effort transitive-cycle bookkeeping: by the time the child has
	// returned it is no longer active in the detector, so this can only
	// ever fail on immediate self-recursion (childKey == c.memoKey), which
	// StartQuery inside execute already refused. Kept for the direct-edge
	// diagnostic record AddDependency maintains.
	_ = c.exec.cycles.AddDependency(c.memoKey, childKey)

	c.exec.tracker.RecordQuery(childKey)
	return res, nil
}
