// Package query implements the demand-driven, memoized query executor:
// the component that ties id, codec, memo, depgraph, cycle, quota, and
// telemetry together into the single execute() entry point every query
// kind is run through.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/joeycumines/goroutineid"

	"github.com/janus-lang/janus-sub015/codec"
	"github.com/janus-lang/janus-sub015/cycle"
	"github.com/janus-lang/janus-sub015/depgraph"
	"github.com/janus-lang/janus-sub015/id"
	"github.com/janus-lang/janus-sub015/internal/rtlog"
	"github.com/janus-lang/janus-sub015/memo"
	"github.com/janus-lang/janus-sub015/quota"
	"github.com/janus-lang/janus-sub015/telemetry"
)

// diagLimiter rate-limits the logging (never the counting) of noisy
// per-query diagnostic events, so a pathological body spinning on the
// same rejection cannot flood the log sink.
var diagLimiter = telemetry.NewDiagnosticLimiter(time.Second)

// Executor runs query bodies against a shared cache, dependency graph,
// cycle detector, and telemetry sink. One Executor instance is shared by
// every worker in the engine; all of its collaborators are already safe
// for concurrent use from many goroutines.
type Executor struct {
	Cache    *memo.Cache
	Graph    *depgraph.Graph
	Counters *telemetry.Counters

	tracker *depgraph.Tracker
	cycles  *cycle.Detector
	bodies  map[id.Kind]Body

	recorders map[id.Kind]*telemetry.Recorder
}

// NewExecutor constructs an Executor with fresh cache, graph, tracker,
// cycle detector, and counters, and the given query-kind -> Body table.
// bodies must have an entry for every id.Kind the caller intends to run;
// looking up a kind with no registered Body fails with ErrNotImplemented.
func NewExecutor(bodies map[id.Kind]Body) *Executor {
	recorders := make(map[id.Kind]*telemetry.Recorder, len(bodies))
	for k := range bodies {
		recorders[k] = telemetry.NewRecorder()
	}
	return &Executor{
		Cache:     memo.New(),
		Graph:     depgraph.New(),
		Counters:  new(telemetry.Counters),
		tracker:   depgraph.NewTracker(),
		cycles:    cycle.New(),
		bodies:    bodies,
		recorders: recorders,
	}
}

// Recorder returns the latency recorder for kind, creating one on first
// use so ad-hoc query kinds registered after construction still get a
// telemetry stream.
func (e *Executor) Recorder(kind id.Kind) *telemetry.Recorder {
	if r, ok := e.recorders[kind]; ok {
		return r
	}
	r := telemetry.NewRecorder()
	e.recorders[kind] = r
	return r
}

// Execute runs a top-level query of kind with args against limits,
// returning its result. It is the entry point a worker calls for a fresh
// top-level request; sub-queries issued from within a running body go
// through Context.Query instead, which shares the parent's gas budget
// rather than starting a fresh one.
func (e *Executor) Execute(kind id.Kind, args []id.Arg, limits quota.Limits) (codec.Result, error) {
	gas := quota.New(limits)
	owner := strconv.FormatInt(goroutineid.Get(), 10)
	result, _, _, _, err := e.execute(kind, args, gas, owner)
	return result, err
}

// execute implements the ordered algorithm shared by every query
// invocation, top-level or nested:
//
//  1. canonicalize args into their bit-exact encoding;
//  2. compute the memo key from (kind, canonical args);
//  3. on a cache hit, record a cache-hit sample and return immediately;
//  4. otherwise enter the cycle detector, start dependency tracking,
//     run the body, stop tracking, cache the result, record the
//     dependency edges, and leave the cycle detector;
//  5. record a cache-miss sample and return.
func (e *Executor) execute(kind id.Kind, args []id.Arg, gas *quota.Gas, owner string) (result codec.Result, deps depgraph.DependencySet, fromCache bool, key id.MemoKey, err error) {
	start := time.Now()

	canonical, err := codec.EncodeArgs(args)
	if err != nil {
		return codec.Result{}, depgraph.DependencySet{}, false, id.MemoKey{}, err
	}
	key = id.ComputeMemoKey(kind, canonical)

	if entry, ok := e.Cache.Get(key); ok {
		result, ok = entry.Result.(codec.Result)
		if !ok {
			return codec.Result{}, depgraph.DependencySet{}, false, key, fmt.Errorf("%w: cached entry for %s is not a codec.Result", ErrTypeMismatch, key)
		}
		e.Counters.IncCacheHits()
		e.Counters.IncQueries()
		e.Recorder(kind).Record(telemetry.Sample{
			ExecutionTime: time.Since(start),
			NodesVisited:  gas.UsedNodes(),
			CacheHit:      true,
			Timestamp:     start,
		})
		return result, entry.Dependencies, true, key, nil
	}

	if err := e.cycles.StartQuery(key, owner); err != nil {
		e.Counters.IncCyclesDetected()
		if diagLimiter.Allow("cycle-detected") {
			rtlog.Warn().Str("memo_key", key.String()).Str("kind", kind.String()).Log("cycle detected")
		}
		return codec.Result{}, depgraph.DependencySet{}, false, key, err
	}

	body, ok := e.bodies[kind]
	if !ok {
		e.cycles.EndQuery(key)
		return codec.Result{}, depgraph.DependencySet{}, false, key, fmt.Errorf("%w: no body registered for %s", ErrNotImplemented, kind)
	}

	e.tracker.StartTracking()
	ctx := &Context{exec: e, gas: gas, owner: owner, memoKey: key}
	result, bodyErr := body(ctx, args)
	observed := *e.tracker.StopTracking()

	if bodyErr != nil {
		e.cycles.EndQuery(key)
		if errors.Is(bodyErr, quota.ErrQuotaExceeded) {
			e.Counters.IncQuotaExceeded()
			if diagLimiter.Allow("quota-exceeded") {
				rtlog.Warn().Str("memo_key", key.String()).Str("kind", kind.String()).Err(bodyErr).Log("quota exceeded during query body execution")
			}
		}
		return codec.Result{}, depgraph.DependencySet{}, false, key, bodyErr
	}

	e.Cache.Put(key, result, observed)
	e.Graph.RecordDependencies(key, observed)
	e.cycles.EndQuery(key)

	e.Counters.IncQueries()
	e.Recorder(kind).Record(telemetry.Sample{
		ExecutionTime: time.Since(start),
		NodesVisited:  gas.UsedNodes(),
		CacheHit:      false,
		Timestamp:     start,
	})

	return result, observed, false, key, nil
}
