package invalidate

import (
	"context"
	"time"

	microbatch "github.com/joeycumines/go-microbatch"
)

// Coalescer batches change-sets arriving in rapid succession (e.g. one
// per editor keystroke) into a single BFS/DFS invalidation pass, using
// joeycumines/go-microbatch's generic ping/pong Batcher: callers submit
// independently, the actual Invalidate walk only runs once per flush, and
// every caller in a flush gets back that flush's single shared report.
// A change-set whose severity would not invalidate on its own (cosmetic,
// or below the engine's MinSeverity) contributes no CIDs to the merge.
//
// This is purely additive sugar around Engine.Invalidate: it never
// changes Invalidate's single-call semantics or guarantees, it just
// amortizes the BFS walk's fixed overhead across several nearly-
// simultaneous change-sets.
type Coalescer struct {
	engine  *Engine
	batcher *microbatch.Batcher[*coalesceJob]
}

type coalesceJob struct {
	cs     ChangeSet
	report Report
	err    error
}

// NewCoalescer wraps engine with a batching front-end. maxBatch bounds how
// many change-sets may be merged into one flush; flushInterval bounds how
// long a partial batch waits before it flushes anyway.
func NewCoalescer(engine *Engine, maxBatch int, flushInterval time.Duration) *Coalescer {
	c := &Coalescer{engine: engine}
	c.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:        maxBatch,
		FlushInterval:  flushInterval,
		MaxConcurrency: 1,
	}, c.process)
	return c
}

func (c *Coalescer) process(ctx context.Context, jobs []*coalesceJob) error {
	merged := ChangeSet{}
	for _, j := range jobs {
		if j.cs.Severity <= SeverityCosmetic || j.cs.Severity < c.engine.MinSeverity {
			continue
		}
		merged.Modified = append(merged.Modified, j.cs.Modified...)
		merged.Removed = append(merged.Removed, j.cs.Removed...)
		if j.cs.Severity > merged.Severity {
			merged.Severity = j.cs.Severity
		}
	}

	report := c.engine.Invalidate(merged)

	for _, j := range jobs {
		j.report = report
	}
	return nil
}

// Submit enqueues cs for the next flush and blocks until its batch has
// been invalidated, returning the (shared) report for that flush.
func (c *Coalescer) Submit(ctx context.Context, cs ChangeSet) (Report, error) {
	job := &coalesceJob{cs: cs}
	result, err := c.batcher.Submit(ctx, job)
	if err != nil {
		return Report{}, err
	}
	if err := result.Wait(ctx); err != nil {
		return Report{}, err
	}
	return result.Job.report, result.Job.err
}

// Close flushes and stops the Coalescer. No further Submit calls may
// succeed afterward.
func (c *Coalescer) Close() error {
	return c.batcher.Close()
}
