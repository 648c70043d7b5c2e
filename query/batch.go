package query

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/janus-lang/janus-sub015/codec"
	"github.com/janus-lang/janus-sub015/id"
	"github.com/janus-lang/janus-sub015/quota"
)

// BatchRequest is one query to run as part of a RunBatch call.
type BatchRequest struct {
	Kind   id.Kind
	Args   []id.Arg
	Limits quota.Limits
}

// BatchResult pairs a BatchRequest's outcome with its index in the
// original slice, so a caller can correlate results back to requests
// after they complete out of order.
type BatchResult struct {
	Index  int
	Result codec.Result
	Err    error
}

// RunBatch executes every request concurrently, bounded to at most
// maxConcurrency simultaneous in-flight queries, and returns one
// BatchResult per request in the same order as reqs.
//
// Bounding concurrency with a weighted semaphore rather than an unbounded
// goroutine-per-request fan-out is grounded on
// bufbuild/protocompile's incremental.Run, which runs independent
// incremental computations under the same kind of caller-supplied
// concurrency cap rather than letting a large batch starve the host.
func (e *Executor) RunBatch(ctx context.Context, reqs []BatchRequest, maxConcurrency int64) ([]BatchResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	sem := semaphore.NewWeighted(maxConcurrency)
	results := make([]BatchResult, len(reqs))

	for i, req := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// context cancelled/expired: fill remaining slots with the
			// same error rather than silently leaving them zero-valued.
			for j := i; j < len(reqs); j++ {
				results[j] = BatchResult{Index: j, Err: err}
			}
			return results, err
		}
		go func(i int, req BatchRequest) {
			defer sem.Release(1)
			result, err := e.Execute(req.Kind, req.Args, req.Limits)
			results[i] = BatchResult{Index: i, Result: result, Err: err}
		}(i, req)
	}

	// Wait for every in-flight goroutine to release its slot, i.e. for
	// the full semaphore capacity to become acquirable again.
	if err := sem.Acquire(ctx, maxConcurrency); err != nil {
		return results, err
	}
	sem.Release(maxConcurrency)

	return results, nil
}
