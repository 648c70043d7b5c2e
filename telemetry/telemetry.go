// Package telemetry tracks per-query execution samples and global
// engine-wide counters, and exposes on-demand percentile computation.
//
// The streaming percentile estimator is grounded on
// joeycumines/go-utilpkg/eventloop's psquare.go P² implementation
// (Jain & Chlamtac, 1985): O(1) per-observation updates and O(1)
// quantile retrieval, so recording a sample never becomes the hot-path
// bottleneck it would be if every Report() call had to sort the whole
// buffer.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sample is one per-query execution record.
type Sample struct {
	ExecutionTime time.Duration
	MemoryUsed    int64
	NodesVisited  int64
	CacheHit      bool
	Timestamp     time.Time
}

// Report is the on-demand, computed summary of the samples recorded so
// far for one query kind (or for the engine as a whole).
type Report struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// ringSize bounds how many of the most recent raw execution times the
// ring keeps. Report does not read the ring: min/max/mean come from
// running totals over every sample, and percentiles from the P²
// estimators, which need no growing backing buffer at all.
const ringSize = 1000

// Recorder accumulates samples for one query kind (or any other single
// logical stream of latencies an embedder wants percentiles for).
type Recorder struct {
	mu sync.RWMutex

	psquare *pSquareMultiQuantile

	ring      [ringSize]time.Duration
	ringIdx   int
	ringCount int

	sum   time.Duration
	min   time.Duration
	max   time.Duration
	count int
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record adds one execution sample.
func (r *Recorder) Record(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.psquare == nil {
		r.psquare = newPSquareMultiQuantile(0.50, 0.95, 0.99)
	}
	d := s.ExecutionTime
	r.psquare.Update(float64(d))

	r.ring[r.ringIdx] = d
	r.ringIdx = (r.ringIdx + 1) % ringSize
	if r.ringCount < ringSize {
		r.ringCount++
	}

	r.sum += d
	if r.count == 0 || d < r.min {
		r.min = d
	}
	if d > r.max {
		r.max = d
	}
	r.count++
}

// Report computes the current min/max/mean/p50/p95/p99 summary.
func (r *Recorder) Report() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return Report{}
	}
	rep := Report{
		Count: r.count,
		Min:   r.min,
		Max:   r.max,
		Mean:  r.sum / time.Duration(r.count),
	}
	if r.psquare != nil {
		rep.P50 = time.Duration(r.psquare.Quantile(0))
		rep.P95 = time.Duration(r.psquare.Quantile(1))
		rep.P99 = time.Duration(r.psquare.Quantile(2))
	}
	return rep
}

// Counters are global, engine-wide atomic counters: total queries run,
// cache hits, and quota-exceeded events. They are safe for concurrent
// use from any worker goroutine without a lock.
type Counters struct {
	totalQueries   atomic.Int64
	cacheHits      atomic.Int64
	quotaExceeded  atomic.Int64
	cyclesDetected atomic.Int64
}

// IncQueries records one completed query execution.
func (c *Counters) IncQueries() { c.totalQueries.Add(1) }

// IncCacheHits records one memo-cache hit.
func (c *Counters) IncCacheHits() { c.cacheHits.Add(1) }

// IncQuotaExceeded records one quota-exceeded rejection.
func (c *Counters) IncQuotaExceeded() { c.quotaExceeded.Add(1) }

// IncCyclesDetected records one cycle-detection rejection.
func (c *Counters) IncCyclesDetected() { c.cyclesDetected.Add(1) }

// CounterSnapshot is a point-in-time read of Counters.
type CounterSnapshot struct {
	TotalQueries   int64
	CacheHits      int64
	QuotaExceeded  int64
	CyclesDetected int64
}

// Snapshot reads all counters without any ordering guarantee between
// them beyond each individual atomic load.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		TotalQueries:   c.totalQueries.Load(),
		CacheHits:      c.cacheHits.Load(),
		QuotaExceeded:  c.quotaExceeded.Load(),
		CyclesDetected: c.cyclesDetected.Load(),
	}
}

// HitRate returns the cache hit rate in [0, 1], or 0 if no queries have
// run yet.
func (s CounterSnapshot) HitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalQueries)
}
