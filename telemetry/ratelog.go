package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticLimiter rate-limits the *logging* of noisy diagnostic events
// (quota-exceeded, cycle-detected) per category, so a pathological query
// body spinning on the same rejection cannot flood the log sink. The
// underlying counters (Counters) are never rate-limited or dropped —
// only whether a given occurrence is also worth a log line is throttled.
//
// Grounded on joeycumines/go-utilpkg/catrate's per-category Limiter: a
// sync.Map of independently-locked per-category windows, keyed by an
// arbitrary category value, each tracking only the last-allowed instant.
// catrate supports several simultaneous sliding-window rates per
// category; a diagnostics throttle only ever needs one minimum-interval
// gate per category, so that part of catrate's design is not carried
// over.
type DiagnosticLimiter struct {
	minInterval time.Duration
	categories  sync.Map // category (string) -> *int64 (last-allowed UnixNano)
}

// NewDiagnosticLimiter constructs a limiter that allows at most one log
// line per category every minInterval.
func NewDiagnosticLimiter(minInterval time.Duration) *DiagnosticLimiter {
	return &DiagnosticLimiter{minInterval: minInterval}
}

// Allow reports whether a log line for category should be emitted now,
// and if so, marks the category as having just fired.
func (d *DiagnosticLimiter) Allow(category string) bool {
	now := time.Now().UnixNano()

	v, loaded := d.categories.Load(category)
	if !loaded {
		last := new(int64)
		*last = now
		actual, loaded := d.categories.LoadOrStore(category, last)
		if !loaded {
			return true
		}
		v = actual
	}

	lastPtr := v.(*int64)
	for {
		last := atomic.LoadInt64(lastPtr)
		if now-last < int64(d.minInterval) {
			return false
		}
		if atomic.CompareAndSwapInt64(lastPtr, last, now) {
			return true
		}
	}
}
