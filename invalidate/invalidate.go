// Package invalidate implements the invalidation engine: given a set of
// changed content ids, it walks the dependency graph's reverse indices
// and evicts every memoized result that transitively depended on a
// changed CID.
package invalidate

import (
	"time"

	"github.com/janus-lang/janus-sub015/depgraph"
	"github.com/janus-lang/janus-sub015/id"
	"github.com/janus-lang/janus-sub015/internal/rtlog"
	"github.com/janus-lang/janus-sub015/memo"
)

// Severity classifies how significant a change is. Severity at or below
// Cosmetic must never trigger invalidation — an editor re-formatting
// whitespace, for instance, should not evict type-inference results
// that never looked at whitespace.
type Severity uint8

const (
	SeverityCosmetic Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityBreaking
)

func (s Severity) String() string {
	switch s {
	case SeverityCosmetic:
		return "cosmetic"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityBreaking:
		return "breaking"
	default:
		return "unknown-severity"
	}
}

// ChangeSet is the input to Invalidate: the CIDs that changed, partitioned
// into modified and removed, plus an optional severity label.
type ChangeSet struct {
	Modified []id.CID
	Removed  []id.CID
	Severity Severity
}

// allCIDs returns every CID named by the change-set, modified or removed.
func (c ChangeSet) allCIDs() []id.CID {
	out := make([]id.CID, 0, len(c.Modified)+len(c.Removed))
	out = append(out, c.Modified...)
	out = append(out, c.Removed...)
	return out
}

// Report summarizes the effect of one Invalidate call.
type Report struct {
	ChangedCIDs         int
	QueriesInvalidated  int
	CacheEntriesRemoved int
	Elapsed             time.Duration
}

// Engine ties a dependency Graph to a memo Cache: Invalidate evicts every
// cache entry (and its dependency-graph bookkeeping) that transitively
// observed a changed CID.
//
// MinSeverity is the configurable minimum severity that triggers
// invalidation at all; it defaults to SeverityMinor via New. Regardless
// of MinSeverity, SeverityCosmetic never invalidates — that floor is an
// invariant, not a knob.
type Engine struct {
	Graph       *depgraph.Graph
	Cache       *memo.Cache
	MinSeverity Severity
}

// New constructs an Engine with MinSeverity defaulted to SeverityMinor.
func New(graph *depgraph.Graph, cache *memo.Cache) *Engine {
	return &Engine{
		Graph:       graph,
		Cache:       cache,
		MinSeverity: SeverityMinor,
	}
}

// Invalidate walks the reverse dependency indices from cs's CIDs and
// evicts every memoized result that transitively depends on one of them.
// After it returns, no memoized result remains that transitively
// depended on a CID in cs; no unaffected memoized result is evicted.
func (e *Engine) Invalidate(cs ChangeSet) Report {
	start := time.Now()

	if cs.Severity <= SeverityCosmetic || cs.Severity < e.MinSeverity {
		return Report{Elapsed: time.Since(start)}
	}

	changed := cs.allCIDs()

	visited := make(map[id.MemoKey]struct{})
	var queue []id.MemoKey
	for _, c := range changed {
		queue = append(queue, e.Graph.CIDDependents(c)...)
	}

	removed := 0
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		if _, ok := visited[q]; ok {
			continue
		}
		visited[q] = struct{}{}

		if e.Cache.Remove(q) {
			removed++
		}
		next := e.Graph.QueryDependents(q)
		e.Graph.Remove(q)
		queue = append(queue, next...)
	}

	report := Report{
		ChangedCIDs:         len(changed),
		QueriesInvalidated:  len(visited),
		CacheEntriesRemoved: removed,
		Elapsed:             time.Since(start),
	}

	rtlog.Info().
		Int("changed_cids", report.ChangedCIDs).
		Int("queries_invalidated", report.QueriesInvalidated).
		Int("cache_entries_removed", report.CacheEntriesRemoved).
		Dur("elapsed", report.Elapsed).
		Log("invalidation pass complete")

	return report
}
