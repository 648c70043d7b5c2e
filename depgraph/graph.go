// Package depgraph implements the dependency graph: a forward index from
// query to the CIDs and queries it observed, and two reverse indices used
// by the invalidation engine to answer "who depends on this CID / on this
// query?" in one pass.
//
// The single-lock, multi-index structure is grounded on
// eventloop/registry.go's single-mutex registry of live handles with
// forward and reverse maps (joeycumines/go-utilpkg/eventloop).
package depgraph

import (
	"sync"

	"github.com/janus-lang/janus-sub015/id"
)

// DependencySet is the finite set of CIDs and memo-keys observed during a
// single query execution. Duplicates are suppressed at insertion.
type DependencySet struct {
	CIDs    map[id.CID]struct{}
	Queries map[id.MemoKey]struct{}
}

// NewDependencySet returns an empty DependencySet.
func NewDependencySet() DependencySet {
	return DependencySet{
		CIDs:    make(map[id.CID]struct{}),
		Queries: make(map[id.MemoKey]struct{}),
	}
}

// AddCID records c as observed, suppressing duplicates.
func (s *DependencySet) AddCID(c id.CID) {
	if s.CIDs == nil {
		s.CIDs = make(map[id.CID]struct{})
	}
	s.CIDs[c] = struct{}{}
}

// AddQuery records q as observed, suppressing duplicates.
func (s *DependencySet) AddQuery(q id.MemoKey) {
	if s.Queries == nil {
		s.Queries = make(map[id.MemoKey]struct{})
	}
	s.Queries[q] = struct{}{}
}

// Clone returns a deep copy of s, so that storing it into the graph is
// safe even if the caller's set is subsequently mutated.
func (s DependencySet) Clone() DependencySet {
	out := NewDependencySet()
	for c := range s.CIDs {
		out.CIDs[c] = struct{}{}
	}
	for q := range s.Queries {
		out.Queries[q] = struct{}{}
	}
	return out
}

// Empty reports whether s has no recorded CIDs or queries.
func (s DependencySet) Empty() bool {
	return len(s.CIDs) == 0 && len(s.Queries) == 0
}

// Graph is the dependency graph: one forward index and two reverse
// indices, all guarded by a single lock.
type Graph struct {
	mu sync.Mutex

	deps            map[id.MemoKey]DependencySet           // forward
	cidDependents   map[id.CID]map[id.MemoKey]struct{}      // reverse, content
	queryDependents map[id.MemoKey]map[id.MemoKey]struct{}  // reverse, query-query
}

// New constructs an empty Graph.
func New() *Graph {
	return &Graph{
		deps:            make(map[id.MemoKey]DependencySet),
		cidDependents:   make(map[id.CID]map[id.MemoKey]struct{}),
		queryDependents: make(map[id.MemoKey]map[id.MemoKey]struct{}),
	}
}

// RecordDependencies stores a clone of s under k (forward index) and
// appends k to cidDependents[c] for every c in s.CIDs and to
// queryDependents[q] for every q in s.Queries (reverse indices). Any
// previously recorded dependencies for k are replaced outright.
func (g *Graph) RecordDependencies(k id.MemoKey, s DependencySet) {
	clone := s.Clone()

	g.mu.Lock()
	defer g.mu.Unlock()

	// If k already had recorded dependencies (e.g. a stale entry being
	// overwritten without an intervening Remove), drop its old reverse
	// edges first so they don't linger.
	if old, ok := g.deps[k]; ok {
		g.removeReverseEdgesLocked(k, old)
	}

	g.deps[k] = clone
	for c := range clone.CIDs {
		set, ok := g.cidDependents[c]
		if !ok {
			set = make(map[id.MemoKey]struct{})
			g.cidDependents[c] = set
		}
		set[k] = struct{}{}
	}
	for q := range clone.Queries {
		set, ok := g.queryDependents[q]
		if !ok {
			set = make(map[id.MemoKey]struct{})
			g.queryDependents[q] = set
		}
		set[k] = struct{}{}
	}
}

// Dependencies returns the recorded dependency set for k, if any.
func (g *Graph) Dependencies(k id.MemoKey) (DependencySet, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.deps[k]
	return s, ok
}

// CIDDependents returns every query that directly depends on c.
func (g *Graph) CIDDependents(c id.CID) []id.MemoKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.cidDependents[c]
	out := make([]id.MemoKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// QueryDependents returns every query that directly depends on q.
func (g *Graph) QueryDependents(q id.MemoKey) []id.MemoKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.queryDependents[q]
	out := make([]id.MemoKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Remove deletes k from every reverse set it appears in, then drops
// deps[k].
func (g *Graph) Remove(k id.MemoKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.deps[k]; ok {
		g.removeReverseEdgesLocked(k, old)
	}
	delete(g.deps, k)
}

// removeReverseEdgesLocked removes k from the reverse indices implied by
// old. Callers must hold g.mu.
func (g *Graph) removeReverseEdgesLocked(k id.MemoKey, old DependencySet) {
	for c := range old.CIDs {
		set := g.cidDependents[c]
		delete(set, k)
		if len(set) == 0 {
			delete(g.cidDependents, c)
		}
	}
	for q := range old.Queries {
		set := g.queryDependents[q]
		delete(set, k)
		if len(set) == 0 {
			delete(g.queryDependents, q)
		}
	}
}

// Len returns the number of queries with recorded forward dependencies.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.deps)
}
