package invalidate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/depgraph"
	"github.com/janus-lang/janus-sub015/id"
	"github.com/janus-lang/janus-sub015/memo"
)

func cidOf(b byte) id.CID {
	var c id.CID
	c[0] = b
	return c
}

func keyOf(b byte) id.MemoKey {
	var k id.MemoKey
	k[0] = b
	return k
}

func newFixture(t *testing.T) (*depgraph.Graph, *memo.Cache, *Engine) {
	t.Helper()
	g := depgraph.New()
	c := memo.New()
	return g, c, New(g, c)
}

func TestEngine_CosmeticNeverInvalidates(t *testing.T) {
	g, c, e := newFixture(t)

	deps := depgraph.NewDependencySet()
	deps.AddCID(cidOf(1))
	g.RecordDependencies(keyOf(10), deps)
	c.Put(keyOf(10), "result", deps)

	report := e.Invalidate(ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityCosmetic})
	assert.Equal(t, 0, report.QueriesInvalidated)
	_, ok := c.Get(keyOf(10))
	assert.True(t, ok, "cosmetic change must not evict")
}

func TestEngine_DirectInvalidation(t *testing.T) {
	g, c, e := newFixture(t)

	deps := depgraph.NewDependencySet()
	deps.AddCID(cidOf(1))
	g.RecordDependencies(keyOf(10), deps)
	c.Put(keyOf(10), "result", deps)

	report := e.Invalidate(ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityMajor})
	assert.Equal(t, 1, report.QueriesInvalidated)
	assert.Equal(t, 1, report.CacheEntriesRemoved)
	_, ok := c.Get(keyOf(10))
	assert.False(t, ok)
}

func TestEngine_TransitiveInvalidation(t *testing.T) {
	g, c, e := newFixture(t)

	// query 10 depends directly on CID 1; query 20 depends on query 10.
	deps10 := depgraph.NewDependencySet()
	deps10.AddCID(cidOf(1))
	g.RecordDependencies(keyOf(10), deps10)
	c.Put(keyOf(10), "r10", deps10)

	deps20 := depgraph.NewDependencySet()
	deps20.AddQuery(keyOf(10))
	g.RecordDependencies(keyOf(20), deps20)
	c.Put(keyOf(20), "r20", deps20)

	report := e.Invalidate(ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityMajor})
	assert.Equal(t, 2, report.QueriesInvalidated)
	_, ok10 := c.Get(keyOf(10))
	_, ok20 := c.Get(keyOf(20))
	assert.False(t, ok10)
	assert.False(t, ok20)
}

func TestEngine_UnaffectedResultsSurvive(t *testing.T) {
	g, c, e := newFixture(t)

	deps1 := depgraph.NewDependencySet()
	deps1.AddCID(cidOf(1))
	g.RecordDependencies(keyOf(10), deps1)
	c.Put(keyOf(10), "r10", deps1)

	deps2 := depgraph.NewDependencySet()
	deps2.AddCID(cidOf(2))
	g.RecordDependencies(keyOf(20), deps2)
	c.Put(keyOf(20), "r20", deps2)

	e.Invalidate(ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityMajor})

	_, ok := c.Get(keyOf(20))
	assert.True(t, ok, "query depending on an unrelated CID must survive")
}

func TestEngine_MinSeverityKnob(t *testing.T) {
	g, c, e := newFixture(t)
	e.MinSeverity = SeverityMajor

	deps := depgraph.NewDependencySet()
	deps.AddCID(cidOf(1))
	g.RecordDependencies(keyOf(10), deps)
	c.Put(keyOf(10), "r10", deps)

	report := e.Invalidate(ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityMinor})
	assert.Equal(t, 0, report.QueriesInvalidated, "minor change should not invalidate when MinSeverity is major")

	report = e.Invalidate(ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityMajor})
	assert.Equal(t, 1, report.QueriesInvalidated)
}

func TestCoalescer_MergesConcurrentSubmits(t *testing.T) {
	g, c, e := newFixture(t)

	deps := depgraph.NewDependencySet()
	deps.AddCID(cidOf(1))
	g.RecordDependencies(keyOf(10), deps)
	c.Put(keyOf(10), "r10", deps)

	coalescer := NewCoalescer(e, 8, 20*time.Millisecond)
	defer coalescer.Close()

	results := make(chan Report, 2)
	go func() {
		r, err := coalescer.Submit(context.Background(), ChangeSet{Modified: []id.CID{cidOf(1)}, Severity: SeverityMajor})
		require.NoError(t, err)
		results <- r
	}()
	go func() {
		r, err := coalescer.Submit(context.Background(), ChangeSet{Modified: []id.CID{cidOf(2)}, Severity: SeverityMajor})
		require.NoError(t, err)
		results <- r
	}()

	r1 := <-results
	r2 := <-results
	// both submits observe the same merged flush
	assert.Equal(t, r1.ChangedCIDs, r2.ChangedCIDs)
	assert.GreaterOrEqual(t, r1.ChangedCIDs, 1)
}
