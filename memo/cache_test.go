package memo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/depgraph"
	"github.com/janus-lang/janus-sub015/id"
)

func memoKey(b byte) id.MemoKey {
	var k id.MemoKey
	k[0] = b
	return k
}

func TestCache_PutGetRemove(t *testing.T) {
	c := New()
	k := memoKey(1)

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, "result", depgraph.NewDependencySet())
	e, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, "result", e.Result)
	assert.Equal(t, uint64(1), e.AccessCount())

	_, ok = c.Get(k)
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.AccessCount())

	assert.True(t, c.Remove(k))
	assert.False(t, c.Remove(k))
	_, ok = c.Get(k)
	assert.False(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := New()
	k := memoKey(2)
	c.Put(k, 1, depgraph.NewDependencySet())
	c.Get(k)
	c.Get(memoKey(3)) // miss

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_ClearAll(t *testing.T) {
	c := New()
	for i := byte(0); i < 10; i++ {
		c.Put(memoKey(i), i, depgraph.NewDependencySet())
	}
	assert.Equal(t, 10, c.Len())
	c.ClearAll()
	assert.Equal(t, 0, c.Len())
}

func TestCache_NoResurrectionAfterRemove(t *testing.T) {
	c := New()
	k := memoKey(4)
	c.Put(k, "v1", depgraph.NewDependencySet())
	c.Remove(k)
	_, ok := c.Get(k)
	assert.False(t, ok, "removed entry must not reappear without an explicit Put")
}

func TestCache_ConcurrentAccess_DoesNotRace(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := memoKey(byte(i))
			c.Put(k, i, depgraph.NewDependencySet())
			c.Get(k)
			c.Remove(k)
		}(i)
	}
	wg.Wait()
}
