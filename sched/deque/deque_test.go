package deque

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/sched/task"
)

func TestNew_RoundsCapacityToPowerOfTwo(t *testing.T) {
	d := New(100)
	assert.Equal(t, 128, d.Cap())
}

func TestNew_ZeroUsesDefaultCapacity(t *testing.T) {
	d := New(0)
	assert.Equal(t, DefaultCapacity, d.Cap())
}

func TestPushPop_LIFOOrder(t *testing.T) {
	d := New(8)
	t1 := task.New(nil, nil, 0)
	t2 := task.New(nil, nil, 0)
	require.True(t, d.PushBottom(t1))
	require.True(t, d.PushBottom(t2))

	got, ok := d.PopBottom()
	require.True(t, ok)
	assert.Equal(t, t2.ID, got.ID, "owner pops the most recently pushed task first")

	got, ok = d.PopBottom()
	require.True(t, ok)
	assert.Equal(t, t1.ID, got.ID)

	_, ok = d.PopBottom()
	assert.False(t, ok)
}

func TestPushBottom_FailsWhenFull(t *testing.T) {
	d := New(2)
	require.True(t, d.PushBottom(task.New(nil, nil, 0)))
	require.True(t, d.PushBottom(task.New(nil, nil, 0)))
	assert.False(t, d.PushBottom(task.New(nil, nil, 0)))
}

func TestStealTop_FIFOFromOwnerPerspective(t *testing.T) {
	d := New(8)
	t1 := task.New(nil, nil, 0)
	t2 := task.New(nil, nil, 0)
	require.True(t, d.PushBottom(t1))
	require.True(t, d.PushBottom(t2))

	got, ok := d.StealTop()
	require.True(t, ok)
	assert.Equal(t, t1.ID, got.ID, "thieves take the oldest task")
}

func TestStealTop_EmptyDequeReturnsFalse(t *testing.T) {
	d := New(8)
	_, ok := d.StealTop()
	assert.False(t, ok)
}

func TestNoDoubleClaim_ConcurrentStealAndPop(t *testing.T) {
	for iter := 0; iter < 200; iter++ {
		d := New(8)
		tk := task.New(nil, nil, 0)
		require.True(t, d.PushBottom(tk))

		var wg sync.WaitGroup
		results := make(chan bool, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, ok := d.PopBottom()
			results <- ok
		}()
		go func() {
			defer wg.Done()
			_, ok := d.StealTop()
			results <- ok
		}()
		wg.Wait()
		close(results)

		claims := 0
		for ok := range results {
			if ok {
				claims++
			}
		}
		assert.Equal(t, 1, claims, "exactly one of pop/steal may claim the single element")
	}
}

func TestLen_TracksPushAndPop(t *testing.T) {
	d := New(8)
	assert.Equal(t, 0, d.Len())
	d.PushBottom(task.New(nil, nil, 0))
	d.PushBottom(task.New(nil, nil, 0))
	assert.Equal(t, 2, d.Len())
	d.PopBottom()
	assert.Equal(t, 1, d.Len())
}
