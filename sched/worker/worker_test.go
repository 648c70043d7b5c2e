package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/sched"
	"github.com/janus-lang/janus-sub015/sched/fiber"
	"github.com/janus-lang/janus-sub015/sched/task"
)

func waitForTerminal(t *testing.T, tk *task.Task) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tk.State().Terminal() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %d never reached a terminal state (stuck in %s)", tk.ID, tk.State())
}

func TestPool_RunsSubmittedTaskToCompletion(t *testing.T) {
	p := NewPool(2, 16, 1)
	p.Start()
	defer p.Stop()

	tk := task.New(func(arg any) (any, error) {
		return arg.(int) + 1, nil
	}, 41, 0)

	require.True(t, p.Submit(tk))
	waitForTerminal(t, tk)

	assert.Equal(t, task.Completed, tk.State())
	assert.Equal(t, 42, tk.Result().Value)
}

func TestPool_StealingDrainsABusyWorker(t *testing.T) {
	p := NewPool(4, 16, 7)
	p.Start()
	defer p.Stop()

	const n = 50
	tasks := make([]*task.Task, n)
	for i := 0; i < n; i++ {
		tasks[i] = task.New(func(arg any) (any, error) {
			return arg, nil
		}, i, 0)
	}
	// submit every task through worker 0's round-robin slot by calling
	// Submit directly on the pool's single entry point; the round-robin
	// cursor still spreads them, but pushing many at once and letting
	// idle workers steal exercises the steal path regardless.
	for _, tk := range tasks {
		require.True(t, p.Submit(tk))
	}
	for _, tk := range tasks {
		waitForTerminal(t, tk)
		assert.Equal(t, task.Completed, tk.State())
	}
}

func TestPool_BlockedTaskResumesOnWake(t *testing.T) {
	p := NewPool(2, 16, 3)
	p.Start()
	defer p.Stop()

	tk := task.New(func(arg any) (any, error) {
		woke := fiber.YieldBlocked("waiting")
		return woke, nil
	}, nil, 0)

	require.True(t, p.Submit(tk))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && tk.State() != task.Blocked {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, task.Blocked, tk.State())

	require.True(t, p.WakeBlocked(tk, "wake-value"))
	waitForTerminal(t, tk)

	assert.Equal(t, task.Completed, tk.State())
	assert.Equal(t, "wake-value", tk.Result().Value)
}

func TestPool_PanicIsCapturedAsErroredResult(t *testing.T) {
	p := NewPool(1, 16, 1)
	p.Start()
	defer p.Stop()

	tk := task.New(func(arg any) (any, error) {
		panic("oops")
	}, nil, 0)

	require.True(t, p.Submit(tk))
	waitForTerminal(t, tk)

	assert.Equal(t, task.Errored, tk.State())
	assert.True(t, tk.Result().Panicked)
}

func TestPool_StartTwiceWithoutStopFails(t *testing.T) {
	p := NewPool(2, 16, 1)
	require.NoError(t, p.Start())
	defer p.Stop()

	assert.ErrorIs(t, p.Start(), sched.ErrAlreadyStarted)
}

func TestNewPool_StealOrderExcludesSelf(t *testing.T) {
	p := NewPool(4, 16, 1)
	for _, w := range p.workers {
		assert.Len(t, w.stealOrder, 3)
		for _, peer := range w.stealOrder {
			assert.NotEqual(t, w.id, peer)
		}
	}
}
