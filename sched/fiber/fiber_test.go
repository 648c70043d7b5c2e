package fiber

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/sched/task"
)

func TestResume_RunsToCompletion(t *testing.T) {
	tk := task.New(func(arg any) (any, error) {
		return arg.(int) * 2, nil
	}, 21, 0)
	f := New(tk)

	out := f.Resume(21)
	require.True(t, out.Terminal())
	assert.Equal(t, 42, out.Result)
	assert.NoError(t, out.Err)
}

func TestResume_PropagatesEntryError(t *testing.T) {
	sentinel := errors.New("boom")
	tk := task.New(func(arg any) (any, error) {
		return nil, sentinel
	}, nil, 0)
	f := New(tk)

	out := f.Resume(nil)
	require.True(t, out.Terminal())
	assert.ErrorIs(t, out.Err, sentinel)
}

func TestResume_CatchesPanic(t *testing.T) {
	tk := task.New(func(arg any) (any, error) {
		panic("kaboom")
	}, nil, 0)
	f := New(tk)

	out := f.Resume(nil)
	require.True(t, out.Terminal())
	assert.True(t, out.Panicked)
	assert.Equal(t, "kaboom", out.PanicInfo)
}

func TestYield_SuspendsAndResumesWithValue(t *testing.T) {
	tk := task.New(func(arg any) (any, error) {
		got := Yield()
		return got, nil
	}, nil, 0)
	f := New(tk)

	out := f.Resume(nil)
	require.False(t, out.Terminal(), "first resume must observe the voluntary yield")
	assert.True(t, out.Blocked)

	out = f.Resume("woke")
	require.True(t, out.Terminal())
	assert.Equal(t, "woke", out.Result)
}

func TestYieldBlocked_CarriesReason(t *testing.T) {
	tk := task.New(func(arg any) (any, error) {
		YieldBlocked("waiting-on-nursery")
		return "done", nil
	}, nil, 0)
	f := New(tk)

	out := f.Resume(nil)
	require.False(t, out.Terminal())
	assert.Equal(t, "waiting-on-nursery", out.Reason)

	out = f.Resume(nil)
	require.True(t, out.Terminal())
	assert.Equal(t, "done", out.Result)
}

func TestYieldComplete_EndsEarlyWithResult(t *testing.T) {
	tk := task.New(func(arg any) (any, error) {
		YieldComplete("early")
		panic("unreachable")
	}, nil, 0)
	f := New(tk)

	out := f.Resume(nil)
	require.True(t, out.Terminal())
	assert.Equal(t, "early", out.Result)
}

func TestCurrentTask_VisibleOnlyInsideFiber(t *testing.T) {
	assert.False(t, InFiberContext())

	var sawTask *task.Task
	var sawInFiber bool
	tk := task.New(func(arg any) (any, error) {
		sawTask = CurrentTask()
		sawInFiber = InFiberContext()
		return nil, nil
	}, nil, 0)
	f := New(tk)
	f.Resume(nil)

	assert.True(t, sawInFiber)
	require.NotNil(t, sawTask)
	assert.Equal(t, tk.ID, sawTask.ID)
	assert.False(t, InFiberContext(), "registry entry must be cleaned up once the fiber's goroutine exits")
}
