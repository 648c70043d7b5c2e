package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/id"
)

func k(b byte) id.MemoKey {
	var key id.MemoKey
	key[0] = b
	return key
}

func TestDetector_ImmediateReentry(t *testing.T) {
	d := New()
	require.NoError(t, d.StartQuery(k(1), "w0"))
	err := d.StartQuery(k(1), "w0")
	assert.ErrorIs(t, err, ErrCycle)
	d.EndQuery(k(1))
	assert.False(t, d.Active(k(1)))
}

func TestDetector_SelfDependency(t *testing.T) {
	d := New()
	require.NoError(t, d.StartQuery(k(1), "w0"))
	err := d.AddDependency(k(1), k(1))
	assert.ErrorIs(t, err, ErrCycle)
}

func TestDetector_TransitiveCycle(t *testing.T) {
	d := New()
	require.NoError(t, d.StartQuery(k(1), "w0"))
	require.NoError(t, d.StartQuery(k(2), "w0"))
	require.NoError(t, d.StartQuery(k(3), "w0"))

	require.NoError(t, d.AddDependency(k(1), k(2)))
	require.NoError(t, d.AddDependency(k(2), k(3)))

	// 3 -> 1 would close the cycle 1 -> 2 -> 3 -> 1
	err := d.AddDependency(k(3), k(1))
	assert.ErrorIs(t, err, ErrCycle)
}

func TestDetector_NoCycle_Diamond(t *testing.T) {
	d := New()
	require.NoError(t, d.StartQuery(k(1), "w0"))
	require.NoError(t, d.StartQuery(k(2), "w0"))
	require.NoError(t, d.StartQuery(k(3), "w0"))
	require.NoError(t, d.StartQuery(k(4), "w0"))

	require.NoError(t, d.AddDependency(k(1), k(2)))
	require.NoError(t, d.AddDependency(k(1), k(3)))
	require.NoError(t, d.AddDependency(k(2), k(4)))
	require.NoError(t, d.AddDependency(k(3), k(4)))
}

func TestDetector_CompletedQueriesCannotCycle(t *testing.T) {
	d := New()
	require.NoError(t, d.StartQuery(k(1), "w0"))
	require.NoError(t, d.AddDependency(k(1), k(2)))
	d.EndQuery(k(1))

	// k(1) is no longer active; a new query k(2) depending back on the
	// completed k(1) must not be treated as a cycle.
	require.NoError(t, d.StartQuery(k(2), "w0"))
	err := d.AddDependency(k(2), k(1))
	assert.NoError(t, err)
}
