package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus-sub015/codec"
	"github.com/janus-lang/janus-sub015/id"
	"github.com/janus-lang/janus-sub015/quota"
)

func testLimits() quota.Limits {
	return quota.Limits{
		WallTime:    time.Second,
		MemoryBytes: 1 << 20,
		NodeVisits:  10_000,
		MaxDepth:    100,
		Gas:         1_000_000,
	}
}

func symbolBody(name string, def id.CID) Body {
	return func(ctx *Context, args []id.Arg) (codec.Result, error) {
		_ = ctx.Gas().Charge(quota.OpSymbolLookup)
		ctx.RecordCID(def)
		return codec.ResultSymbolInfo(codec.SymbolInfo{Name: name, Def: def}), nil
	}
}

func TestExecute_ColdThenWarmCache(t *testing.T) {
	var calls int
	body := func(ctx *Context, args []id.Arg) (codec.Result, error) {
		calls++
		return codec.ResultHoverInfo(codec.HoverInfo{Text: "hello"}), nil
	}
	exec := NewExecutor(map[id.Kind]Body{id.KindHoverInfo: body})

	args := []id.Arg{id.ArgScalar(1)}
	r1, err := exec.Execute(id.KindHoverInfo, args, testLimits())
	require.NoError(t, err)
	assert.Equal(t, "hello", r1.Hover.Text)
	assert.Equal(t, 1, calls)

	r2, err := exec.Execute(id.KindHoverInfo, args, testLimits())
	require.NoError(t, err)
	assert.Equal(t, "hello", r2.Hover.Text)
	assert.Equal(t, 1, calls, "second call must be served from cache, not re-invoke the body")

	snap := exec.Counters.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.CacheHits)
}

func TestExecute_DifferentArgsDoNotCollide(t *testing.T) {
	exec := NewExecutor(map[id.Kind]Body{
		id.KindSymbolInfo: symbolBody("a", id.CID{1}),
	})

	r1, err := exec.Execute(id.KindSymbolInfo, []id.Arg{id.ArgString("a")}, testLimits())
	require.NoError(t, err)
	r2, err := exec.Execute(id.KindSymbolInfo, []id.Arg{id.ArgString("b")}, testLimits())
	require.NoError(t, err)

	assert.Equal(t, "a", r1.Symbol.Name)
	assert.Equal(t, "a", r2.Symbol.Name) // same body, different memo keys
	assert.Equal(t, 2, exec.Cache.Len())
}

func TestExecute_RecordedDependenciesFeedGraph(t *testing.T) {
	def := id.CID{7}
	exec := NewExecutor(map[id.Kind]Body{
		id.KindSymbolInfo: symbolBody("x", def),
	})

	_, err := exec.Execute(id.KindSymbolInfo, []id.Arg{id.ArgString("x")}, testLimits())
	require.NoError(t, err)

	dependents := exec.Graph.CIDDependents(def)
	assert.Len(t, dependents, 1)
}

func TestExecute_SubQueryRecordsQueryDependency(t *testing.T) {
	def := id.CID{9}
	bodies := map[id.Kind]Body{
		id.KindSymbolInfo: symbolBody("leaf", def),
		id.KindHoverInfo: func(ctx *Context, args []id.Arg) (codec.Result, error) {
			sym, err := ctx.Query(id.KindSymbolInfo, []id.Arg{id.ArgString("leaf")})
			if err != nil {
				return codec.Result{}, err
			}
			return codec.ResultHoverInfo(codec.HoverInfo{Text: sym.Symbol.Name}), nil
		},
	}
	exec := NewExecutor(bodies)

	res, err := exec.Execute(id.KindHoverInfo, []id.Arg{id.ArgString("outer")}, testLimits())
	require.NoError(t, err)
	assert.Equal(t, "leaf", res.Hover.Text)

	leafKey := id.ComputeMemoKey(id.KindSymbolInfo, mustEncode(t, []id.Arg{id.ArgString("leaf")}))
	dependents := exec.Graph.QueryDependents(leafKey)
	assert.Len(t, dependents, 1, "parent query must be recorded as a dependent of the sub-query")
}

func TestExecute_DirectSelfRecursionIsACycle(t *testing.T) {
	bodies := map[id.Kind]Body{}
	bodies[id.KindIRInfo] = func(ctx *Context, args []id.Arg) (codec.Result, error) {
		return ctx.Query(id.KindIRInfo, args)
	}
	exec := NewExecutor(bodies)

	_, err := exec.Execute(id.KindIRInfo, []id.Arg{id.ArgScalar(1)}, testLimits())
	require.Error(t, err)

	snap := exec.Counters.Snapshot()
	assert.Equal(t, int64(1), snap.CyclesDetected)
}

func TestExecute_QuotaExceeded(t *testing.T) {
	bodies := map[id.Kind]Body{
		id.KindIRInfo: func(ctx *Context, args []id.Arg) (codec.Result, error) {
			for i := 0; i < 100; i++ {
				if err := ctx.Gas().Charge(quota.OpIRGeneration); err != nil {
					return codec.Result{}, err
				}
			}
			return codec.ResultIRInfo(codec.IRInfo{IR: []byte{1}}), nil
		},
	}
	exec := NewExecutor(bodies)

	tiny := quota.Limits{WallTime: time.Second, MemoryBytes: 1 << 20, NodeVisits: 1000, MaxDepth: 10, Gas: 10}
	_, err := exec.Execute(id.KindIRInfo, []id.Arg{id.ArgScalar(1)}, tiny)
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)

	snap := exec.Counters.Snapshot()
	assert.Equal(t, int64(1), snap.QuotaExceeded, "a direct in-body quota failure must increment the quota-exceeded counter")
}

func TestExecute_UnregisteredKind(t *testing.T) {
	exec := NewExecutor(map[id.Kind]Body{})
	_, err := exec.Execute(id.KindSymbolInfo, nil, testLimits())
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestExecute_NonCanonicalArgRejected(t *testing.T) {
	exec := NewExecutor(map[id.Kind]Body{id.KindHoverInfo: func(ctx *Context, args []id.Arg) (codec.Result, error) {
		return codec.ResultHoverInfo(codec.HoverInfo{}), nil
	}})
	badArgs := []id.Arg{{Tag: id.ArgTagString, Str: string([]byte{0xff, 0xfe})}}
	_, err := exec.Execute(id.KindHoverInfo, badArgs, testLimits())
	require.Error(t, err)
}

func TestRunBatch_BoundedConcurrency(t *testing.T) {
	bodies := map[id.Kind]Body{
		id.KindHoverInfo: func(ctx *Context, args []id.Arg) (codec.Result, error) {
			return codec.ResultHoverInfo(codec.HoverInfo{Text: "ok"}), nil
		},
	}
	exec := NewExecutor(bodies)

	reqs := make([]BatchRequest, 20)
	for i := range reqs {
		reqs[i] = BatchRequest{Kind: id.KindHoverInfo, Args: []id.Arg{id.ArgScalar(int64(i))}, Limits: testLimits()}
	}

	results, err := exec.RunBatch(context.Background(), reqs, 4)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
		assert.Equal(t, "ok", r.Result.Hover.Text)
	}
}

func mustEncode(t *testing.T, args []id.Arg) []byte {
	t.Helper()
	buf, err := codec.EncodeArgs(args)
	require.NoError(t, err)
	return buf
}
