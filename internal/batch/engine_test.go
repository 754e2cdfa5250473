package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	invocations [][]*Operation
}

func (e *recordingExecutor) Execute(ctx context.Context, run []*Operation, sem Semantics) []Result {
	e.invocations = append(e.invocations, run)
	results := make([]Result, len(run))
	for i, op := range run {
		if out, ok := op.Output.(*int); ok {
			*out = 1
		}
		results[i] = Result{Op: op}
	}
	return results
}

func TestCoalesceFusesSameKindAndKey(t *testing.T) {
	keyA := new(int)
	keyB := new(int)

	ops := []*Operation{
		{Kind: KindObjectWrite, Key: keyA},
		{Kind: KindObjectWrite, Key: keyA},
		{Kind: KindObjectWrite, Key: keyB},
		{Kind: KindObjectWrite, Key: nil},
		{Kind: KindObjectWrite, Key: nil},
	}
	runs := coalesce(ops)
	require.Len(t, runs, 4)
	require.Len(t, runs[0].ops, 2)
	require.Len(t, runs[1].ops, 1)
	require.Len(t, runs[2].ops, 1)
	require.Len(t, runs[3].ops, 1)
}

func TestExecutePreservesInsertionOrderWithinRun(t *testing.T) {
	ex := &recordingExecutor{}
	reg := NewRegistry(nil)
	reg.Register(KindKVPut, ex)

	key := new(int)
	b := New(reg, DefaultSemantics())
	var outs [3]int
	for i := range outs {
		require.NoError(t, b.Add(&Operation{Kind: KindKVPut, Key: key, Output: &outs[i]}))
	}

	ok, results, err := b.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, results, 3)
	require.Len(t, ex.invocations, 1)
	require.Len(t, ex.invocations[0], 3)
	for _, v := range outs {
		require.Equal(t, 1, v)
	}
}

func TestAddAfterExecuteFails(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(KindKVGet, &recordingExecutor{})
	b := New(reg, DefaultSemantics())
	require.NoError(t, b.Add(&Operation{Kind: KindKVGet}))

	_, _, err := b.Execute(context.Background())
	require.NoError(t, err)

	err = b.Add(&Operation{Kind: KindKVGet})
	require.Error(t, err)
}

func TestFreeRunsRegardlessOfOutcome(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(KindKVGet, &recordingExecutor{})
	b := New(reg, DefaultSemantics())

	freed := false
	op := &Operation{Kind: KindKVGet}
	op.OnFree(func() { freed = true })
	require.NoError(t, b.Add(op))

	_, _, err := b.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, freed)
}

func TestMissingExecutorFailsBatchButStillFrees(t *testing.T) {
	reg := NewRegistry(nil)
	b := New(reg, DefaultSemantics())

	freed := false
	op := &Operation{Kind: KindDBInsert}
	op.OnFree(func() { freed = true })
	require.NoError(t, b.Add(op))

	ok, results, err := b.Execute(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	require.True(t, freed)
}

type syncSpy struct{ calls []Kind }

func (s *syncSpy) Sync(ctx context.Context, kind Kind) error {
	s.calls = append(s.calls, kind)
	return nil
}

func TestPersistencyEventualSyncsOnlyAfterLastRun(t *testing.T) {
	spy := &syncSpy{}
	reg := NewRegistry(spy)
	reg.Register(KindKVPut, &recordingExecutor{})

	sem := DefaultSemantics()
	sem.Persistency = PersistencyEventual
	b := New(reg, sem)
	require.NoError(t, b.Add(&Operation{Kind: KindKVPut, Key: new(int)}))
	require.NoError(t, b.Add(&Operation{Kind: KindKVPut, Key: new(int)}))

	_, _, err := b.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, spy.calls, 1)
}

func TestPersistencyImmediateSyncsAfterEachRun(t *testing.T) {
	spy := &syncSpy{}
	reg := NewRegistry(spy)
	reg.Register(KindKVPut, &recordingExecutor{})

	sem := DefaultSemantics()
	sem.Persistency = PersistencyImmediate
	b := New(reg, sem)
	require.NoError(t, b.Add(&Operation{Kind: KindKVPut, Key: new(int)}))
	require.NoError(t, b.Add(&Operation{Kind: KindKVPut, Key: new(int)}))

	_, _, err := b.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, spy.calls, 2)
}
