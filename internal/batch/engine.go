package batch

import (
	"context"
	"fmt"

	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/telemetry"
)

// run is a maximal contiguous subsequence of operations sharing (Kind, Key).
type run struct {
	kind Kind
	ops  []*Operation
}

// Batch is the ordered container of operations executed as a unit with a
// fixed Semantics snapshot (spec.md §3).
type Batch struct {
	semantics Semantics
	registry  *Registry
	state     *stateBox
	ops       []*Operation
}

// New creates an Open batch; the Semantics snapshot is fixed from here on.
func New(registry *Registry, sem Semantics) *Batch {
	return &Batch{semantics: sem, registry: registry, state: newStateBox()}
}

func (b *Batch) Semantics() Semantics { return b.semantics }

// Add enqueues an operation. It fails once execution has begun — a batch is
// monotonic (spec.md §3's invariant).
func (b *Batch) Add(op *Operation) error {
	if b.state.load() != StateOpen {
		return fmt.Errorf("batch: add after execute started: %w", errs.Config)
	}
	b.ops = append(b.ops, op)
	return nil
}

// coalesce walks the operation list maintaining a current run, closing it
// whenever (kind, key) changes (spec.md §4.6 step 1). Runs of length 1 are
// legal, including every op whose Key is nil.
func coalesce(ops []*Operation) []run {
	var runs []run
	for _, op := range ops {
		if len(runs) > 0 {
			cur := &runs[len(runs)-1]
			if sameRun(cur.ops[0], op) {
				cur.ops = append(cur.ops, op)
				continue
			}
		}
		runs = append(runs, run{kind: op.Kind, ops: []*Operation{op}})
	}
	return runs
}

// Execute transitions Open -> Executing, runs the three-step pipeline
// (coalesce, execute, free), and transitions Executing -> Done. It always
// returns the aggregate results and frees every operation, even on error.
func (b *Batch) Execute(ctx context.Context) (bool, []Result, error) {
	ctx, endSpan := telemetry.StartSpan(ctx, "batch.Execute")
	defer endSpan()

	if !b.state.transition(StateOpen, StateExecuting) {
		return false, nil, fmt.Errorf("batch: execute called twice: %w", errs.Config)
	}
	defer b.state.transition(StateExecuting, StateDone)

	ops := b.ops
	defer func() {
		for _, op := range ops {
			op.free()
		}
	}()

	runs := coalesce(ops)
	var results []Result
	ok := true

	for i, r := range runs {
		executor, found := b.registry.executors[r.kind]
		if !found {
			for _, op := range r.ops {
				results = append(results, Result{Op: op, Err: fmt.Errorf("batch: no executor for kind %d: %w", r.kind, errs.Config)})
			}
			ok = false
			continue
		}

		runResults := executor.Execute(ctx, r.ops, b.semantics)
		for _, res := range runResults {
			if res.Err != nil {
				ok = false
				res.Op.Err = res.Err
			}
			results = append(results, res)
		}

		if b.semantics.Persistency == PersistencyImmediate && b.registry.syncer != nil {
			_ = b.registry.syncer.Sync(ctx, r.kind)
		}

		isLastRun := i == len(runs)-1
		if isLastRun && b.semantics.Persistency == PersistencyEventual && b.registry.syncer != nil {
			_ = b.registry.syncer.Sync(ctx, r.kind)
		}
	}

	return ok, results, nil
}
