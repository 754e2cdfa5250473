package batch

import "context"

// Result is one operation's outcome after a run executes.
type Result struct {
	Op  *Operation
	Err error
}

// Executor turns one run (operations sharing (Kind, Key)) into wire
// messages, dispatches them, correlates replies, and fills output slots
// (spec.md §4.7). Executors are stateless between runs: they must not leak
// partial state across batch boundaries (spec.md §4.6).
type Executor interface {
	Execute(ctx context.Context, run []*Operation, sem Semantics) []Result
}

// Syncer issues the best-effort sync a Persistency policy requires
// (spec.md §4.6). It is kind-scoped because "sync" is a backend operation,
// not a wire message of its own.
type Syncer interface {
	Sync(ctx context.Context, kind Kind) error
}

// Registry maps each operation Kind to the Executor responsible for it.
type Registry struct {
	executors map[Kind]Executor
	syncer    Syncer
}

func NewRegistry(syncer Syncer) *Registry {
	return &Registry{executors: make(map[Kind]Executor), syncer: syncer}
}

func (r *Registry) Register(kind Kind, ex Executor) {
	r.executors[kind] = ex
}
