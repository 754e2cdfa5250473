package batch

// Kind tags an Operation with the executor that must handle its run.
type Kind int

const (
	KindObjectCreate Kind = iota
	KindObjectDelete
	KindObjectRead
	KindObjectWrite
	KindObjectStatus
	KindObjectMetaGet
	KindObjectMetaPut
	KindObjectMetaDelete
	KindKVPut
	KindKVGet
	KindKVDelete
	KindDBInsert
	KindDBUpdate
	KindDBDelete
	KindDBIterate
)

// CoalesceKey is an opaque equality token. Two operations coalesce into one
// run iff they share Kind and a non-nil, equal CoalesceKey (spec.md §3's
// "opaque pointer used only for equality; nil means do not coalesce").
// No typed handle ID is used; the core keeps the pointer-identity contract
// from spec.md unchanged.
type CoalesceKey any

// Operation is one tagged unit of work enqueued into a Batch.
type Operation struct {
	Kind Kind
	Key  CoalesceKey
	Args any

	// Output is the caller-owned destination slot the executor must fill on
	// success. Its concrete type is kind-specific (see the executor
	// packages); the engine itself never inspects it.
	Output any

	// Err is set by Execute once this specific operation's result is known.
	Err error

	// onFree runs exactly once when the batch frees the operation,
	// regardless of outcome (spec.md §4.6 step 3).
	onFree func()
}

// OnFree registers the operation's destructor.
func (o *Operation) OnFree(fn func()) { o.onFree = fn }

func (o *Operation) free() {
	if o.onFree != nil {
		o.onFree()
	}
}

// sameRun reports whether b can be fused into the same run as a, per
// spec.md §3: same Kind, same Key, and Key != nil.
func sameRun(a, b *Operation) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Key == nil || b.Key == nil {
		return false
	}
	return a.Key == b.Key
}
