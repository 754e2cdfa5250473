package batch

import "go.uber.org/fx"

// Module provides the process-wide Syncer, which is nil; the Semantics
// bundle and the Registry are provided in cmd/fx.go, the Registry once the
// per-data-plane executors it wraps are all constructed.
var Module = fx.Module("batch",
	fx.Provide(func() Syncer { return nil }),
)
