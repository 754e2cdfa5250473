package transport

import (
	"time"

	"go.uber.org/fx"
)

// Module provides the process-wide Dialer, mirroring the teacher's
// per-package fx.Module convention.
var Module = fx.Module("transport",
	fx.Provide(func() Dialer { return NetDialer{Timeout: 5 * time.Second} }),
)
