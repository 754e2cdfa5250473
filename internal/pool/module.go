package pool

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/arcfabric/storecore/internal/config"
	"github.com/arcfabric/storecore/internal/transport"
)

// Module provides the process-wide Pool, one per fx.App, mirroring the
// teacher's per-package fx.Module convention.
var Module = fx.Module("pool",
	fx.Provide(New1),
)

// New1 builds the Pool from resolved configuration; named to avoid
// colliding with New's variadic-options signature in fx's reflection-based
// constructor matching.
func New1(cfg *config.Config, log *slog.Logger, dialer transport.Dialer) *Pool {
	servers := map[Kind][]string{
		KindObject: cfg.Servers.Object,
		KindKV:     cfg.Servers.KV,
		KindDB:     cfg.Servers.DB,
	}
	return New(servers, log,
		WithMaxPerServer(cfg.MaxConnections),
		WithDialTimeout(cfg.Pool.DialTimeout),
		WithMaxConcurrentDials(cfg.Pool.MaxConcurrentDial),
		WithDialer(dialer))
}
