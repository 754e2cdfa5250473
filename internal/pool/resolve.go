package pool

import (
	"context"
	"fmt"
	"net"

	"github.com/arcfabric/storecore/internal/errs"
)

// loopbackAlias is a documented workaround: some hosts resolve their own
// hostname to the Debian/Ubuntu "127.0.1.1" alias, which is not routable
// from inside containers. Remap it to the real loopback before connecting.
const loopbackAlias = "127.0.1.1"
const loopbackReal = "127.0.0.1"

// Resolver resolves a "host:port" server entry into an ordered list of
// dialable "host:port" addresses. It is an interface so tests can avoid a
// real DNS lookup.
type Resolver interface {
	Resolve(ctx context.Context, hostport string) ([]string, error)
}

// NetResolver resolves via the standard library.
type NetResolver struct{}

func (NetResolver) Resolve(ctx context.Context, hostport string) ([]string, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("pool: bad server address %q: %w", hostport, errs.Config)
	}

	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("pool: resolve %q: %w", host, errs.Wrap(errs.KindTransport, err.Error(), errs.Transport))
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		if ip == loopbackAlias {
			ip = loopbackReal
		}
		addrs = append(addrs, net.JoinHostPort(ip, port))
	}
	return addrs, nil
}
