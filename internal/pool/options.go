package pool

import (
	"time"

	"github.com/arcfabric/storecore/internal/transport"
)

type config struct {
	maxPerServer      int
	dialTimeout       time.Duration
	maxConcurrentDial int64
	dialer            transport.Dialer
	resolver          Resolver
}

// Option configures a Pool at construction time.
type Option func(*config)

// WithMaxPerServer sets the per-(kind,server) endpoint cap (spec.md §4.2's
// max_per_server). Default 8, per spec.md §6.
func WithMaxPerServer(n int) Option {
	return func(c *config) { c.maxPerServer = n }
}

// WithDialTimeout bounds how long a single connect attempt may take.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) { c.dialTimeout = d }
}

// WithMaxConcurrentDials caps process-wide in-flight connect attempts, so a
// simultaneous return of many servers does not trigger a connect storm
// (SPEC_FULL.md §4.2 supplement, grounded on jconnection-pool.c).
func WithMaxConcurrentDials(n int64) Option {
	return func(c *config) { c.maxConcurrentDial = n }
}

// WithDialer overrides the Dialer (tests use an in-memory one).
func WithDialer(d transport.Dialer) Option {
	return func(c *config) { c.dialer = d }
}

// WithResolver overrides the Resolver (tests avoid real DNS).
func WithResolver(r Resolver) Option {
	return func(c *config) { c.resolver = r }
}
