package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/telemetry"
	"github.com/arcfabric/storecore/internal/transport"
	"github.com/arcfabric/storecore/internal/wire"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// Pool is the single process-wide connection pool, parameterized by
// max_per_server and holding one queue per (kind, server index), per
// spec.md §4.2.
type Pool struct {
	cfg    config
	domreg *transport.DomainRegistry
	log    *slog.Logger

	queues  map[Kind][]*serverQueue
	dialSem *semaphore.Weighted
}

// New builds a Pool from the configured server lists (one ordered slice of
// "host:port" per data plane).
func New(servers map[Kind][]string, logger *slog.Logger, opts ...Option) *Pool {
	cfg := config{
		maxPerServer:      8,
		dialTimeout:       5 * time.Second,
		maxConcurrentDial: 32,
		dialer:            transport.NetDialer{Timeout: 5 * time.Second},
		resolver:          NetResolver{},
	}
	for _, o := range opts {
		o(&cfg)
	}

	p := &Pool{
		cfg:    cfg,
		domreg: transport.NewDomainRegistry(),
		log:    logger,
		queues: make(map[Kind][]*serverQueue),
		dialSem: semaphore.NewWeighted(cfg.maxConcurrentDial),
	}
	for kind, addrs := range servers {
		qs := make([]*serverQueue, len(addrs))
		for i, addr := range addrs {
			qs[i] = newServerQueue(addr, cfg.maxPerServer)
		}
		p.queues[kind] = qs
	}
	return p
}

func (p *Pool) queueFor(kind Kind, index int) (*serverQueue, error) {
	qs, ok := p.queues[kind]
	if !ok || index < 0 || index >= len(qs) {
		return nil, fmt.Errorf("pool: no queue for %s server %d: %w", kind, index, errs.Config)
	}
	return qs[index], nil
}

// ServerCount reports how many servers are configured for a data plane.
func (p *Pool) ServerCount(kind Kind) int { return len(p.queues[kind]) }

// Pop implements the contract of spec.md §4.2: pop a live endpoint, build
// one if under the cap, or block until one is pushed back.
func (p *Pool) Pop(ctx context.Context, kind Kind, index int) (*transport.Endpoint, error) {
	q, err := p.queueFor(kind, index)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case ep := <-q.entries:
			if ep.IsShutdown() {
				_ = ep.Close(false, nil)
				q.release()
				continue
			}
			return ep, nil
		default:
		}

		if q.tryReserve() {
			ep, err := p.buildEndpoint(ctx, q)
			if err != nil {
				q.release()
				return nil, err
			}
			return ep, nil
		}

		// Cap reached: block until an entry is pushed back, or the caller's
		// context gives up.
		select {
		case ep := <-q.entries:
			if ep.IsShutdown() {
				_ = ep.Close(false, nil)
				q.release()
				continue
			}
			return ep, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("pool: pop %s[%d]: %w", kind, index, errs.Wrap(errs.KindCancelled, ctx.Err().Error(), errs.Cancelled))
		}
	}
}

// Push returns an endpoint to its queue. Always non-blocking: the channel
// capacity equals max_per_server so a pushed endpoint always has room.
func (p *Pool) Push(kind Kind, index int, ep *transport.Endpoint) {
	q, err := p.queueFor(kind, index)
	if err != nil {
		_ = ep.Close(true, nil)
		return
	}
	select {
	case q.entries <- ep:
	default:
		// Defensive: should not happen given the cap invariant, but never
		// leak an endpoint if it does.
		_ = ep.Close(true, nil)
		q.release()
	}
}

func (p *Pool) buildEndpoint(ctx context.Context, q *serverQueue) (*transport.Endpoint, error) {
	if err := p.dialSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("pool: dial semaphore: %w", errs.Wrap(errs.KindCancelled, err.Error(), errs.Cancelled))
	}
	defer p.dialSem.Release(1)

	result, err := q.breaker.Execute(func() (any, error) {
		return p.dialAndPing(ctx, q.address)
	})
	if err != nil {
		return nil, fmt.Errorf("pool: build endpoint for %s: %w", q.address, errs.Wrap(errs.KindTransport, err.Error(), errs.Transport))
	}
	return result.(*transport.Endpoint), nil
}

func (p *Pool) dialAndPing(ctx context.Context, hostport string) (*transport.Endpoint, error) {
	ctx, endSpan := telemetry.StartSpan(ctx, "pool.dialAndPing")
	defer endSpan()

	addrs, err := p.cfg.resolver.Resolve(ctx, hostport)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, addr := range addrs {
		dialCtx, cancel := context.WithTimeout(ctx, p.cfg.dialTimeout)
		ep, dialErr := transport.Dial(dialCtx, p.cfg.dialer, p.domreg, "tcp", addr)
		cancel()
		if dialErr != nil {
			lastErr = dialErr
			continue
		}

		if err := p.ping(ctx, ep); err != nil {
			_ = ep.Close(false, nil)
			lastErr = err
			continue
		}

		p.log.Debug("POOL_ENDPOINT_BUILT", slog.String("address", addr))
		return ep, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("pool: no addresses resolved for %s", hostport)
	}
	return nil, lastErr
}

// ping is the mandatory liveness check before a freshly built endpoint is
// handed out (spec.md §4.2).
func (p *Pool) ping(ctx context.Context, ep *transport.Endpoint) error {
	msg := wire.NewRequest(wire.TypePing)
	msg.Modifiers = wire.ModifierSafetyNetwork
	if err := ep.Send(ctx, msg); err != nil {
		return err
	}
	reply, err := ep.Receive(ctx)
	if err != nil {
		return err
	}
	if !reply.IsReply() || reply.Type != wire.TypePing {
		return fmt.Errorf("pool: unexpected ping reply: %w", errs.Protocol)
	}
	return nil
}

// Shutdown drains every queue. If the server already initiated the
// tear-down on a drained endpoint, no client-initiated shutdown message is
// sent on the remaining endpoints of that queue (spec.md §4.2).
func (p *Pool) Shutdown() {
	for kind, qs := range p.queues {
		for idx, q := range qs {
			p.shutdownQueue(kind, idx, q)
		}
	}
}

func (p *Pool) shutdownQueue(kind Kind, idx int, q *serverQueue) {
	serverInitiated := false
	var drained []*transport.Endpoint
	for {
		select {
		case ep := <-q.entries:
			drained = append(drained, ep)
		default:
			goto drainedAll
		}
	}
drainedAll:
	for _, ep := range drained {
		if ep.IsShutdown() {
			serverInitiated = true
		}
	}
	for _, ep := range drained {
		_ = ep.Close(!serverInitiated, nil)
	}
	p.log.Debug("POOL_QUEUE_SHUTDOWN", slog.String("kind", kind.String()), slog.Int("index", idx), slog.Bool("server_initiated", serverInitiated))
}
