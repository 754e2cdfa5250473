package pool

import (
	"sync/atomic"

	"github.com/arcfabric/storecore/internal/transport"
	"github.com/sony/gobreaker"
)

// serverQueue is one (kind, server index)'s bounded FIFO of endpoints plus
// the count of endpoints ever created — not the current queue depth — used
// to enforce max_per_server (spec.md §4.2).
type serverQueue struct {
	address string
	max     int

	entries chan *transport.Endpoint
	count   atomic.Int64

	breaker *gobreaker.CircuitBreaker
}

func newServerQueue(address string, max int) *serverQueue {
	return &serverQueue{
		address: address,
		max:     max,
		entries: make(chan *transport.Endpoint, max),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        address,
			MaxRequests: 1,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// tryReserve atomically claims one new-build slot; returns false if the cap
// would be exceeded (the caller must then fall through to blocking on the
// queue rather than dialing).
func (q *serverQueue) tryReserve() bool {
	if q.count.Add(1) <= int64(q.max) {
		return true
	}
	q.count.Add(-1)
	return false
}

func (q *serverQueue) release() {
	q.count.Add(-1)
}
