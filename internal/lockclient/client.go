// Package lockclient implements the optional per-object range lock acquired
// around I/O when atomicity demands it (spec.md §4.5): best-effort
// acquisition with bounded backoff, released before the operation's output
// slot is written back to caller memory.
package lockclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/arcfabric/storecore/internal/errs"
)

// Key identifies the lock: (kind_name, object_path) covering a set of
// block IDs reported by the distribution iterator.
type Key struct {
	Kind      string
	Path      string
	BlockIDs  []uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%v", k.Kind, k.Path, k.BlockIDs)
}

// Lease represents a held lock; calls to Release after the first are no-ops.
type Lease struct {
	key      Key
	client   *Client
	released bool
	mu       sync.Mutex
}

func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.client.release(l.key)
}

// Backend is the remote lock service collaborator. The core ships only the
// client-side retry/backoff wrapper; the lock service itself is an external
// collaborator, mirroring the object/KV/DB storage backends' treatment in
// spec.md §1.
type Backend interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Client wraps a Backend with the busy-wait/backoff contract of spec.md §4.5.
type Client struct {
	backend   Backend
	retryBase time.Duration
	retryMax  time.Duration
	mu        sync.Mutex
	held      map[string]int
}

// New builds a Client retrying TryAcquire with exponential backoff
// starting at retryBase, giving up once retryMax has elapsed (spec.md §6's
// `lock.retry_base`/`lock.retry_max` configuration keys).
func New(backend Backend, retryBase, retryMax time.Duration) *Client {
	if retryBase <= 0 {
		retryBase = 50 * time.Millisecond
	}
	if retryMax <= 0 {
		retryMax = 5 * time.Second
	}
	return &Client{backend: backend, retryBase: retryBase, retryMax: retryMax, held: make(map[string]int)}
}

// Acquire busy-waits with bounded exponential backoff until the lock is
// acquired, ctx is cancelled, or retryMax has elapsed; in the last case it
// returns the Conflict error of the final attempt.
func (c *Client) Acquire(ctx context.Context, key Key) (*Lease, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBase
	policy.MaxElapsedTime = c.retryMax
	b := backoff.WithContext(policy, ctx)

	op := func() error {
		ok, err := c.backend.TryAcquire(ctx, key.String())
		if err != nil {
			return backoff.Permanent(fmt.Errorf("lockclient: acquire %s: %w", key, errs.Wrap(errs.KindBackend, err.Error(), errs.Backend)))
		}
		if !ok {
			return fmt.Errorf("lockclient: %s contended: %w", key, errs.Conflict)
		}
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.held[key.String()]++
	c.mu.Unlock()

	return &Lease{key: key, client: c}, nil
}

func (c *Client) release(key Key) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.backend.Release(ctx, key.String())

	c.mu.Lock()
	c.held[key.String()]--
	if c.held[key.String()] <= 0 {
		delete(c.held, key.String())
	}
	c.mu.Unlock()
}
