package lockclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu    sync.Mutex
	taken map[string]bool
}

func newMemBackend() *memBackend { return &memBackend{taken: make(map[string]bool)} }

func (m *memBackend) TryAcquire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken[key] {
		return false, nil
	}
	m.taken[key] = true
	return true, nil
}

func (m *memBackend) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.taken, key)
	return nil
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	be := newMemBackend()
	c := New(be, 0, time.Second)

	key := Key{Kind: "object", Path: "ns/obj", BlockIDs: []uint64{0, 1}}
	lease, err := c.Acquire(context.Background(), key)
	require.NoError(t, err)
	require.True(t, be.taken[key.String()])

	lease.Release()
	require.False(t, be.taken[key.String()])
}

func TestAcquireRetriesUntilFree(t *testing.T) {
	be := newMemBackend()
	c := New(be, 0, 2*time.Second)
	key := Key{Kind: "object", Path: "ns/obj"}

	first, err := c.Acquire(context.Background(), key)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		first.Release()
	}()

	start := time.Now()
	second, err := c.Acquire(context.Background(), key)
	require.NoError(t, err)
	require.Greater(t, time.Since(start), 40*time.Millisecond)
	second.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	be := newMemBackend()
	c := New(be, 0, time.Second)
	key := Key{Kind: "kv", Path: "ns/key"}
	lease, err := c.Acquire(context.Background(), key)
	require.NoError(t, err)
	lease.Release()
	require.NotPanics(t, lease.Release)
}
