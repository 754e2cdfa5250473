package kv_test

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcfabric/storecore/internal/backend"
	"github.com/arcfabric/storecore/internal/batch"
	"github.com/arcfabric/storecore/internal/executor/kv"
	"github.com/arcfabric/storecore/internal/pool"
	"github.com/arcfabric/storecore/internal/server"
)

type pipeDialer struct {
	mu       sync.Mutex
	backends map[string]*backend.MemoryKV
}

func newPipeDialer() *pipeDialer { return &pipeDialer{backends: make(map[string]*backend.MemoryKV)} }

func (d *pipeDialer) backendFor(address string) *backend.MemoryKV {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.backends[address]
	if !ok {
		b = backend.NewMemoryKV()
		d.backends[address] = b
	}
	return b
}

func (d *pipeDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, srv := net.Pipe()
	go (&server.KVServer{Backend: d.backendFor(address)}).Serve(srv)
	return client, nil
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(ctx context.Context, hostport string) ([]string, error) {
	return []string{hostport}, nil
}

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newTestExecutor(t *testing.T, servers int) *kv.Executor {
	t.Helper()
	dialer := newPipeDialer()
	addrs := make([]string, servers)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("srv%d", i)
	}
	p := pool.New(map[pool.Kind][]string{pool.KindKV: addrs}, testLogger(),
		pool.WithDialer(dialer), pool.WithResolver(passthroughResolver{}))
	return &kv.Executor{Pool: p, Servers: servers, Log: testLogger()}
}

func TestPutGetRoundTrip(t *testing.T) {
	ex := newTestExecutor(t, 4)
	reg := batch.NewRegistry(nil)
	reg.Register(batch.KindKVPut, ex)
	reg.Register(batch.KindKVGet, ex)

	b1 := batch.New(reg, batch.DefaultSemantics())
	require.NoError(t, b1.Add(&batch.Operation{Kind: batch.KindKVPut,
		Args: kv.PutArgs{Namespace: "ns", Key: "k1", Value: []byte("v1")}}))
	ok, _, err := b1.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	b2 := batch.New(reg, batch.DefaultSemantics())
	var got kv.GetResult
	require.NoError(t, b2.Add(&batch.Operation{Kind: batch.KindKVGet,
		Args: kv.GetArgs{Namespace: "ns", Key: "k1"}, Output: &got}))
	ok, _, err = b2.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Found)
	require.Equal(t, []byte("v1"), got.Value)
}

func TestGetOnMissingKeyReportsNotFound(t *testing.T) {
	ex := newTestExecutor(t, 1)
	reg := batch.NewRegistry(nil)
	reg.Register(batch.KindKVGet, ex)

	b := batch.New(reg, batch.DefaultSemantics())
	var got kv.GetResult
	require.NoError(t, b.Add(&batch.Operation{Kind: batch.KindKVGet,
		Args: kv.GetArgs{Namespace: "ns", Key: "missing"}, Output: &got}))
	ok, _, err := b.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.Found)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ex := newTestExecutor(t, 2)
	reg := batch.NewRegistry(nil)
	reg.Register(batch.KindKVPut, ex)
	reg.Register(batch.KindKVDelete, ex)
	reg.Register(batch.KindKVGet, ex)

	b1 := batch.New(reg, batch.DefaultSemantics())
	require.NoError(t, b1.Add(&batch.Operation{Kind: batch.KindKVPut,
		Args: kv.PutArgs{Namespace: "ns", Key: "k2", Value: []byte("v2")}}))
	ok, _, err := b1.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		b := batch.New(reg, batch.DefaultSemantics())
		require.NoError(t, b.Add(&batch.Operation{Kind: batch.KindKVDelete,
			Args: kv.DeleteArgs{Namespace: "ns", Key: "k2"}}))
		ok, _, err := b.Execute(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}

	b2 := batch.New(reg, batch.DefaultSemantics())
	var got kv.GetResult
	require.NoError(t, b2.Add(&batch.Operation{Kind: batch.KindKVGet,
		Args: kv.GetArgs{Namespace: "ns", Key: "k2"}, Output: &got}))
	ok, _, err = b2.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.Found)
}

func TestRouteIsStableForSameKey(t *testing.T) {
	a := kv.Route("same-key", 7)
	b := kv.Route("same-key", 7)
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 7)
}
