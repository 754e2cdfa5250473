package pool

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcfabric/storecore/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeServerDialer simulates a remote PING-answering server over an
// in-memory net.Pipe, and counts how many connections it has accepted.
type fakeServerDialer struct {
	connects atomic.Int64
}

func (f *fakeServerDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	f.connects.Add(1)
	client, server := net.Pipe()
	go serveOneConn(server)
	return client, nil
}

func serveOneConn(conn net.Conn) {
	defer conn.Close()
	hdr := make([]byte, wire.HeaderLen)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		msg, bodyLen, err := wire.DecodeHeader(hdr)
		if err != nil {
			return
		}
		if bodyLen > 0 {
			body := make([]byte, bodyLen)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
		}
		if msg.Type == wire.TypePing {
			reply := wire.NewRequest(wire.TypePing).AsReply()
			if _, err := conn.Write(reply.Encode()); err != nil {
				return
			}
		}
	}
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, hostport string) ([]string, error) {
	return []string{hostport}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPopBuildsAndCapsAtMax(t *testing.T) {
	dialer := &fakeServerDialer{}
	p := New(map[Kind][]string{KindObject: {"srv0:1"}}, testLogger(),
		WithDialer(dialer), WithResolver(fakeResolver{}), WithMaxPerServer(2))

	ctx := context.Background()
	ep1, err := p.Pop(ctx, KindObject, 0)
	require.NoError(t, err)
	ep2, err := p.Pop(ctx, KindObject, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, dialer.connects.Load())

	// Third pop must block until one is pushed back.
	done := make(chan struct{})
	go func() {
		ep3, err := p.Pop(ctx, KindObject, 0)
		require.NoError(t, err)
		p.Push(KindObject, 0, ep3)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("third pop should have blocked while cap reached")
	default:
	}

	p.Push(KindObject, 0, ep1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("third pop never unblocked after push")
	}
	p.Push(KindObject, 0, ep2)

	// Cap was never exceeded: at most 2 connects to satisfy 3 sequential pops.
	require.LessOrEqual(t, dialer.connects.Load(), int64(2))
}

func TestPopRebuildsAfterServerShutdown(t *testing.T) {
	dialer := &fakeServerDialer{}
	p := New(map[Kind][]string{KindObject: {"srv0:1"}}, testLogger(),
		WithDialer(dialer), WithResolver(fakeResolver{}), WithMaxPerServer(1))

	ctx := context.Background()
	ep, err := p.Pop(ctx, KindObject, 0)
	require.NoError(t, err)

	// Simulate the server hanging up: closing our side makes IsShutdown true.
	require.NoError(t, ep.Close(false, nil))
	time.Sleep(20 * time.Millisecond)
	p.Push(KindObject, 0, ep)

	ep2, err := p.Pop(ctx, KindObject, 0)
	require.NoError(t, err)
	require.False(t, ep2.IsShutdown())
	require.EqualValues(t, 2, dialer.connects.Load())
}
