package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/arcfabric/storecore/internal/wire"
	"github.com/stretchr/testify/require"
)

func pipeEndpoints(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	c1, c2 := net.Pipe()
	reg := NewDomainRegistry()
	d := reg.Acquire("pipe", "test")
	e1 := New(c1, d, reg)
	e2 := New(c2, d, reg)
	t.Cleanup(func() {
		_ = e1.Close(false, nil)
		_ = e2.Close(false, nil)
	})
	return e1, e2
}

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := pipeEndpoints(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		msg := wire.NewRequest(wire.TypePing)
		errCh <- client.Send(ctx, msg)
	}()

	got, err := server.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.TypePing, got.Type)
	require.NoError(t, <-errCh)
}

func TestIsShutdownAfterPeerCloses(t *testing.T) {
	client, server := pipeEndpoints(t)

	require.False(t, client.IsShutdown())
	require.NoError(t, server.Close(false, nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := client.Receive(ctx)
	require.Error(t, err)
	require.True(t, client.IsShutdown())
}

func TestStateTransitionsToClosed(t *testing.T) {
	client, _ := pipeEndpoints(t)
	require.Equal(t, StateReady, client.State())
	require.NoError(t, client.Close(false, nil))
	require.Equal(t, StateClosed, client.State())
}
