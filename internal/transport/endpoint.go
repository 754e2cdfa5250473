package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/wire"
)

// Endpoint owns one connection: a transmit path serialized behind a mutex
// (standing in for the transmit completion queue of spec.md §4.1, since Go
// gives us a blocking write instead of a separate CQ to poll), a receive
// completion queue fed by a dedicated reader goroutine, and an event queue
// the reader goroutine uses to surface a shutdown/error out of band.
type Endpoint struct {
	conn   net.Conn
	reader *bufio.Reader

	domain *Domain
	domreg *DomainRegistry

	sendMu sync.Mutex

	completions chan *wire.Message
	events      chan Event

	shutdown atomic.Bool
	state    *stateBox

	readErr   error
	readErrMu sync.Mutex

	closeOnce sync.Once
}

// New wraps an already-connected conn. It starts the endpoint in Ready with
// the reader goroutine live; neither New nor Dial passes through the Idle or
// Connecting states.
func New(conn net.Conn, domain *Domain, domreg *DomainRegistry) *Endpoint {
	e := &Endpoint{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		domain:      domain,
		domreg:      domreg,
		completions: make(chan *wire.Message, 16),
		events:      make(chan Event, 4),
		state:       newStateBox(StateReady),
	}
	go e.readLoop()
	return e
}

// Dial resolves nothing itself — the pool is responsible for address
// resolution (spec.md §4.2); Dial just opens one connection and builds the
// Endpoint around it, acquiring a ref on the shared protection domain.
func Dial(ctx context.Context, dialer Dialer, domreg *DomainRegistry, network, address string) (*Endpoint, error) {
	conn, err := dialer.Dial(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, errs.Wrap(errs.KindTransport, err.Error(), errs.Transport))
	}
	domain := domreg.Acquire(network, address)
	return New(conn, domain, domreg), nil
}

func (e *Endpoint) readLoop() {
	hdr := make([]byte, wire.HeaderLen)
	for {
		if _, err := io.ReadFull(e.reader, hdr); err != nil {
			e.onReadError(err)
			return
		}
		msg, bodyLen, err := wire.DecodeHeader(hdr)
		if err != nil {
			e.onReadError(err)
			return
		}
		if bodyLen > 0 {
			body := make([]byte, bodyLen)
			if _, err := io.ReadFull(e.reader, body); err != nil {
				e.onReadError(err)
				return
			}
			msg.Body = body
		}
		select {
		case e.completions <- msg:
		default:
			// Completion queue saturated: drop to the back rather than block
			// the reader forever; a well-behaved caller drains via Receive.
			<-e.completions
			e.completions <- msg
		}
	}
}

func (e *Endpoint) onReadError(err error) {
	e.readErrMu.Lock()
	e.readErr = err
	e.readErrMu.Unlock()

	e.shutdown.Store(true)
	e.state.force(StateShuttingDown)

	kind := EventShutdown
	if err != io.EOF {
		kind = EventError
	}
	select {
	case e.events <- Event{Kind: kind, Err: err}:
	default:
	}
	close(e.completions)
}

// Send transmits a framed message and blocks until it is fully written (the
// stand-in for "blocks until a transmit completion arrives"); it returns an
// error if the peer has already shut down.
func (e *Endpoint) Send(ctx context.Context, msg *wire.Message) error {
	if e.IsShutdown() {
		return fmt.Errorf("transport: send on shut-down endpoint: %w", errs.Transport)
	}

	done := make(chan error, 1)
	go func() {
		e.sendMu.Lock()
		defer e.sendMu.Unlock()
		_, err := e.conn.Write(msg.Encode())
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("transport: send: %w", errs.Wrap(errs.KindTransport, err.Error(), errs.Transport))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport: send: %w", errs.Wrap(errs.KindTransport, ctx.Err().Error(), errs.Transport))
	}
}

// Receive awaits the next reply frame of known maximum size (size enforced
// upstream by the codec's body-length field, not here).
func (e *Endpoint) Receive(ctx context.Context) (*wire.Message, error) {
	select {
	case msg, ok := <-e.completions:
		if !ok {
			e.readErrMu.Lock()
			err := e.readErr
			e.readErrMu.Unlock()
			if err == nil || err == io.EOF {
				return nil, fmt.Errorf("transport: receive: peer shut down: %w", errs.Transport)
			}
			return nil, fmt.Errorf("transport: receive: %w", errs.Wrap(errs.KindTransport, err.Error(), errs.Transport))
		}
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("transport: receive: %w", errs.Wrap(errs.KindTransport, ctx.Err().Error(), errs.Transport))
	}
}

// IsShutdown is a non-blocking probe of whether a shutdown event has been
// observed by the reader goroutine.
func (e *Endpoint) IsShutdown() bool {
	return e.shutdown.Load()
}

// Events exposes the event queue for callers (e.g. the pool) that want to
// react to an asynchronous shutdown rather than only discovering it on the
// next failed Send/Receive.
func (e *Endpoint) Events() <-chan Event { return e.events }

// Close releases the endpoint. If sendShutdown is set, it first writes the
// optional final message (the "wake-up" send of spec.md §4.1) before
// tearing the connection down, then unrefs the shared protection domain.
func (e *Endpoint) Close(sendShutdown bool, final *wire.Message) error {
	var err error
	e.closeOnce.Do(func() {
		if sendShutdown && !e.IsShutdown() {
			if final != nil {
				// Best-effort: the peer may already be gone.
				_ = e.Send(context.Background(), final)
			}
		}
		e.state.force(StateClosed)
		err = e.conn.Close()
		if e.domreg != nil && e.domain != nil {
			e.domreg.Release(e.domain)
		}
	})
	return err
}

func (e *Endpoint) State() State { return e.state.load() }
