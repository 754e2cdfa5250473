package kv

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/arcfabric/storecore/internal/batch"
	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/pool"
	"github.com/arcfabric/storecore/internal/wire"
)

// Executor implements batch.Executor for the KV Kinds (spec.md §4.7).
type Executor struct {
	Pool    *pool.Pool
	Servers int
	Log     *slog.Logger
}

func (e *Executor) Execute(ctx context.Context, run []*batch.Operation, sem batch.Semantics) []batch.Result {
	results := make([]batch.Result, len(run))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range run {
		i, op := i, op
		g.Go(func() error {
			results[i] = batch.Result{Op: op, Err: e.dispatch(gctx, op, sem)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) dispatch(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	switch op.Kind {
	case batch.KindKVPut:
		return e.doPut(ctx, op, sem)
	case batch.KindKVGet:
		return e.doGet(ctx, op)
	case batch.KindKVDelete:
		return e.doDelete(ctx, op, sem)
	default:
		return fmt.Errorf("kv: unsupported kind %d: %w", op.Kind, errs.Config)
	}
}

func (e *Executor) sendRecv(ctx context.Context, serverIndex int, msg *wire.Message) (*wire.Message, error) {
	ep, err := e.Pool.Pop(ctx, pool.KindKV, serverIndex)
	if err != nil {
		return nil, err
	}
	if err := ep.Send(ctx, msg); err != nil {
		_ = ep.Close(true, nil)
		return nil, err
	}
	reply, err := ep.Receive(ctx)
	if err != nil {
		_ = ep.Close(true, nil)
		return nil, err
	}
	e.Pool.Push(pool.KindKV, serverIndex, ep)
	return reply, nil
}

func (e *Executor) doPut(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(PutArgs)
	if !ok {
		return fmt.Errorf("kv: bad args for put: %w", errs.Config)
	}
	server := Route(args.Key, e.Servers)
	msg := wire.NewRequest(wire.TypeKVPut)
	if sem.RequiresSafetyNetwork() {
		msg.Modifiers = wire.ModifierSafetyNetwork
	}
	msg.AddOperation(encodePut(args.Namespace, args.Key, args.Value))
	reply, err := e.sendRecv(ctx, server, msg)
	if err != nil {
		return err
	}
	return requireReply(reply, wire.TypeKVPut)
}

func (e *Executor) doGet(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(GetArgs)
	if !ok {
		return fmt.Errorf("kv: bad args for get: %w", errs.Config)
	}
	server := Route(args.Key, e.Servers)
	msg := wire.NewRequest(wire.TypeKVGet)
	msg.AddOperation(encodeGet(args.Namespace, args.Key))
	reply, err := e.sendRecv(ctx, server, msg)
	if err != nil {
		return err
	}
	if err := requireReply(reply, wire.TypeKVGet); err != nil {
		return err
	}
	result, err := decodeGetReply(reply.Body)
	if err != nil {
		return err
	}
	if out, ok := op.Output.(*GetResult); ok {
		*out = result
	}
	return nil
}

func (e *Executor) doDelete(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(DeleteArgs)
	if !ok {
		return fmt.Errorf("kv: bad args for delete: %w", errs.Config)
	}
	server := Route(args.Key, e.Servers)
	msg := wire.NewRequest(wire.TypeKVDelete)
	if sem.RequiresSafetyNetwork() {
		msg.Modifiers = wire.ModifierSafetyNetwork
	}
	msg.AddOperation(encodeDelete(args.Namespace, args.Key))
	reply, err := e.sendRecv(ctx, server, msg)
	if err != nil {
		return err
	}
	return requireReply(reply, wire.TypeKVDelete)
}
