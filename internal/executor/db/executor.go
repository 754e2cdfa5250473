package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/arcfabric/storecore/internal/batch"
	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/pool"
	"github.com/arcfabric/storecore/internal/wire"
)

// Executor implements batch.Executor for the DB Kinds (spec.md §4.7).
type Executor struct {
	Pool    *pool.Pool
	Servers int
	Log     *slog.Logger

	// cache short-circuits a redundant DB_ITERATE open for a selector this
	// executor has already fully materialized (SPEC_FULL.md §4.7 supplement,
	// grounded on original_source/benchmark/db/iterator.c).
	cache *lru.Cache[string, []Entry]
}

// NewExecutor builds an Executor with a cursor-result cache of the given
// capacity (0 disables caching).
func NewExecutor(p *pool.Pool, servers int, log *slog.Logger, cacheSize int) *Executor {
	e := &Executor{Pool: p, Servers: servers, Log: log}
	if cacheSize > 0 {
		c, _ := lru.New[string, []Entry](cacheSize)
		e.cache = c
	}
	return e
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
	case batch.KindDBInsert:
		return e.doInsert(ctx, op, sem)
	case batch.KindDBUpdate:
		return e.doUpdate(ctx, op, sem)
	case batch.KindDBDelete:
		return e.doDelete(ctx, op, sem)
	case batch.KindDBIterate:
		return e.doIterate(ctx, op)
	default:
		return fmt.Errorf("db: unsupported kind %d: %w", op.Kind, errs.Config)
	}
}

func (e *Executor) sendRecv(ctx context.Context, serverIndex int, msg *wire.Message) (*wire.Message, error) {
	ep, err := e.Pool.Pop(ctx, pool.KindDB, serverIndex)
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
	e.Pool.Push(pool.KindDB, serverIndex, ep)
	return reply, nil
}

func (e *Executor) doInsert(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(InsertArgs)
	if !ok {
		return fmt.Errorf("db: bad args for insert: %w", errs.Config)
	}
	body, err := encodeInsert(args.Namespace, args.SchemaName, args.Entry)
	if err != nil {
		return err
	}
	msg := wire.NewRequest(wire.TypeDBInsert)
	if sem.RequiresSafetyNetwork() {
		msg.Modifiers = wire.ModifierSafetyNetwork
	}
	msg.AddOperation(body)
	reply, err := e.sendRecv(ctx, Route(args.Namespace, e.Servers), msg)
	if err != nil {
		return err
	}
	return requireReply(reply, wire.TypeDBInsert)
}

func (e *Executor) doUpdate(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(UpdateArgs)
	if !ok {
		return fmt.Errorf("db: bad args for update: %w", errs.Config)
	}
	body, err := encodeUpdate(args.Namespace, args.SchemaName, args.Selector, args.Fields)
	if err != nil {
		return err
	}
	msg := wire.NewRequest(wire.TypeDBUpdate)
	if sem.RequiresSafetyNetwork() {
		msg.Modifiers = wire.ModifierSafetyNetwork
	}
	msg.AddOperation(body)
	reply, err := e.sendRecv(ctx, Route(args.Namespace, e.Servers), msg)
	if err != nil {
		return err
	}
	if err := requireReply(reply, wire.TypeDBUpdate); err != nil {
		return err
	}
	if out, ok := op.Output.(*int); ok {
		n, err := wire.NewReader(reply.Body).GetU32()
		if err != nil {
			return err
		}
		*out = int(n)
	}
	return nil
}

func (e *Executor) doDelete(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(DeleteArgs)
	if !ok {
		return fmt.Errorf("db: bad args for delete: %w", errs.Config)
	}
	body, err := encodeDelete(args.Namespace, args.SchemaName, args.Selector)
	if err != nil {
		return err
	}
	msg := wire.NewRequest(wire.TypeDBDelete)
	if sem.RequiresSafetyNetwork() {
		msg.Modifiers = wire.ModifierSafetyNetwork
	}
	msg.AddOperation(body)
	reply, err := e.sendRecv(ctx, Route(args.Namespace, e.Servers), msg)
	if err != nil {
		return err
	}
	if err := requireReply(reply, wire.TypeDBDelete); err != nil {
		return err
	}
	if out, ok := op.Output.(*int); ok {
		n, err := wire.NewReader(reply.Body).GetU32()
		if err != nil {
			return err
		}
		*out = int(n)
	}
	return nil
}

func selectorKey(namespace, schemaName string, selector []Predicate) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte('/')
	b.WriteString(schemaName)
	for _, p := range selector {
		fmt.Fprintf(&b, "|%s%s%v", p.Field, p.Operator, p.Value)
	}
	return b.String()
}

func (e *Executor) doIterate(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(IterateArgs)
	if !ok {
		return fmt.Errorf("db: bad args for iterate: %w", errs.Config)
	}

	key := selectorKey(args.Namespace, args.SchemaName, args.Selector)
	if e.cache != nil {
		if cached, hit := e.cache.Get(key); hit {
			if out, ok := op.Output.(*[]Entry); ok {
				*out = cached
			}
			return nil
		}
	}

	server := Route(args.Namespace, e.Servers)

	openBody, err := encodeIterateOpen(args.Namespace, args.SchemaName, args.Selector)
	if err != nil {
		return err
	}
	openMsg := wire.NewRequest(wire.TypeDBIterate)
	openMsg.AddOperation(openBody)
	reply, err := e.sendRecv(ctx, server, openMsg)
	if err != nil {
		return err
	}
	if err := requireReply(reply, wire.TypeDBIterate); err != nil {
		return err
	}
	cursor, err := decodeIterateOpenReply(reply.Body)
	if err != nil {
		return err
	}

	var entries []Entry
	for {
		nextMsg := wire.NewRequest(wire.TypeDBIterate)
		nextMsg.AddOperation(encodeIterateNext(cursor))
		reply, err := e.sendRecv(ctx, server, nextMsg)
		if err != nil {
			return err
		}
		if err := requireReply(reply, wire.TypeDBIterate); err != nil {
			return err
		}
		entry, found, err := decodeIterateNextReply(reply.Body)
		if err != nil {
			return err
		}
		if !found {
			break
		}
		entries = append(entries, entry)
	}

	releaseMsg := wire.NewRequest(wire.TypeDBIterate)
	releaseMsg.AddOperation(encodeIterateRelease(cursor))
	if _, err := e.sendRecv(ctx, server, releaseMsg); err != nil {
		return err
	}

	if e.cache != nil {
		e.cache.Add(key, entries)
	}
	if out, ok := op.Output.(*[]Entry); ok {
		*out = entries
	}
	return nil
}
