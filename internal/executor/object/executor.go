package object

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/arcfabric/storecore/internal/batch"
	"github.com/arcfabric/storecore/internal/distribution"
	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/lockclient"
	"github.com/arcfabric/storecore/internal/pool"
	"github.com/arcfabric/storecore/internal/wire"
)

// replicaSource is implemented by distribution.Replicated; the executor
// races a read across every server a hedge-capable strategy names instead
// of only its primary (SPEC_FULL.md §4.3 supplement).
type replicaSource interface {
	Replicas(distribution.Tuple) []int
}

// Executor implements batch.Executor for every object Kind (spec.md §4.7).
type Executor struct {
	Pool *pool.Pool
	Log  *slog.Logger

	// Lock acquires the per-object range lock doRead/doWrite take before
	// I/O when Semantics.Atomicity != AtomicityNone (spec.md §4.5). A nil
	// Lock disables range locking entirely, for callers that never enable
	// atomicity and have no lock service collaborator configured.
	Lock *lockclient.Client
}

func (e *Executor) Execute(ctx context.Context, run []*batch.Operation, sem batch.Semantics) []batch.Result {
	results := make([]batch.Result, len(run))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range run {
		i, op := i, op
		g.Go(func() error {
			err := e.dispatch(gctx, op, sem)
			results[i] = batch.Result{Op: op, Err: err}
			return nil // per-op errors are carried in results, not propagated
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) dispatch(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	switch op.Kind {
	case batch.KindObjectCreate:
		return e.doCreate(ctx, op)
	case batch.KindObjectDelete:
		return e.doDelete(ctx, op)
	case batch.KindObjectRead:
		return e.doRead(ctx, op, sem)
	case batch.KindObjectWrite:
		return e.doWrite(ctx, op, sem)
	case batch.KindObjectStatus:
		return e.doStatus(ctx, op, sem)
	case batch.KindObjectMetaGet:
		return e.doMetaGet(ctx, op)
	case batch.KindObjectMetaPut:
		return e.doMetaPut(ctx, op)
	case batch.KindObjectMetaDelete:
		return e.doMetaDelete(ctx, op)
	default:
		return fmt.Errorf("object: unsupported kind %d: %w", op.Kind, errs.Config)
	}
}

func (e *Executor) sendRecv(ctx context.Context, serverIndex int, msg *wire.Message) (*wire.Message, error) {
	ep, err := e.Pool.Pop(ctx, pool.KindObject, serverIndex)
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
	e.Pool.Push(pool.KindObject, serverIndex, ep)
	return reply, nil
}

// ensureCreated sends DATA_CREATE with a forced SAFETY_NETWORK modifier the
// first time a server is touched for this object, closing the create race
// of spec.md §9: a write must never reach a server ahead of its create.
func (e *Executor) ensureCreated(ctx context.Context, obj *Object, serverIndex int) error {
	if obj.isCreated(serverIndex) {
		return nil
	}
	msg := wire.NewRequest(wire.TypeDataCreate)
	msg.Modifiers = wire.ModifierSafetyNetwork
	msg.AddOperation(encodeCreate(obj.Namespace, obj.Name))
	reply, err := e.sendRecv(ctx, serverIndex, msg)
	if err != nil {
		return fmt.Errorf("object: create-before-write on server %d: %w", serverIndex, err)
	}
	if err := requireReply(reply, wire.TypeDataCreate); err != nil {
		return err
	}
	obj.markCreated(serverIndex)
	return nil
}

func (e *Executor) doCreate(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(CreateArgs)
	if !ok {
		return fmt.Errorf("object: bad args for create: %w", errs.Config)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < args.Obj.Dist.NumServers(); i++ {
		i := i
		g.Go(func() error { return e.ensureCreated(gctx, args.Obj, i) })
	}
	return g.Wait()
}

func (e *Executor) doDelete(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(DeleteArgs)
	if !ok {
		return fmt.Errorf("object: bad args for delete: %w", errs.Config)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < args.Obj.Dist.NumServers(); i++ {
		i := i
		g.Go(func() error {
			msg := wire.NewRequest(wire.TypeDataDelete)
			msg.Modifiers = wire.ModifierSafetyNetwork
			msg.AddOperation(encodeDelete(args.Obj.Namespace, args.Obj.Name))
			reply, err := e.sendRecv(gctx, i, msg)
			if err != nil {
				return err
			}
			if err := requireReply(reply, wire.TypeDataDelete); err != nil {
				return err
			}
			args.Obj.created[i].Store(false)
			return nil
		})
	}
	return g.Wait()
}

// lockKeyFor builds the range-lock key covering every block ID an
// operation touches, mirroring
// original_source/client/object/jobject.c's `j_lock_new("item", path)` +
// `j_lock_add(lock, block_id)` per distributed sub-range.
func lockKeyFor(obj *Object, blockIDs []uint64) lockclient.Key {
	return lockclient.Key{Kind: "item", Path: obj.Namespace + "/" + obj.Name, BlockIDs: blockIDs}
}

// acquireRange takes the per-object range lock covering blockIDs when
// Semantics.Atomicity demands it (spec.md §4.5): acquired before any
// server I/O is issued, released once that I/O completes and before the
// operation's output slot is written, the same lock-then-fan-out-then-
// release order as `j_object_read_exec`/`j_object_write_exec`. Locking is
// a no-op when e.Lock is nil (no lock service collaborator configured) or
// when sem.Atomicity is AtomicityNone.
func (e *Executor) acquireRange(ctx context.Context, sem batch.Semantics, obj *Object, blockIDs []uint64) (func(), error) {
	if e.Lock == nil || sem.Atomicity == batch.AtomicityNone || len(blockIDs) == 0 {
		return func() {}, nil
	}
	lease, err := e.Lock.Acquire(ctx, lockKeyFor(obj, blockIDs))
	if err != nil {
		return nil, fmt.Errorf("object: acquire range lock: %w", err)
	}
	return lease.Release, nil
}

func (e *Executor) doWrite(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(WriteArgs)
	if !ok {
		return fmt.Errorf("object: bad args for write: %w", errs.Config)
	}

	type writeTask struct {
		t   distribution.Tuple
		sub []byte
	}
	var tasks []writeTask
	var blockIDs []uint64
	it := args.Obj.Dist.Iterator(uint64(len(args.Data)), args.Offset)
	cursor := uint64(0)
	for {
		t, more := it.Next()
		if !more {
			break
		}
		sub := args.Data[cursor : cursor+t.SubLength]
		cursor += t.SubLength
		tasks = append(tasks, writeTask{t: t, sub: sub})
		blockIDs = append(blockIDs, t.BlockID)
	}

	release, err := e.acquireRange(ctx, sem, args.Obj, blockIDs)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	var total atomic.Uint64
	for _, tk := range tasks {
		tk := tk
		g.Go(func() error {
			if err := e.ensureCreated(gctx, args.Obj, tk.t.ServerIndex); err != nil {
				return err
			}
			msg := wire.NewRequest(wire.TypeDataWrite)
			if sem.RequiresSafetyNetwork() {
				msg.Modifiers = wire.ModifierSafetyNetwork
			}
			msg.AddOperation(encodeWrite(args.Obj.Namespace, args.Obj.Name, serverOffset(args.Obj.Dist, tk.t), tk.sub))
			reply, err := e.sendRecv(gctx, tk.t.ServerIndex, msg)
			if err != nil {
				return err
			}
			if err := requireReply(reply, wire.TypeDataWrite); err != nil {
				return err
			}
			n, err := decodeWriteReply(reply.Body)
			if err != nil {
				return err
			}
			total.Add(n)
			return nil
		})
	}
	err = g.Wait()
	release()
	if err != nil {
		return err
	}
	if out, ok := op.Output.(*uint64); ok {
		*out = total.Load()
	}
	return nil
}

func (e *Executor) doRead(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(ReadArgs)
	if !ok {
		return fmt.Errorf("object: bad args for read: %w", errs.Config)
	}

	out := make([]byte, args.Length)
	it := args.Obj.Dist.Iterator(args.Length, args.Offset)

	type task struct {
		pos uint64
		t   distribution.Tuple
	}
	var tasks []task
	var blockIDs []uint64
	cursor := uint64(0)
	for {
		t, more := it.Next()
		if !more {
			break
		}
		tasks = append(tasks, task{pos: cursor, t: t})
		blockIDs = append(blockIDs, t.BlockID)
		cursor += t.SubLength
	}

	release, err := e.acquireRange(ctx, sem, args.Obj, blockIDs)
	if err != nil {
		return err
	}

	hedge, _ := args.Obj.Dist.(replicaSource)

	g, gctx := errgroup.WithContext(ctx)
	for _, tk := range tasks {
		tk := tk
		g.Go(func() error {
			servers := []int{tk.t.ServerIndex}
			if hedge != nil {
				servers = hedge.Replicas(tk.t)
			}
			data, err := e.readFromAny(gctx, args.Obj, tk.t, servers)
			if err != nil {
				return err
			}
			copy(out[tk.pos:], data)
			return nil
		})
	}
	err = g.Wait()
	release()
	if err != nil {
		return err
	}
	if outPtr, ok := op.Output.(*[]byte); ok {
		*outPtr = out
	}
	return nil
}

// readFromAny races a read against every candidate server, returning the
// first successful reply (SPEC_FULL.md §4.3's replicated read hedge).
func (e *Executor) readFromAny(ctx context.Context, obj *Object, t distribution.Tuple, servers []int) ([]byte, error) {
	if len(servers) == 1 {
		return e.readOne(ctx, obj, servers[0], t)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		data []byte
		err  error
	}
	results := make(chan outcome, len(servers))
	for _, s := range servers {
		s := s
		go func() {
			data, err := e.readOne(raceCtx, obj, s, t)
			results <- outcome{data: data, err: err}
		}()
	}

	var lastErr error
	for range servers {
		res := <-results
		if res.err == nil {
			return res.data, nil
		}
		lastErr = res.err
	}
	return nil, lastErr
}

// serverOffset is the byte position of t inside the server's own copy of
// the object. A round-robin server stores its blocks back to back, so
// block b lands at (b / N) * BlockSize on server b mod N; other strategies
// use t.SubOffset as is.
func serverOffset(dist distribution.Strategy, t distribution.Tuple) uint64 {
	if r, ok := dist.(*distribution.Replicated); ok {
		dist = r.Base
	}
	if rr, ok := dist.(*distribution.RoundRobin); ok {
		return t.BlockID/uint64(rr.Servers)*rr.BlockSize + t.SubOffset
	}
	return t.SubOffset
}

func (e *Executor) readOne(ctx context.Context, obj *Object, serverIndex int, t distribution.Tuple) ([]byte, error) {
	msg := wire.NewRequest(wire.TypeDataRead)
	msg.AddOperation(encodeRead(obj.Namespace, obj.Name, serverOffset(obj.Dist, t), t.SubLength))
	reply, err := e.sendRecv(ctx, serverIndex, msg)
	if err != nil {
		return nil, err
	}
	if err := requireReply(reply, wire.TypeDataRead); err != nil {
		return nil, err
	}
	return decodeReadReply(reply.Body)
}

// doStatus implements spec.md §4.7's status branching contract: a fresh
// cache entry short-circuits the request outright (unless Consistency
// forces a re-fetch); concurrency=none trusts a single primary-server
// read; anything else fans DATA_STATUS out to every server and folds the
// replies into one summed Status.
func (e *Executor) doStatus(ctx context.Context, op *batch.Operation, sem batch.Semantics) error {
	args, ok := op.Args.(StatusArgs)
	if !ok {
		return fmt.Errorf("object: bad args for status: %w", errs.Config)
	}
	obj := args.Obj

	if sem.Consistency != batch.ConsistencyImmediate {
		if st, fresh := obj.freshStatus(); fresh {
			if out, ok := op.Output.(*Status); ok {
				*out = st
			}
			return nil
		}
	}

	var st Status
	var err error
	if sem.Concurrency == batch.ConcurrencyNone {
		st, err = e.statusFromPrimary(ctx, obj)
	} else {
		st, err = e.statusFanout(ctx, obj)
	}
	if err != nil {
		return err
	}

	obj.setCachedStatus(st)
	if out, ok := op.Output.(*Status); ok {
		*out = st
	}
	return nil
}

// statusFromPrimary is the single-metadata-read branch: the object's
// logical size is the primary server's own bookkeeping, not a sum of
// stripes.
func (e *Executor) statusFromPrimary(ctx context.Context, obj *Object) (Status, error) {
	msg := wire.NewRequest(wire.TypeDataStatus)
	msg.AddOperation(encodeStatus(obj.Namespace, obj.Name))
	reply, err := e.sendRecv(ctx, 0, msg)
	if err != nil {
		return Status{}, err
	}
	if err := requireReply(reply, wire.TypeDataStatus); err != nil {
		return Status{}, err
	}
	return decodeStatusReply(reply.Body)
}

// statusFanout issues DATA_STATUS to every server the object is striped
// across and folds the replies into one Status: summed size, latest
// modification time.
func (e *Executor) statusFanout(ctx context.Context, obj *Object) (Status, error) {
	n := obj.Dist.NumServers()
	statuses := make([]Status, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			msg := wire.NewRequest(wire.TypeDataStatus)
			msg.AddOperation(encodeStatus(obj.Namespace, obj.Name))
			reply, err := e.sendRecv(gctx, i, msg)
			if err != nil {
				return err
			}
			if err := requireReply(reply, wire.TypeDataStatus); err != nil {
				return err
			}
			st, err := decodeStatusReply(reply.Body)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Status{}, err
	}

	var total Status
	for _, st := range statuses {
		total.Size += st.Size
		if st.ModificationTime > total.ModificationTime {
			total.ModificationTime = st.ModificationTime
		}
	}
	return total, nil
}

// doMetaGet fetches the object's metadata record from its primary server,
// the same "bookkeeping, not striped data" placement as Status.
func (e *Executor) doMetaGet(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(MetaGetArgs)
	if !ok {
		return fmt.Errorf("object: bad args for meta get: %w", errs.Config)
	}
	msg := wire.NewRequest(wire.TypeMetaGet)
	msg.AddOperation(encodeMetaGet(args.Obj.Namespace, args.Obj.Name))
	reply, err := e.sendRecv(ctx, 0, msg)
	if err != nil {
		return err
	}
	if err := requireReply(reply, wire.TypeMetaGet); err != nil {
		return err
	}
	md, err := decodeMetaGetReply(reply.Body)
	if err != nil {
		return err
	}
	if out, ok := op.Output.(*Metadata); ok {
		*out = md
	}
	return nil
}

func (e *Executor) doMetaPut(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(MetaPutArgs)
	if !ok {
		return fmt.Errorf("object: bad args for meta put: %w", errs.Config)
	}
	msg := wire.NewRequest(wire.TypeMetaPut)
	msg.Modifiers = wire.ModifierSafetyNetwork
	msg.AddOperation(encodeMetaPut(args.Obj.Namespace, args.Obj.Name, args.Md))
	reply, err := e.sendRecv(ctx, 0, msg)
	if err != nil {
		return err
	}
	return requireReply(reply, wire.TypeMetaPut)
}

// doMetaDelete removes the metadata record. Open question (a) from
// spec.md §9: the source's data-delete and metadata-delete paths can
// split (data gone, metadata left behind) without anyone observing it.
// SPEC_FULL resolves this by making metadata deletion idempotent and
// independently retryable — a caller that sees doDelete succeed and a
// subsequent doMetaDelete fail can retry doMetaDelete alone; it is never
// bundled into doDelete's own server loop. The object façade's Delete
// enqueues this Kind right after KindObjectDelete in the same batch so a
// single Delete call achieves spec.md §4.7's documented "deletes data and
// metadata" behavior, while the two remain separately retryable.
func (e *Executor) doMetaDelete(ctx context.Context, op *batch.Operation) error {
	args, ok := op.Args.(MetaDeleteArgs)
	if !ok {
		return fmt.Errorf("object: bad args for meta delete: %w", errs.Config)
	}
	msg := wire.NewRequest(wire.TypeMetaDelete)
	msg.Modifiers = wire.ModifierSafetyNetwork
	msg.AddOperation(encodeMetaDelete(args.Obj.Namespace, args.Obj.Name))
	reply, err := e.sendRecv(ctx, 0, msg)
	if err != nil {
		return err
	}
	return requireReply(reply, wire.TypeMetaDelete)
}
