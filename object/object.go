// Package object is the public object-store façade (spec.md §2): it owns
// no transport or batching logic of its own, it only builds batch.Operation
// values against internal/executor/object and runs them through a caller-
// supplied batch.Registry.
package object

import (
	"context"
	"fmt"

	"github.com/arcfabric/storecore/internal/batch"
	"github.com/arcfabric/storecore/internal/distribution"
	execobj "github.com/arcfabric/storecore/internal/executor/object"
)

// Status is the client-visible cached status of an object (spec.md §3).
type Status = execobj.Status

// Metadata is the object metadata record supplement (SPEC_FULL.md §3).
type Metadata = execobj.Metadata

// Object is a client handle to one named, striped object.
type Object struct {
	inner *execobj.Object
}

// Open builds a handle for (namespace, name) striped per dist.
func Open(namespace, name string, dist distribution.Strategy) *Object {
	return &Object{inner: execobj.New(namespace, name, dist)}
}

// Client runs object operations against a Registry carrying a registered
// object.Executor for every object Kind.
type Client struct {
	Registry  *batch.Registry
	Semantics batch.Semantics
}

func NewClient(registry *batch.Registry, sem batch.Semantics) *Client {
	return &Client{Registry: registry, Semantics: sem}
}

// runBatch enqueues every op into one batch and executes it synchronously,
// returning the first reported error if any run failed.
func (c *Client) runBatch(ctx context.Context, ops ...*batch.Operation) error {
	b := batch.New(c.Registry, c.Semantics)
	for _, op := range ops {
		if err := b.Add(op); err != nil {
			return err
		}
	}
	ok, results, err := b.Execute(ctx)
	if err != nil {
		return err
	}
	if !ok {
		for _, r := range results {
			if r.Err != nil {
				return r.Err
			}
		}
		return fmt.Errorf("object: operation failed with no reported error")
	}
	return nil
}

// runSingle enqueues one operation in its own batch and executes it
// synchronously, for the common case of a caller that doesn't need to
// group several operations into one batch/coalescing unit.
func (c *Client) runSingle(ctx context.Context, op *batch.Operation) error {
	return c.runBatch(ctx, op)
}

// Create ensures the object exists on every server it is striped across.
func (c *Client) Create(ctx context.Context, obj *Object) error {
	return c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectCreate, Key: obj.inner,
		Args: execobj.CreateArgs{Obj: obj.inner},
	})
}

// Delete removes the object from every server it is striped across and
// deletes its metadata record (spec.md §4.7: object delete additionally
// deletes the associated metadata record through the metadata backend
// collaborator). The two run as independent operations in the same batch,
// in enqueue order — data first, then metadata — rather than folded into
// one Kind's dispatch, so a caller that sees the data delete succeed and
// the metadata delete fail can retry MetaDelete alone without re-deleting
// data that is already gone (spec.md §9 open question (a)).
func (c *Client) Delete(ctx context.Context, obj *Object) error {
	return c.runBatch(ctx,
		&batch.Operation{Kind: batch.KindObjectDelete, Key: obj.inner, Args: execobj.DeleteArgs{Obj: obj.inner}},
		&batch.Operation{Kind: batch.KindObjectMetaDelete, Key: obj.inner, Args: execobj.MetaDeleteArgs{Obj: obj.inner}},
	)
}

// Write writes data at offset, auto-creating the object on any server it
// has not yet touched. It returns the number of bytes written.
func (c *Client) Write(ctx context.Context, obj *Object, offset uint64, data []byte) (uint64, error) {
	var n uint64
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectWrite, Key: obj.inner,
		Args: execobj.WriteArgs{Obj: obj.inner, Offset: offset, Data: data}, Output: &n,
	})
	return n, err
}

// Read reads length bytes starting at offset.
func (c *Client) Read(ctx context.Context, obj *Object, offset, length uint64) ([]byte, error) {
	var data []byte
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectRead, Key: obj.inner,
		Args: execobj.ReadArgs{Obj: obj.inner, Offset: offset, Length: length}, Output: &data,
	})
	return data, err
}

// Status fetches the object's cached status.
func (c *Client) Status(ctx context.Context, obj *Object) (Status, error) {
	var st Status
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectStatus, Key: obj.inner,
		Args: execobj.StatusArgs{Obj: obj.inner}, Output: &st,
	})
	return st, err
}

// MetaGet fetches the object's metadata record.
func (c *Client) MetaGet(ctx context.Context, obj *Object) (Metadata, error) {
	var md Metadata
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectMetaGet, Key: obj.inner,
		Args: execobj.MetaGetArgs{Obj: obj.inner}, Output: &md,
	})
	return md, err
}

// MetaPut replaces the object's metadata record.
func (c *Client) MetaPut(ctx context.Context, obj *Object, md Metadata) error {
	return c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectMetaPut, Key: obj.inner,
		Args: execobj.MetaPutArgs{Obj: obj.inner, Md: md},
	})
}

// MetaDelete removes the object's metadata record on its own, for a
// caller that needs to retry just the metadata half of Delete (spec.md §9
// open question (a): a data delete that succeeds while its metadata
// delete fails must not roll back data that is already gone — retrying
// MetaDelete alone is the compensating action).
func (c *Client) MetaDelete(ctx context.Context, obj *Object) error {
	return c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindObjectMetaDelete, Key: obj.inner,
		Args: execobj.MetaDeleteArgs{Obj: obj.inner},
	})
}

// Batch starts a new multi-operation batch the caller can Add to directly
// for explicit coalescing/ordering control (spec.md §3).
func (c *Client) Batch() *batch.Batch {
	return batch.New(c.Registry, c.Semantics)
}
