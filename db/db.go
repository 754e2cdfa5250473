// Package db is the public DB-store façade (spec.md §2): a thin typed
// wrapper over internal/executor/db's insert/update/delete/iterate
// operations.
package db

import (
	"context"
	"fmt"

	"github.com/arcfabric/storecore/internal/batch"
	execdb "github.com/arcfabric/storecore/internal/executor/db"
)

// FieldType, Predicate, and Entry re-export the executor's wire-agnostic
// shapes so callers never import internal/executor/db directly.
type FieldType = execdb.FieldType
type Predicate = execdb.Predicate
type Entry = execdb.Entry

const (
	FieldString  = execdb.FieldString
	FieldBlob    = execdb.FieldBlob
	FieldUint32  = execdb.FieldUint32
	FieldUint64  = execdb.FieldUint64
	FieldFloat32 = execdb.FieldFloat32
	FieldFloat64 = execdb.FieldFloat64
)

// Client runs DB operations against a Registry carrying a registered
// db.Executor for every DB Kind.
type Client struct {
	Registry  *batch.Registry
	Semantics batch.Semantics
}

func NewClient(registry *batch.Registry, sem batch.Semantics) *Client {
	return &Client{Registry: registry, Semantics: sem}
}

func (c *Client) runSingle(ctx context.Context, op *batch.Operation) error {
	b := batch.New(c.Registry, c.Semantics)
	if err := b.Add(op); err != nil {
		return err
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
		return fmt.Errorf("db: operation failed with no reported error")
	}
	return nil
}

// Insert adds one row to (namespace, schemaName).
func (c *Client) Insert(ctx context.Context, namespace, schemaName string, entry Entry) error {
	return c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindDBInsert,
		Args: execdb.InsertArgs{Namespace: namespace, SchemaName: schemaName, Entry: entry},
	})
}

// Update applies fields to every row matching selector, returning the
// number of rows updated.
func (c *Client) Update(ctx context.Context, namespace, schemaName string, selector []Predicate, fields Entry) (int, error) {
	var n int
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindDBUpdate,
		Args: execdb.UpdateArgs{Namespace: namespace, SchemaName: schemaName, Selector: selector, Fields: fields},
		Output: &n,
	})
	return n, err
}

// Delete removes every row matching selector, returning the number deleted.
func (c *Client) Delete(ctx context.Context, namespace, schemaName string, selector []Predicate) (int, error) {
	var n int
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindDBDelete,
		Args: execdb.DeleteArgs{Namespace: namespace, SchemaName: schemaName, Selector: selector},
		Output: &n,
	})
	return n, err
}

// Iterate materializes every row matching selector.
func (c *Client) Iterate(ctx context.Context, namespace, schemaName string, selector []Predicate) ([]Entry, error) {
	var entries []Entry
	err := c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindDBIterate,
		Args: execdb.IterateArgs{Namespace: namespace, SchemaName: schemaName, Selector: selector},
		Output: &entries,
	})
	return entries, err
}

// Batch starts a new multi-operation batch for explicit coalescing control.
func (c *Client) Batch() *batch.Batch {
	return batch.New(c.Registry, c.Semantics)
}
