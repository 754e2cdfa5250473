// Package kv is the public KV-store façade (spec.md §2): a thin typed
// wrapper over internal/executor/kv's put/get/delete operations.
package kv

import (
	"context"
	"fmt"

	"github.com/arcfabric/storecore/internal/batch"
	execkv "github.com/arcfabric/storecore/internal/executor/kv"
)

// Client runs KV operations against a Registry carrying a registered
// kv.Executor for every KV Kind.
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
		return fmt.Errorf("kv: operation failed with no reported error")
	}
	return nil
}

// Put stores value under (namespace, key).
func (c *Client) Put(ctx context.Context, namespace, key string, value []byte) error {
	return c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindKVPut,
		Args: execkv.PutArgs{Namespace: namespace, Key: key, Value: value},
	})
}

// Get fetches the value under (namespace, key); found is false on a miss.
func (c *Client) Get(ctx context.Context, namespace, key string) (value []byte, found bool, err error) {
	var result execkv.GetResult
	err = c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindKVGet,
		Args: execkv.GetArgs{Namespace: namespace, Key: key}, Output: &result,
	})
	return result.Value, result.Found, err
}

// Delete removes (namespace, key); deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, namespace, key string) error {
	return c.runSingle(ctx, &batch.Operation{
		Kind: batch.KindKVDelete,
		Args: execkv.DeleteArgs{Namespace: namespace, Key: key},
	})
}

// Batch starts a new multi-operation batch for explicit coalescing control.
func (c *Client) Batch() *batch.Batch {
	return batch.New(c.Registry, c.Semantics)
}
