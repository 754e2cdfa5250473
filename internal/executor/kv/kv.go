// Package kv implements the KV data-plane executor: put/get/delete routed
// to one of N_kv servers by a stable hash of the key (spec.md §4.7).
package kv

import "github.com/cespare/xxhash/v2"

// PutArgs/GetArgs/DeleteArgs are the per-operation Args payloads for
// batch.Operation.Args.
type PutArgs struct {
	Namespace string
	Key       string
	Value     []byte
}

type GetArgs struct {
	Namespace string
	Key       string
}

type DeleteArgs struct {
	Namespace string
	Key       string
}

// GetResult is the Output slot filled by a KindKVGet operation.
type GetResult struct {
	Value []byte
	Found bool
}

// Route picks the server index for a key: hash(key) mod N_kv
// (SPEC_FULL.md §4.7). Exported so callers can pre-route without executing.
func Route(key string, servers int) int {
	if servers <= 0 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(servers))
}
