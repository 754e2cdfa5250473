// Package db implements the DB data-plane executor: insert/update/delete/
// iterate against a namespace-scoped schema store, routed to one of N_db
// servers by a hash of the namespace (spec.md §4.7).
package db

import "github.com/cespare/xxhash/v2"

// FieldType enumerates the DB schema field kinds (SPEC_FULL.md §3 supplement,
// grounded on original_source/benchmark/db/entry.c's fixed type set).
type FieldType int

const (
	FieldString FieldType = iota
	FieldBlob
	FieldUint32
	FieldUint64
	FieldFloat32
	FieldFloat64
)

// Predicate is one (field, operator, value) selector term (spec.md §4.7).
type Predicate struct {
	Field    string
	Operator string
	Value    any
}

// Entry is one DB row.
type Entry map[string]any

// InsertArgs/UpdateArgs/DeleteArgs/IterateArgs are the per-operation Args
// payloads for batch.Operation.Args.
type InsertArgs struct {
	Namespace  string
	SchemaName string
	Entry      Entry
}

type UpdateArgs struct {
	Namespace  string
	SchemaName string
	Selector   []Predicate
	Fields     Entry
}

type DeleteArgs struct {
	Namespace  string
	SchemaName string
	Selector   []Predicate
}

type IterateArgs struct {
	Namespace  string
	SchemaName string
	Selector   []Predicate
}

// Route picks the DB server index for a namespace: hash(namespace) mod
// N_db, the same shape as the KV key router (spec.md §4.7).
func Route(namespace string, servers int) int {
	if servers <= 0 {
		return 0
	}
	return int(xxhash.Sum64String(namespace) % uint64(servers))
}
