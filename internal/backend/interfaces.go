// Package backend declares the collaborator interfaces the core consumes
// from the concrete storage backends (spec.md §6). The backends themselves
// — a durable object store, an embedded KV store, a SQL-backed metadata
// store — are out of scope (spec.md §1); only these call shapes are.
package backend

import "context"

// ObjectStatus mirrors the cached status fields of spec.md §3.
type ObjectStatus struct {
	Size             uint64
	ModificationTime int64
}

// Metadata is the object metadata record supplement of SPEC_FULL.md §3.
type Metadata struct {
	CreatedAt int64
	Tags      map[string]string
}

// DataBackend is the per-server object storage collaborator.
type DataBackend interface {
	Create(ctx context.Context, namespace, name string) error
	Open(ctx context.Context, namespace, name string) error
	Close(ctx context.Context, namespace, name string) error
	Delete(ctx context.Context, namespace, name string) error
	Read(ctx context.Context, namespace, name string, offset, length uint64) ([]byte, error)
	Write(ctx context.Context, namespace, name string, offset uint64, data []byte) (uint64, error)
	Status(ctx context.Context, namespace, name string) (ObjectStatus, error)
	Sync(ctx context.Context) error

	MetaGet(ctx context.Context, namespace, name string) (Metadata, error)
	MetaPut(ctx context.Context, namespace, name string, md Metadata) error
	MetaDelete(ctx context.Context, namespace, name string) error
}

// KvBackend is the per-server KV storage collaborator, namespace-scoped.
type KvBackend interface {
	Put(ctx context.Context, namespace, key string, value []byte) error
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Delete(ctx context.Context, namespace, key string) error
	Iterate(ctx context.Context, namespace string, fn func(key string, value []byte) bool) error
}

// Predicate is one (field, operator, value) selector term (spec.md §4.7).
type Predicate struct {
	Field    string
	Operator string
	Value    any
}

// Entry is one DB row, keyed implicitly by its selector.
type Entry map[string]any

// DbBackend is the per-namespace DB storage collaborator.
type DbBackend interface {
	SchemaCreate(ctx context.Context, namespace, schemaName string, fields map[string]string) error
	SchemaDrop(ctx context.Context, namespace, schemaName string) error

	Insert(ctx context.Context, namespace, schemaName string, entry Entry) error
	Update(ctx context.Context, namespace, schemaName string, selector []Predicate, fields Entry) (int, error)
	Delete(ctx context.Context, namespace, schemaName string, selector []Predicate) (int, error)

	IteratorNew(ctx context.Context, namespace, schemaName string, selector []Predicate) (cursor string, err error)
	IteratorNext(ctx context.Context, cursor string) (Entry, bool, error)
	IteratorRelease(ctx context.Context, cursor string) error

	BatchStart(ctx context.Context) (txn string, err error)
	BatchExecute(ctx context.Context, txn string) error
}
