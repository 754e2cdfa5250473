package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcfabric/storecore/internal/errs"
)

// MemoryData is an in-memory DataBackend used only by tests, to exercise
// the executors without a real object-store server.
type MemoryData struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]Metadata
}

func NewMemoryData() *MemoryData {
	return &MemoryData{objects: make(map[string][]byte), meta: make(map[string]Metadata)}
}

func objKey(namespace, name string) string { return namespace + "/" + name }

func (m *MemoryData) Create(ctx context.Context, namespace, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objKey(namespace, name)
	if _, ok := m.objects[key]; !ok {
		m.objects[key] = []byte{}
		m.meta[key] = Metadata{CreatedAt: time.Now().Unix(), Tags: map[string]string{}}
	}
	return nil
}

func (m *MemoryData) Open(ctx context.Context, namespace, name string) error  { return nil }
func (m *MemoryData) Close(ctx context.Context, namespace, name string) error { return nil }

func (m *MemoryData) Delete(ctx context.Context, namespace, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objKey(namespace, name)
	delete(m.objects, key)
	delete(m.meta, key)
	return nil
}

func (m *MemoryData) Read(ctx context.Context, namespace, name string, offset, length uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objKey(namespace, name)]
	if !ok {
		return nil, fmt.Errorf("backend: object %s/%s: %w", namespace, name, errs.NotFound)
	}
	if offset >= uint64(len(data)) {
		return nil, nil
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (m *MemoryData) Write(ctx context.Context, namespace, name string, offset uint64, data []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objKey(namespace, name)
	cur, ok := m.objects[key]
	if !ok {
		return 0, fmt.Errorf("backend: object %s/%s not created: %w", namespace, name, errs.NotFound)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(cur)) {
		grown := make([]byte, end)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:end], data)
	m.objects[key] = cur
	return uint64(len(data)), nil
}

func (m *MemoryData) Status(ctx context.Context, namespace, name string) (ObjectStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objKey(namespace, name)]
	if !ok {
		return ObjectStatus{}, fmt.Errorf("backend: object %s/%s: %w", namespace, name, errs.NotFound)
	}
	return ObjectStatus{Size: uint64(len(data)), ModificationTime: time.Now().Unix()}, nil
}

func (m *MemoryData) Sync(ctx context.Context) error { return nil }

func (m *MemoryData) MetaGet(ctx context.Context, namespace, name string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.meta[objKey(namespace, name)]
	if !ok {
		return Metadata{}, fmt.Errorf("backend: metadata %s/%s: %w", namespace, name, errs.NotFound)
	}
	return md, nil
}

func (m *MemoryData) MetaPut(ctx context.Context, namespace, name string, md Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[objKey(namespace, name)] = md
	return nil
}

func (m *MemoryData) MetaDelete(ctx context.Context, namespace, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meta, objKey(namespace, name))
	return nil
}

// MemoryLock is an in-memory stand-in for the external lock-service
// collaborator lockclient.Client talks to (spec.md §1): a single-process
// mutex-per-key map, used as the production Lock backend until a
// deployment wires in a real distributed lock service, and by tests.
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLock() *MemoryLock { return &MemoryLock{held: make(map[string]bool)} }

func (m *MemoryLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *MemoryLock) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

// MemoryKV is an in-memory KvBackend used only by tests.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV { return &MemoryKV{data: make(map[string][]byte)} }

func kvKey(namespace, key string) string { return namespace + "/" + key }

func (m *MemoryKV) Put(ctx context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[kvKey(namespace, key)] = cp
	return nil
}

func (m *MemoryKV) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[kvKey(namespace, key)]
	return v, ok, nil
}

func (m *MemoryKV) Delete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, kvKey(namespace, key))
	return nil
}

func (m *MemoryKV) Iterate(ctx context.Context, namespace string, fn func(key string, value []byte) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := namespace + "/"
	for k, v := range m.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			if !fn(k[len(prefix):], v) {
				return nil
			}
		}
	}
	return nil
}

// MemoryDB is an in-memory DbBackend used only by tests.
type MemoryDB struct {
	mu      sync.Mutex
	schemas map[string]map[string]string
	entries map[string][]Entry
	cursors map[string]*cursorState
}

type cursorState struct {
	entries []Entry
	pos     int
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		schemas: make(map[string]map[string]string),
		entries: make(map[string][]Entry),
		cursors: make(map[string]*cursorState),
	}
}

func tableKey(namespace, schemaName string) string { return namespace + "/" + schemaName }

func (m *MemoryDB) SchemaCreate(ctx context.Context, namespace, schemaName string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[tableKey(namespace, schemaName)] = fields
	return nil
}

func (m *MemoryDB) SchemaDrop(ctx context.Context, namespace, schemaName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tableKey(namespace, schemaName)
	delete(m.schemas, key)
	delete(m.entries, key)
	return nil
}

func (m *MemoryDB) Insert(ctx context.Context, namespace, schemaName string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tableKey(namespace, schemaName)
	m.entries[key] = append(m.entries[key], entry)
	return nil
}

func matches(e Entry, selector []Predicate) bool {
	for _, p := range selector {
		v, ok := e[p.Field]
		if !ok {
			return false
		}
		switch p.Operator {
		case "=", "":
			if v != p.Value {
				return false
			}
		default:
			if v != p.Value {
				return false
			}
		}
	}
	return true
}

func (m *MemoryDB) Update(ctx context.Context, namespace, schemaName string, selector []Predicate, fields Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tableKey(namespace, schemaName)
	n := 0
	for i, e := range m.entries[key] {
		if matches(e, selector) {
			for f, v := range fields {
				e[f] = v
			}
			m.entries[key][i] = e
			n++
		}
	}
	return n, nil
}

func (m *MemoryDB) Delete(ctx context.Context, namespace, schemaName string, selector []Predicate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tableKey(namespace, schemaName)
	kept := m.entries[key][:0]
	n := 0
	for _, e := range m.entries[key] {
		if matches(e, selector) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries[key] = kept
	return n, nil
}

func (m *MemoryDB) IteratorNew(ctx context.Context, namespace, schemaName string, selector []Predicate) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tableKey(namespace, schemaName)
	var matched []Entry
	for _, e := range m.entries[key] {
		if matches(e, selector) {
			matched = append(matched, e)
		}
	}
	cursor := uuid.NewString()
	m.cursors[cursor] = &cursorState{entries: matched}
	return cursor, nil
}

func (m *MemoryDB) IteratorNext(ctx context.Context, cursor string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.cursors[cursor]
	if !ok {
		return nil, false, fmt.Errorf("backend: unknown cursor %s: %w", cursor, errs.NotFound)
	}
	if st.pos >= len(st.entries) {
		return nil, false, nil
	}
	e := st.entries[st.pos]
	st.pos++
	return e, true, nil
}

func (m *MemoryDB) IteratorRelease(ctx context.Context, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, cursor)
	return nil
}

func (m *MemoryDB) BatchStart(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (m *MemoryDB) BatchExecute(ctx context.Context, txn string) error { return nil }
