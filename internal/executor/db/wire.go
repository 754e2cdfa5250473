package db

import (
	"fmt"
	"math"

	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/wire"
)

// value type tags for the wire encoding of an Entry/Predicate value.
const (
	tagString uint32 = iota
	tagBlob
	tagUint32
	tagUint64
	tagFloat32
	tagFloat64
)

func encodeValue(w *wire.Writer, v any) error {
	switch val := v.(type) {
	case string:
		w.AppendU32(tagString).AppendString(val)
	case []byte:
		w.AppendU32(tagBlob).AppendN(val)
	case uint32:
		w.AppendU32(tagUint32).AppendU32(val)
	case uint64:
		w.AppendU32(tagUint64).AppendU64(val)
	case float32:
		w.AppendU32(tagFloat32).AppendU32(math.Float32bits(val))
	case float64:
		w.AppendU32(tagFloat64).AppendU64(math.Float64bits(val))
	default:
		return fmt.Errorf("db: unsupported field value type %T: %w", v, errs.Config)
	}
	return nil
}

func decodeValue(r *wire.Reader) (any, error) {
	tag, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagString:
		return r.GetString()
	case tagBlob:
		return r.GetBytes()
	case tagUint32:
		return r.GetU32()
	case tagUint64:
		return r.GetU64()
	case tagFloat32:
		bits, err := r.GetU32()
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(bits), nil
	case tagFloat64:
		bits, err := r.GetU64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	default:
		return nil, fmt.Errorf("db: unknown value tag %d: %w", tag, errs.Protocol)
	}
}

func encodeEntry(w *wire.Writer, e Entry) error {
	w.AppendU32(uint32(len(e)))
	for field, v := range e {
		w.AppendString(field)
		if err := encodeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeEntry(r *wire.Reader) (Entry, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	e := make(Entry, n)
	for i := uint32(0); i < n; i++ {
		field, err := r.GetString()
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		e[field] = v
	}
	return e, nil
}

func encodeSelector(w *wire.Writer, selector []Predicate) error {
	w.AppendU32(uint32(len(selector)))
	for _, p := range selector {
		w.AppendString(p.Field).AppendString(p.Operator)
		if err := encodeValue(w, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeSelector(r *wire.Reader) ([]Predicate, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	out := make([]Predicate, 0, n)
	for i := uint32(0); i < n; i++ {
		field, err := r.GetString()
		if err != nil {
			return nil, err
		}
		op, err := r.GetString()
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Predicate{Field: field, Operator: op, Value: v})
	}
	return out, nil
}

func encodeInsert(namespace, schemaName string, e Entry) ([]byte, error) {
	w := wire.NewWriter().AppendString(namespace).AppendString(schemaName)
	if err := encodeEntry(w, e); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeInsertRequest parses a DB_INSERT request body.
func DecodeInsertRequest(body []byte) (namespace, schemaName string, entry Entry, err error) {
	r := wire.NewReader(body)
	namespace, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	schemaName, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	entry, err = decodeEntry(r)
	return namespace, schemaName, entry, err
}

func encodeUpdate(namespace, schemaName string, selector []Predicate, fields Entry) ([]byte, error) {
	w := wire.NewWriter().AppendString(namespace).AppendString(schemaName)
	if err := encodeSelector(w, selector); err != nil {
		return nil, err
	}
	if err := encodeEntry(w, fields); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeUpdateRequest parses a DB_UPDATE request body.
func DecodeUpdateRequest(body []byte) (namespace, schemaName string, selector []Predicate, fields Entry, err error) {
	r := wire.NewReader(body)
	namespace, err = r.GetString()
	if err != nil {
		return "", "", nil, nil, err
	}
	schemaName, err = r.GetString()
	if err != nil {
		return "", "", nil, nil, err
	}
	selector, err = decodeSelector(r)
	if err != nil {
		return "", "", nil, nil, err
	}
	fields, err = decodeEntry(r)
	return namespace, schemaName, selector, fields, err
}

func encodeDelete(namespace, schemaName string, selector []Predicate) ([]byte, error) {
	w := wire.NewWriter().AppendString(namespace).AppendString(schemaName)
	if err := encodeSelector(w, selector); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeDeleteRequest parses a DB_DELETE request body.
func DecodeDeleteRequest(body []byte) (namespace, schemaName string, selector []Predicate, err error) {
	r := wire.NewReader(body)
	namespace, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	schemaName, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	selector, err = decodeSelector(r)
	return namespace, schemaName, selector, err
}

// EncodeCountReply builds the DB_UPDATE/DB_DELETE reply body: the number of
// matched entries.
func EncodeCountReply(n int) []byte {
	return wire.NewWriter().AppendU32(uint32(n)).Bytes()
}

// Iterate sub-actions multiplexed over the single DB_ITERATE wire type
// (spec.md §6 fixes the message type enum; the cursor open/next/release
// triad rides inside the one type as an action tag).
const (
	IterateActionOpen uint32 = iota
	IterateActionNext
	IterateActionRelease
)

func encodeIterateOpen(namespace, schemaName string, selector []Predicate) ([]byte, error) {
	w := wire.NewWriter().AppendU32(IterateActionOpen).AppendString(namespace).AppendString(schemaName)
	if err := encodeSelector(w, selector); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeIterateNext(cursor string) []byte {
	return wire.NewWriter().AppendU32(IterateActionNext).AppendString(cursor).Bytes()
}

func encodeIterateRelease(cursor string) []byte {
	return wire.NewWriter().AppendU32(IterateActionRelease).AppendString(cursor).Bytes()
}

// DecodeIterateRequest parses the action tag common to every DB_ITERATE
// request, plus the remaining reader so the caller can parse the rest.
func DecodeIterateRequest(body []byte) (action uint32, r *wire.Reader, err error) {
	r = wire.NewReader(body)
	action, err = r.GetU32()
	return action, r, err
}

// DecodeIterateOpenRequest parses the remainder of an open request.
func DecodeIterateOpenRequest(r *wire.Reader) (namespace, schemaName string, selector []Predicate, err error) {
	namespace, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	schemaName, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	selector, err = decodeSelector(r)
	return namespace, schemaName, selector, err
}

// DecodeIterateCursorRequest parses the remainder of a next/release request.
func DecodeIterateCursorRequest(r *wire.Reader) (cursor string, err error) {
	return r.GetString()
}

// EncodeIterateOpenReply builds the reply body for an open request.
func EncodeIterateOpenReply(cursor string) []byte {
	return wire.NewWriter().AppendString(cursor).Bytes()
}

func decodeIterateOpenReply(body []byte) (string, error) {
	return wire.NewReader(body).GetString()
}

// EncodeIterateNextReply builds the reply body for a next request.
func EncodeIterateNextReply(e Entry, found bool) []byte {
	w := wire.NewWriter()
	if !found {
		return w.AppendU32(0).Bytes()
	}
	w.AppendU32(1)
	_ = encodeEntry(w, e)
	return w.Bytes()
}

func decodeIterateNextReply(body []byte) (Entry, bool, error) {
	r := wire.NewReader(body)
	found, err := r.GetU32()
	if err != nil {
		return nil, false, err
	}
	if found == 0 {
		return nil, false, nil
	}
	e, err := decodeEntry(r)
	return e, true, err
}

// EncodeIterateReleaseReply builds the (empty) reply body for a release
// request.
func EncodeIterateReleaseReply() []byte { return nil }

func requireReply(msg *wire.Message, want wire.Type) error {
	if !msg.IsReply() || msg.Type != want {
		return fmt.Errorf("db: unexpected reply type %d (reply=%v): %w", msg.Type, msg.IsReply(), errs.Protocol)
	}
	return nil
}
