// Package server implements minimal wire-protocol dispatchers that turn
// frames into backend.DataBackend/KvBackend/DbBackend calls. Real object,
// KV, and DB servers are external collaborators out of scope for this core
// (spec.md §1); these dispatchers exist only to give the executor packages
// something to talk to in tests, standing in for those servers the way an
// in-memory fake stands in for a database in the teacher's own tests.
package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/arcfabric/storecore/internal/backend"
	dbexec "github.com/arcfabric/storecore/internal/executor/db"
	kvexec "github.com/arcfabric/storecore/internal/executor/kv"
	objexec "github.com/arcfabric/storecore/internal/executor/object"
	"github.com/arcfabric/storecore/internal/wire"
)

// serve runs the read-dispatch-reply loop common to every data plane until
// the connection errors or the peer closes it.
func serve(conn net.Conn, log *slog.Logger, handle func(ctx context.Context, msg *wire.Message) (*wire.Message, error)) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	hdr := make([]byte, wire.HeaderLen)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return
		}
		msg, bodyLen, err := wire.DecodeHeader(hdr)
		if err != nil {
			return
		}
		if bodyLen > 0 {
			body := make([]byte, bodyLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return
			}
			msg.Body = body
		}
		reply, err := handle(context.Background(), msg)
		if err != nil {
			if log != nil {
				log.Error("SERVER_HANDLE_FAILED", slog.String("err", err.Error()))
			}
			return
		}
		if _, err := conn.Write(reply.Encode()); err != nil {
			return
		}
	}
}

func replyTo(msg *wire.Message, body []byte) *wire.Message {
	reply := wire.NewRequest(msg.Type).AsReply()
	reply.Modifiers = msg.Modifiers
	if body != nil {
		reply.AddOperation(body)
	}
	return reply
}

// ObjectServer dispatches the object wire protocol against a
// backend.DataBackend.
type ObjectServer struct {
	Backend backend.DataBackend
	Log     *slog.Logger
}

func (s *ObjectServer) Serve(conn net.Conn) { serve(conn, s.Log, s.handle) }

func (s *ObjectServer) handle(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	switch msg.Type {
	case wire.TypePing:
		return replyTo(msg, nil), nil
	case wire.TypeDataCreate:
		namespace, name, err := objexec.DecodeCreateRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.Create(ctx, namespace, name); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	case wire.TypeDataDelete:
		namespace, name, err := objexec.DecodeDeleteRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.Delete(ctx, namespace, name); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	case wire.TypeDataRead:
		namespace, name, offset, length, err := objexec.DecodeReadRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		data, err := s.Backend.Read(ctx, namespace, name, offset, length)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, objexec.EncodeReadReply(data)), nil
	case wire.TypeDataWrite:
		namespace, name, offset, data, err := objexec.DecodeWriteRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		n, err := s.Backend.Write(ctx, namespace, name, offset, data)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, objexec.EncodeWriteReply(n)), nil
	case wire.TypeDataStatus:
		namespace, name, err := objexec.DecodeStatusRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		st, err := s.Backend.Status(ctx, namespace, name)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, objexec.EncodeStatusReply(st.Size, st.ModificationTime)), nil
	case wire.TypeMetaGet:
		namespace, name, err := objexec.DecodeMetaGetRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		md, err := s.Backend.MetaGet(ctx, namespace, name)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, objexec.EncodeMetaGetReply(objexec.Metadata(md))), nil
	case wire.TypeMetaPut:
		namespace, name, md, err := objexec.DecodeMetaPutRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.MetaPut(ctx, namespace, name, backend.Metadata(md)); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	case wire.TypeMetaDelete:
		namespace, name, err := objexec.DecodeMetaDeleteRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.MetaDelete(ctx, namespace, name); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	default:
		return replyTo(msg, nil), nil
	}
}

// KVServer dispatches the KV wire protocol against a backend.KvBackend.
type KVServer struct {
	Backend backend.KvBackend
	Log     *slog.Logger
}

func (s *KVServer) Serve(conn net.Conn) { serve(conn, s.Log, s.handle) }

func (s *KVServer) handle(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	switch msg.Type {
	case wire.TypePing:
		return replyTo(msg, nil), nil
	case wire.TypeKVPut:
		namespace, key, value, err := kvexec.DecodePutRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.Put(ctx, namespace, key, value); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	case wire.TypeKVGet:
		namespace, key, err := kvexec.DecodeGetRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		value, found, err := s.Backend.Get(ctx, namespace, key)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, kvexec.EncodeGetReply(value, found)), nil
	case wire.TypeKVDelete:
		namespace, key, err := kvexec.DecodeDeleteRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.Delete(ctx, namespace, key); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	default:
		return replyTo(msg, nil), nil
	}
}

// DBServer dispatches the DB wire protocol against a backend.DbBackend.
type DBServer struct {
	Backend backend.DbBackend
	Log     *slog.Logger
}

func (s *DBServer) Serve(conn net.Conn) { serve(conn, s.Log, s.handle) }

func (s *DBServer) handle(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	switch msg.Type {
	case wire.TypePing:
		return replyTo(msg, nil), nil
	case wire.TypeDBInsert:
		namespace, schemaName, entry, err := dbexec.DecodeInsertRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.Insert(ctx, namespace, schemaName, backend.Entry(entry)); err != nil {
			return nil, err
		}
		return replyTo(msg, nil), nil
	case wire.TypeDBUpdate:
		namespace, schemaName, selector, fields, err := dbexec.DecodeUpdateRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		n, err := s.Backend.Update(ctx, namespace, schemaName, toBackendSelector(selector), backend.Entry(fields))
		if err != nil {
			return nil, err
		}
		return replyTo(msg, dbexec.EncodeCountReply(n)), nil
	case wire.TypeDBDelete:
		namespace, schemaName, selector, err := dbexec.DecodeDeleteRequest(msg.Body)
		if err != nil {
			return nil, err
		}
		n, err := s.Backend.Delete(ctx, namespace, schemaName, toBackendSelector(selector))
		if err != nil {
			return nil, err
		}
		return replyTo(msg, dbexec.EncodeCountReply(n)), nil
	case wire.TypeDBIterate:
		return s.handleIterate(ctx, msg)
	default:
		return replyTo(msg, nil), nil
	}
}

func (s *DBServer) handleIterate(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	action, r, err := dbexec.DecodeIterateRequest(msg.Body)
	if err != nil {
		return nil, err
	}
	switch action {
	case dbexec.IterateActionOpen:
		namespace, schemaName, selector, err := dbexec.DecodeIterateOpenRequest(r)
		if err != nil {
			return nil, err
		}
		cursor, err := s.Backend.IteratorNew(ctx, namespace, schemaName, toBackendSelector(selector))
		if err != nil {
			return nil, err
		}
		return replyTo(msg, dbexec.EncodeIterateOpenReply(cursor)), nil
	case dbexec.IterateActionNext:
		cursor, err := dbexec.DecodeIterateCursorRequest(r)
		if err != nil {
			return nil, err
		}
		entry, found, err := s.Backend.IteratorNext(ctx, cursor)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, dbexec.EncodeIterateNextReply(dbexec.Entry(entry), found)), nil
	case dbexec.IterateActionRelease:
		cursor, err := dbexec.DecodeIterateCursorRequest(r)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.IteratorRelease(ctx, cursor); err != nil {
			return nil, err
		}
		return replyTo(msg, dbexec.EncodeIterateReleaseReply()), nil
	default:
		return replyTo(msg, nil), nil
	}
}

func toBackendSelector(selector []dbexec.Predicate) []backend.Predicate {
	out := make([]backend.Predicate, len(selector))
	for i, p := range selector {
		out[i] = backend.Predicate{Field: p.Field, Operator: p.Operator, Value: p.Value}
	}
	return out
}
