package object

import (
	"fmt"

	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/wire"
)

// Client-side request encoders and reply decoders.

func encodeCreate(namespace, name string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).Bytes()
}

func encodeDelete(namespace, name string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).Bytes()
}

func encodeRead(namespace, name string, offset, length uint64) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).AppendU64(offset).AppendU64(length).Bytes()
}

func encodeWrite(namespace, name string, offset uint64, data []byte) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).AppendU64(offset).AppendN(data).Bytes()
}

func encodeStatus(namespace, name string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).Bytes()
}

func encodeMetaGet(namespace, name string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).Bytes()
}

func encodeMetaDelete(namespace, name string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(name).Bytes()
}

func encodeMetaPut(namespace, name string, md Metadata) []byte {
	w := wire.NewWriter().AppendString(namespace).AppendString(name).AppendU64(uint64(md.CreatedAt)).AppendU32(uint32(len(md.Tags)))
	for k, v := range md.Tags {
		w.AppendString(k).AppendString(v)
	}
	return w.Bytes()
}

func decodeReadReply(body []byte) ([]byte, error) {
	return wire.NewReader(body).GetBytes()
}

func decodeWriteReply(body []byte) (uint64, error) {
	return wire.NewReader(body).GetU64()
}

func decodeStatusReply(body []byte) (Status, error) {
	r := wire.NewReader(body)
	size, err := r.GetU64()
	if err != nil {
		return Status{}, err
	}
	mtime, err := r.GetU64()
	if err != nil {
		return Status{}, err
	}
	return Status{Size: size, ModificationTime: int64(mtime)}, nil
}

func decodeMetaGetReply(body []byte) (Metadata, error) {
	r := wire.NewReader(body)
	createdAt, err := r.GetU64()
	if err != nil {
		return Metadata{}, err
	}
	count, err := r.GetU32()
	if err != nil {
		return Metadata{}, err
	}
	tags := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		k, err := r.GetString()
		if err != nil {
			return Metadata{}, err
		}
		v, err := r.GetString()
		if err != nil {
			return Metadata{}, err
		}
		tags[k] = v
	}
	return Metadata{CreatedAt: int64(createdAt), Tags: tags}, nil
}

func requireReply(msg *wire.Message, want wire.Type) error {
	if !msg.IsReply() || msg.Type != want {
		return fmt.Errorf("object: unexpected reply type %d (reply=%v): %w", msg.Type, msg.IsReply(), errs.Protocol)
	}
	return nil
}

// Server-side request decoders and reply encoders, exported for
// internal/server's wire-protocol dispatcher.

func decodeNamespaceName(r *wire.Reader) (namespace, name string, err error) {
	namespace, err = r.GetString()
	if err != nil {
		return "", "", err
	}
	name, err = r.GetString()
	if err != nil {
		return "", "", err
	}
	return namespace, name, nil
}

// DecodeCreateRequest parses a DATA_CREATE request body.
func DecodeCreateRequest(body []byte) (namespace, name string, err error) {
	return decodeNamespaceName(wire.NewReader(body))
}

// DecodeDeleteRequest parses a DATA_DELETE request body.
func DecodeDeleteRequest(body []byte) (namespace, name string, err error) {
	return decodeNamespaceName(wire.NewReader(body))
}

// DecodeStatusRequest parses a DATA_STATUS request body.
func DecodeStatusRequest(body []byte) (namespace, name string, err error) {
	return decodeNamespaceName(wire.NewReader(body))
}

// DecodeReadRequest parses a DATA_READ request body.
func DecodeReadRequest(body []byte) (namespace, name string, offset, length uint64, err error) {
	r := wire.NewReader(body)
	namespace, name, err = decodeNamespaceName(r)
	if err != nil {
		return "", "", 0, 0, err
	}
	offset, err = r.GetU64()
	if err != nil {
		return "", "", 0, 0, err
	}
	length, err = r.GetU64()
	if err != nil {
		return "", "", 0, 0, err
	}
	return namespace, name, offset, length, nil
}

// DecodeWriteRequest parses a DATA_WRITE request body.
func DecodeWriteRequest(body []byte) (namespace, name string, offset uint64, data []byte, err error) {
	r := wire.NewReader(body)
	namespace, name, err = decodeNamespaceName(r)
	if err != nil {
		return "", "", 0, nil, err
	}
	offset, err = r.GetU64()
	if err != nil {
		return "", "", 0, nil, err
	}
	data, err = r.GetBytes()
	if err != nil {
		return "", "", 0, nil, err
	}
	return namespace, name, offset, data, nil
}

// EncodeReadReply builds a DATA_READ reply body.
func EncodeReadReply(data []byte) []byte {
	return wire.NewWriter().AppendN(data).Bytes()
}

// EncodeWriteReply builds a DATA_WRITE reply body.
func EncodeWriteReply(n uint64) []byte {
	return wire.NewWriter().AppendU64(n).Bytes()
}

// EncodeStatusReply builds a DATA_STATUS reply body.
func EncodeStatusReply(size uint64, mtime int64) []byte {
	return wire.NewWriter().AppendU64(size).AppendU64(uint64(mtime)).Bytes()
}

// DecodeMetaGetRequest parses a META_GET request body.
func DecodeMetaGetRequest(body []byte) (namespace, name string, err error) {
	return decodeNamespaceName(wire.NewReader(body))
}

// DecodeMetaDeleteRequest parses a META_DELETE request body.
func DecodeMetaDeleteRequest(body []byte) (namespace, name string, err error) {
	return decodeNamespaceName(wire.NewReader(body))
}

// DecodeMetaPutRequest parses a META_PUT request body.
func DecodeMetaPutRequest(body []byte) (namespace, name string, md Metadata, err error) {
	r := wire.NewReader(body)
	namespace, name, err = decodeNamespaceName(r)
	if err != nil {
		return "", "", Metadata{}, err
	}
	createdAt, err := r.GetU64()
	if err != nil {
		return "", "", Metadata{}, err
	}
	count, err := r.GetU32()
	if err != nil {
		return "", "", Metadata{}, err
	}
	tags := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		k, err := r.GetString()
		if err != nil {
			return "", "", Metadata{}, err
		}
		v, err := r.GetString()
		if err != nil {
			return "", "", Metadata{}, err
		}
		tags[k] = v
	}
	return namespace, name, Metadata{CreatedAt: int64(createdAt), Tags: tags}, nil
}

// EncodeMetaGetReply builds a META_GET reply body.
func EncodeMetaGetReply(md Metadata) []byte {
	w := wire.NewWriter().AppendU64(uint64(md.CreatedAt)).AppendU32(uint32(len(md.Tags)))
	for k, v := range md.Tags {
		w.AppendString(k).AppendString(v)
	}
	return w.Bytes()
}
