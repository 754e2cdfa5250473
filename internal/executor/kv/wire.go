package kv

import (
	"fmt"

	"github.com/arcfabric/storecore/internal/errs"
	"github.com/arcfabric/storecore/internal/wire"
)

func encodePut(namespace, key string, value []byte) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(key).AppendN(value).Bytes()
}

func encodeGet(namespace, key string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(key).Bytes()
}

func encodeDelete(namespace, key string) []byte {
	return wire.NewWriter().AppendString(namespace).AppendString(key).Bytes()
}

func decodeGetReply(body []byte) (GetResult, error) {
	r := wire.NewReader(body)
	found, err := r.GetU32()
	if err != nil {
		return GetResult{}, err
	}
	if found == 0 {
		return GetResult{Found: false}, nil
	}
	value, err := r.GetBytes()
	if err != nil {
		return GetResult{}, err
	}
	return GetResult{Value: value, Found: true}, nil
}

func requireReply(msg *wire.Message, want wire.Type) error {
	if !msg.IsReply() || msg.Type != want {
		return fmt.Errorf("kv: unexpected reply type %d (reply=%v): %w", msg.Type, msg.IsReply(), errs.Protocol)
	}
	return nil
}

// DecodePutRequest parses a KV_PUT request body.
func DecodePutRequest(body []byte) (namespace, key string, value []byte, err error) {
	r := wire.NewReader(body)
	namespace, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	key, err = r.GetString()
	if err != nil {
		return "", "", nil, err
	}
	value, err = r.GetBytes()
	if err != nil {
		return "", "", nil, err
	}
	return namespace, key, value, nil
}

// DecodeGetRequest parses a KV_GET request body.
func DecodeGetRequest(body []byte) (namespace, key string, err error) {
	r := wire.NewReader(body)
	namespace, err = r.GetString()
	if err != nil {
		return "", "", err
	}
	key, err = r.GetString()
	return namespace, key, err
}

// DecodeDeleteRequest parses a KV_DELETE request body.
func DecodeDeleteRequest(body []byte) (namespace, key string, err error) {
	return DecodeGetRequest(body)
}

// EncodeGetReply builds a KV_GET reply body.
func EncodeGetReply(value []byte, found bool) []byte {
	w := wire.NewWriter()
	if !found {
		return w.AppendU32(0).Bytes()
	}
	return w.AppendU32(1).AppendN(value).Bytes()
}
