// Package wire implements the framed binary message codec used to talk to
// object, KV, and DB servers: a fixed header followed by a concatenation of
// per-operation payloads. Multi-byte integers are little-endian and
// unaligned; strings are length-prefixed, never NUL-scanned on decode.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/arcfabric/storecore/internal/errs"
)

// Magic identifies a well-formed frame header.
const Magic uint32 = 0x4a464142 // "JFAB"

// HeaderLen is the fixed size, in bytes, of a frame header.
const HeaderLen = 4 + 4 + 4 + 4 + 8

// replyBit is set in Type for reply frames, per spec.md §6.
const replyBit uint32 = 1 << 31

// Type enumerates the wire message kinds from spec.md §6.
type Type uint32

const (
	TypePing Type = iota + 1
	TypeDataCreate
	TypeDataDelete
	TypeDataRead
	TypeDataWrite
	TypeDataStatus
	TypeMetaGet
	TypeMetaPut
	TypeMetaDelete
	TypeKVPut
	TypeKVGet
	TypeKVDelete
	TypeDBInsert
	TypeDBUpdate
	TypeDBDelete
	TypeDBIterate
)

// Modifier flags live in the header's type_modifiers field.
type Modifier uint32

const (
	// ModifierSafetyNetwork requires the server to send a reply before the
	// client considers the operation complete (spec.md §4.4).
	ModifierSafetyNetwork Modifier = 1 << 0
)

// Message is one wire frame: a typed header plus a concatenation of
// per-operation payloads (OperationCount of them).
type Message struct {
	Type            Type
	Modifiers       Modifier
	OperationCount  uint32
	Body            []byte
	isReply         bool
}

// NewRequest builds an empty request frame of the given type.
func NewRequest(t Type) *Message {
	return &Message{Type: t}
}

// IsReply reports whether this frame carries the reply bit.
func (m *Message) IsReply() bool { return m.isReply }

// AsReply marks the message as a reply frame.
func (m *Message) AsReply() *Message {
	m.isReply = true
	return m
}

// HasSafetyNetwork reports whether the SAFETY_NETWORK modifier is set.
func (m *Message) HasSafetyNetwork() bool {
	return m.Modifiers&ModifierSafetyNetwork != 0
}

// AddOperation appends a single operation payload and bumps OperationCount.
func (m *Message) AddOperation(payload []byte) {
	m.Body = append(m.Body, payload...)
	m.OperationCount++
}

// Encode serializes the message into its wire representation.
func (m *Message) Encode() []byte {
	buf := make([]byte, HeaderLen+len(m.Body))
	binary.LittleEndian.PutUint32(buf[0:4], Magic)

	typ := uint32(m.Type)
	if m.isReply {
		typ |= replyBit
	}
	binary.LittleEndian.PutUint32(buf[4:8], typ)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.Modifiers))
	binary.LittleEndian.PutUint32(buf[12:16], m.OperationCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(m.Body)))
	copy(buf[HeaderLen:], m.Body)
	return buf
}

// DecodeHeader parses the fixed-size header, returning the body length to
// read next. It does not touch the body.
func DecodeHeader(hdr []byte) (*Message, uint64, error) {
	if len(hdr) != HeaderLen {
		return nil, 0, fmt.Errorf("wire: short header (%d bytes): %w", len(hdr), errs.Protocol)
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != Magic {
		return nil, 0, fmt.Errorf("wire: bad magic %#x: %w", magic, errs.Protocol)
	}
	typ := binary.LittleEndian.Uint32(hdr[4:8])
	m := &Message{
		isReply:        typ&replyBit != 0,
		Type:           Type(typ &^ replyBit),
		Modifiers:      Modifier(binary.LittleEndian.Uint32(hdr[8:12])),
		OperationCount: binary.LittleEndian.Uint32(hdr[12:16]),
	}
	bodyLen := binary.LittleEndian.Uint64(hdr[16:24])
	return m, bodyLen, nil
}
