package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	w := NewWriter()
	w.AppendU64(4096).AppendU64(0).AppendN([]byte("payload"))

	msg := NewRequest(TypeDataWrite)
	msg.Modifiers = ModifierSafetyNetwork
	msg.AddOperation(w.Bytes())

	encoded := msg.Encode()
	require.Len(t, encoded, HeaderLen+len(w.Bytes()))

	decoded, bodyLen, err := DecodeHeader(encoded[:HeaderLen])
	require.NoError(t, err)
	require.Equal(t, TypeDataWrite, decoded.Type)
	require.True(t, decoded.HasSafetyNetwork())
	require.Equal(t, uint32(1), decoded.OperationCount)
	require.EqualValues(t, len(w.Bytes()), bodyLen)
	require.False(t, decoded.IsReply())

	body := encoded[HeaderLen:]
	r := NewReader(body)
	subLen, err := r.GetU64()
	require.NoError(t, err)
	require.EqualValues(t, 4096, subLen)
	subOff, err := r.GetU64()
	require.NoError(t, err)
	require.EqualValues(t, 0, subOff)
	payload, err := r.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "payload", string(payload))
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	buf := make([]byte, HeaderLen)
	_, _, err := DecodeHeader(buf)
	require.Error(t, err)
}

func TestReplyBit(t *testing.T) {
	msg := NewRequest(TypeDataRead).AsReply()
	encoded := msg.Encode()
	decoded, _, err := DecodeHeader(encoded[:HeaderLen])
	require.NoError(t, err)
	require.True(t, decoded.IsReply())
	require.Equal(t, TypeDataRead, decoded.Type)
}
