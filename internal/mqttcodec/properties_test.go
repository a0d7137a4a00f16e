package mqttcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/model"
)

func TestPropertyListRoundTrip(t *testing.T) {
	pl := PropertyList{
		{ID: PropMaximumPacketSize, Value: uint32(1048576)},
		{ID: PropRetainAvailable, Value: byte(1)},
	}
	enc := pl.Encode()
	got, n, err := DecodeProperties(enc, model.KindConnAck)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.Len(t, got, 2)
	v, ok := got.Get(PropMaximumPacketSize)
	require.True(t, ok)
	require.Equal(t, uint32(1048576), v.Value)
}

// TestPropertyListEncodesLengthAsFullVarInt covers spec.md §9's REDESIGN
// FLAG: a property block over 127 bytes must still round-trip, which a
// single-length-byte encoding could not represent.
func TestPropertyListEncodesLengthAsFullVarInt(t *testing.T) {
	var pl PropertyList
	for i := 0; i < 10; i++ {
		pl = append(pl, Property{ID: PropContentType, Value: strings.Repeat("x", 20)})
	}
	enc := pl.Encode()

	length, consumed, err := DecodeVarInt(enc)
	require.NoError(t, err)
	require.Greater(t, length, 127, "test fixture must exceed the single-byte varint range")

	got, n, err := DecodeProperties(enc, model.KindPublish)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.Len(t, got, 10)
	require.Greater(t, consumed, 1)
}

func TestDecodePropertiesSkipsIllegalForPacketKind(t *testing.T) {
	pl := PropertyList{{ID: PropRetainAvailable, Value: byte(1)}}
	enc := pl.Encode()

	got, _, err := DecodeProperties(enc, model.KindPublish)
	require.NoError(t, err)
	require.Empty(t, got, "RetainAvailable is only legal on CONNACK")
}

func TestDecodePropertiesRejectsUnknownID(t *testing.T) {
	enc := EncodeVarInt(nil, 2)
	enc = append(enc, 0x7f, 0x00)
	_, _, err := DecodeProperties(enc, model.KindConnAck)
	require.Error(t, err)
}

func TestLegal(t *testing.T) {
	require.True(t, Legal(PropRetainAvailable, model.KindConnAck))
	require.False(t, Legal(PropRetainAvailable, model.KindPublish))
	require.False(t, Legal(PropertyID(0x7f), model.KindConnAck))
}
