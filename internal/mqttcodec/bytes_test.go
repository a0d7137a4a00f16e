package mqttcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, MaxVarInt} {
		enc := EncodeVarInt(nil, v)
		got, consumed, err := DecodeVarInt(enc)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(enc), consumed)
	}
}

func TestDecodeVarIntRejectsOverMax(t *testing.T) {
	_, _, err := DecodeVarInt([]byte{0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "hello world", "unicode: ☃"} {
		enc := EncodeString(nil, s)
		got, n, err := DecodeString(enc)
		require.NoError(t, err)
		require.Equal(t, s, got)
		require.Equal(t, len(enc), n)
	}
}

func TestDecodeStringRejectsInvalidUTF8(t *testing.T) {
	buf := EncodeUint16(nil, 1)
	buf = append(buf, 0xff)
	_, _, err := DecodeString(buf)
	require.Error(t, err)
}

func TestBinaryRoundTrip(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	enc := EncodeBinary(nil, b)
	got, n, err := DecodeBinary(enc)
	require.NoError(t, err)
	require.Equal(t, b, got)
	require.Equal(t, len(enc), n)
}

func TestFixedHeaderRoundTrip(t *testing.T) {
	enc := EncodeFixedHeader(nil, 3, 0x02, 321)
	hdr, err := DecodeFixedHeader(enc)
	require.NoError(t, err)
	require.Equal(t, 3, int(hdr.Kind))
	require.Equal(t, byte(0x02), hdr.Flags)
	require.Equal(t, 321, hdr.RemainingLen)
	require.Equal(t, len(enc), hdr.HeaderByteLen)
}
