package mqttcodec

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/devicelink/mqttbroker/internal/model"
)

// MaxVarInt is the largest value a 4-byte Variable Byte Integer can carry,
// per the MQTT Remaining Length encoding (spec.md §4.1).
const MaxVarInt = 268435455

// EncodeUint16 appends a 2-byte big-endian integer to dst.
func EncodeUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

// DecodeUint16 reads a 2-byte big-endian integer from the front of buf.
func DecodeUint16(buf []byte) (uint16, int, error) {
	if len(buf) < 2 {
		return 0, 0, malformed("short int: need 2 bytes, have %d", len(buf))
	}
	return binary.BigEndian.Uint16(buf), 2, nil
}

// EncodeUint32 appends a 4-byte big-endian integer to dst.
func EncodeUint32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// DecodeUint32 reads a 4-byte big-endian integer from the front of buf.
func DecodeUint32(buf []byte) (uint32, int, error) {
	if len(buf) < 4 {
		return 0, 0, malformed("long int: need 4 bytes, have %d", len(buf))
	}
	return binary.BigEndian.Uint32(buf), 4, nil
}

// EncodeString appends a 2-byte length prefix followed by s's bytes.
func EncodeString(dst []byte, s string) []byte {
	dst = EncodeUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

// DecodeString reads a length-prefixed UTF-8 string from the front of buf,
// returning the string and the number of bytes consumed (2 + length).
func DecodeString(buf []byte) (string, int, error) {
	n, _, err := DecodeUint16(buf)
	if err != nil {
		return "", 0, malformed("string length: %v", err)
	}
	length := int(n)
	if len(buf) < 2+length {
		return "", 0, malformed("string: declared length %d exceeds remaining %d bytes", length, len(buf)-2)
	}
	raw := buf[2 : 2+length]
	if !utf8.Valid(raw) {
		return "", 0, malformed("string: invalid UTF-8")
	}
	return string(raw), 2 + length, nil
}

// EncodeBinary appends a 2-byte length prefix followed by b's bytes, used
// for v5 binary-data properties (correlation data, authentication data).
func EncodeBinary(dst []byte, b []byte) []byte {
	dst = EncodeUint16(dst, uint16(len(b)))
	return append(dst, b...)
}

// DecodeBinary reads a length-prefixed byte array from the front of buf.
func DecodeBinary(buf []byte) ([]byte, int, error) {
	n, _, err := DecodeUint16(buf)
	if err != nil {
		return nil, 0, malformed("binary length: %v", err)
	}
	length := int(n)
	if len(buf) < 2+length {
		return nil, 0, malformed("binary: declared length %d exceeds remaining %d bytes", length, len(buf)-2)
	}
	out := make([]byte, length)
	copy(out, buf[2:2+length])
	return out, 2 + length, nil
}

// EncodeVarInt appends the Variable Byte Integer encoding of n (1-4 bytes).
func EncodeVarInt(dst []byte, n int) []byte {
	for {
		digit := byte(n % 128)
		n /= 128
		if n > 0 {
			digit |= 0x80
		}
		dst = append(dst, digit)
		if n == 0 {
			return dst
		}
	}
}

// DecodeVarInt reads a Variable Byte Integer from the front of buf. It
// returns the decoded value and the number of bytes consumed.
func DecodeVarInt(buf []byte) (value int, consumed int, err error) {
	multiplier := 1
	for i := 0; i < 4; i++ {
		if i >= len(buf) {
			return 0, 0, malformed("varint: truncated after %d bytes", i)
		}
		digit := buf[i]
		value += int(digit&0x7f) * multiplier
		consumed++
		if digit&0x80 == 0 {
			if value > MaxVarInt {
				return 0, 0, malformed("varint: value %d exceeds max %d", value, MaxVarInt)
			}
			return value, consumed, nil
		}
		multiplier *= 128
	}
	return 0, 0, malformed("varint: no terminating byte within 4")
}

// FixedHeader is the first byte (kind<<4 | flags) plus the parsed Remaining
// Length that follows it.
type FixedHeader struct {
	Kind           model.PacketKind
	Flags          byte
	RemainingLen   int
	HeaderByteLen  int // 1 (type+flags byte) + len(varint)
}

// EncodeFixedHeader packs kind, flags, and the varint-encoded body length.
func EncodeFixedHeader(dst []byte, kind model.PacketKind, flags byte, bodyLen int) []byte {
	dst = append(dst, byte(kind)<<4|flags&0x0f)
	return EncodeVarInt(dst, bodyLen)
}

// DecodeFixedHeader parses the fixed header from the front of buf. The
// caller is responsible for then reading RemainingLen more bytes as the
// packet body (see internal/line for stream reassembly).
func DecodeFixedHeader(buf []byte) (FixedHeader, error) {
	if len(buf) < 1 {
		return FixedHeader{}, malformed("fixed header: empty buffer")
	}
	first := buf[0]
	kind := model.PacketKind(first >> 4)
	flags := first & 0x0f
	remaining, consumed, err := DecodeVarInt(buf[1:])
	if err != nil {
		return FixedHeader{}, err
	}
	return FixedHeader{Kind: kind, Flags: flags, RemainingLen: remaining, HeaderByteLen: 1 + consumed}, nil
}
