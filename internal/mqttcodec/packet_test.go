package mqttcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/model"
)

// TestConnectConnAckHandshake mirrors the literal byte vectors from spec.md
// §8 scenario 1.
func TestConnectConnAckHandshake(t *testing.T) {
	input := []byte{0x10, 0x10, 0x00, 0x04, 'M', 'Q', 'T', 'T', 0x04, 0x02, 0x00, 0x3C, 0x00, 0x04, 'a', 'b', 'c', 'd'}
	hdr, err := DecodeFixedHeader(input)
	require.NoError(t, err)
	require.Equal(t, model.KindConnect, hdr.Kind)

	cp, err := DecodeConnect(input[hdr.HeaderByteLen:])
	require.NoError(t, err)
	require.Equal(t, model.ProtocolLevel311, cp.Level)
	require.True(t, cp.CleanSession)
	require.Equal(t, uint16(60), cp.KeepAlive)
	require.Equal(t, "abcd", cp.ClientID)

	_, connack := NewConnAck(false, Accepted)
	require.Equal(t, []byte{0x20, 0x02, 0x00, 0x00}, connack)
}

// TestSubscribeSubAck mirrors spec.md §8 scenario 2's SUBSCRIBE/SUBACK leg.
func TestSubscribeSubAck(t *testing.T) {
	input := []byte{0x82, 0x08, 0x00, 0x01, 0x00, 0x01, 't', 0x00}
	hdr, err := DecodeFixedHeader(input)
	require.NoError(t, err)
	require.Equal(t, model.KindSubscribe, hdr.Kind)

	msgs, err := DecodeSubscribe(input[hdr.HeaderByteLen:], model.ProtocolLevel311)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, uint16(1), msgs[0].PacketID)
	require.Equal(t, "t", msgs[0].Entry.Topic)
	require.Equal(t, model.QoS0, msgs[0].Entry.QoS)

	codes := []byte{GrantedSubAckCodeV3(byte(msgs[0].Entry.QoS), true)}
	_, suback := NewSubAck(msgs[0].PacketID, codes)
	require.Equal(t, []byte{0x90, 0x03, 0x00, 0x01, 0x00}, suback)
}

// TestPublishForwarding mirrors spec.md §8 scenario 2's PUBLISH leg: what
// client A receives is byte-identical to what client B sent.
func TestPublishForwarding(t *testing.T) {
	input := []byte{0x30, 0x05, 0x00, 0x01, 't', 'h', 'i'}
	hdr, err := DecodeFixedHeader(input)
	require.NoError(t, err)

	pub, err := DecodePublish(hdr.Flags, input[hdr.HeaderByteLen:], model.ProtocolLevel311)
	require.NoError(t, err)
	require.Equal(t, "t", pub.Topic)
	require.Equal(t, []byte("hi"), pub.Body)
	require.Equal(t, model.QoS0, pub.QoS)

	reencoded := EncodePublish(pub, model.ProtocolLevel311)
	require.Equal(t, input, reencoded)
}

// TestQoS1PublishElicitsPubAck mirrors spec.md §8 scenario 3.
func TestQoS1PublishElicitsPubAck(t *testing.T) {
	input := []byte{0x32, 0x08, 0x00, 0x01, 't', 0x00, 0x07, 'h', 'i'}
	hdr, err := DecodeFixedHeader(input)
	require.NoError(t, err)

	pub, err := DecodePublish(hdr.Flags, input[hdr.HeaderByteLen:], model.ProtocolLevel311)
	require.NoError(t, err)
	require.Equal(t, model.QoS1, pub.QoS)
	require.Equal(t, uint16(7), pub.PacketID)

	_, puback := NewPubAck(pub.PacketID)
	require.Equal(t, []byte{0x40, 0x02, 0x00, 0x07}, puback)
}

// TestPingReqPingResp mirrors spec.md §8 scenario 4.
func TestPingReqPingResp(t *testing.T) {
	require.Equal(t, []byte{0xC0, 0x00}, PingReqBytes)
	_, resp := NewPingResp()
	require.Equal(t, []byte{0xD0, 0x00}, resp)
}

func TestDecodeRejectsUnknownPacketKind(t *testing.T) {
	_, err := Decode(FixedHeader{Kind: 0, HeaderByteLen: 2}, nil, model.ProtocolLevel311)
	require.Error(t, err)
}

func TestConnectRejectsUnsupportedProtocolLevel(t *testing.T) {
	input := EncodeConnect(ConnectPacket{Level: 6, ClientID: "x"})
	hdr, err := DecodeFixedHeader(input)
	require.NoError(t, err)

	_, err = DecodeConnect(input[hdr.HeaderByteLen:])
	require.Error(t, err)
	ce, ok := AsCodecError(err)
	require.True(t, ok)
	require.Equal(t, ProtocolError, ce.Kind)
}
