package mqttcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/model"
)

func TestAckRoundTripV3(t *testing.T) {
	for _, kind := range []model.PacketKind{model.KindPubAck, model.KindPubRec, model.KindPubRel, model.KindPubComp} {
		p := AckPacket{Kind: kind, PacketID: 42, ReasonCode: ReasonSuccess}
		enc := EncodeAck(p, model.ProtocolLevel311)

		hdr, err := DecodeFixedHeader(enc)
		require.NoError(t, err)
		require.Equal(t, kind, hdr.Kind)

		got, err := DecodeAck(kind, enc[hdr.HeaderByteLen:], model.ProtocolLevel311)
		require.NoError(t, err)
		require.Equal(t, uint16(42), got.PacketID)
	}
}

func TestPubRelPreservesNonStandardHeaderFlags(t *testing.T) {
	enc := EncodeAck(AckPacket{Kind: model.KindPubRel, PacketID: 1}, model.ProtocolLevel311)
	require.Equal(t, byte(0b0010), enc[0]&0x0f)
}

func TestAckRoundTripV5WithReasonCode(t *testing.T) {
	p := AckPacket{Kind: model.KindPubAck, PacketID: 5, ReasonCode: ReasonUnspecifiedError}
	enc := EncodeAck(p, model.ProtocolLevel5)

	hdr, err := DecodeFixedHeader(enc)
	require.NoError(t, err)
	got, err := DecodeAck(model.KindPubAck, enc[hdr.HeaderByteLen:], model.ProtocolLevel5)
	require.NoError(t, err)
	require.Equal(t, ReasonUnspecifiedError, got.ReasonCode)
}

func TestAckV5OmitsReasonCodeWhenSuccessAndNoProperties(t *testing.T) {
	p := AckPacket{Kind: model.KindPubAck, PacketID: 5, ReasonCode: ReasonSuccess}
	enc := EncodeAck(p, model.ProtocolLevel5)
	hdr, err := DecodeFixedHeader(enc)
	require.NoError(t, err)
	require.Equal(t, 2, hdr.RemainingLen, "packet id only, no reason code byte")
}

func TestUnsubAckRoundTrip(t *testing.T) {
	_, enc := NewUnsubAck(9)
	hdr, err := DecodeFixedHeader(enc)
	require.NoError(t, err)
	got, err := DecodeUnsubAck(enc[hdr.HeaderByteLen:], model.ProtocolLevel311)
	require.NoError(t, err)
	require.Equal(t, uint16(9), got.PacketID)
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	p := UnsubscribePacket{PacketID: 3, Topics: []string{"never-subscribed"}}
	enc := EncodeUnsubscribe(p, model.ProtocolLevel311)
	hdr, err := DecodeFixedHeader(enc)
	require.NoError(t, err)
	got, err := DecodeUnsubscribe(enc[hdr.HeaderByteLen:], model.ProtocolLevel311)
	require.NoError(t, err)
	require.Equal(t, []string{"never-subscribed"}, got.Topics)
}
