package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// PUBREL's fixed-header flags are mirrored from the source as a fixed
// 0010 nibble (spec.md §4.3) rather than the reserved-bits-zero shape the
// other ack packets use. This is a known oddity (spec.md §9 flags it for a
// future redesign) and is preserved here for byte-exact compatibility.
const pubrelHeaderFlags = 0b0010

// headerFlagsFor returns the fixed-header flags nibble for an ack kind.
func headerFlagsFor(kind model.PacketKind) byte {
	if kind == model.KindPubRel {
		return pubrelHeaderFlags
	}
	return 0
}

// DecodeAck parses the shared PUBACK/PUBREC/PUBREL/PUBCOMP body shape: a
// packet id alone under v3.1.1, or packet id + reason code + optional
// properties under v5 (only present when the body is long enough — a v5
// peer omits the reason code entirely when it would be Success and there
// are no properties, per the MQTT 5.0 spec).
func DecodeAck(kind model.PacketKind, body []byte, level model.ProtocolLevel) (AckPacket, error) {
	p := AckPacket{Kind: kind, ReasonCode: ReasonSuccess}
	id, n, err := DecodeUint16(body)
	if err != nil {
		return p, malformed("%s: packet id: %v", kind, err)
	}
	p.PacketID = id
	body = body[n:]

	if level == model.ProtocolLevel5 && len(body) > 0 {
		p.ReasonCode = ReasonCode(body[0])
		body = body[1:]
		if len(body) > 0 {
			props, _, err := DecodeProperties(body, kind)
			if err != nil {
				return p, err
			}
			p.Properties = props
		}
	}
	return p, nil
}

// EncodeAck serializes a PUBACK/PUBREC/PUBREL/PUBCOMP.
func EncodeAck(p AckPacket, level model.ProtocolLevel) []byte {
	var body []byte
	body = EncodeUint16(body, p.PacketID)

	if level == model.ProtocolLevel5 && (p.ReasonCode != ReasonSuccess || len(p.Properties) > 0) {
		body = append(body, byte(p.ReasonCode))
		body = append(body, p.Properties.Encode()...)
	}

	dst := EncodeFixedHeader(nil, p.Kind, headerFlagsFor(p.Kind), len(body))
	return append(dst, body...)
}

// NewPubAck, NewPubRec, NewPubRel, NewPubComp pre-serialize the v3.1.1 ack
// for the given packet id, per spec.md §4.4's construction-helper contract.
func NewPubAck(packetID uint16) (AckPacket, []byte) {
	return newAck(model.KindPubAck, packetID)
}

func NewPubRec(packetID uint16) (AckPacket, []byte) {
	return newAck(model.KindPubRec, packetID)
}

func NewPubRel(packetID uint16) (AckPacket, []byte) {
	return newAck(model.KindPubRel, packetID)
}

func NewPubComp(packetID uint16) (AckPacket, []byte) {
	return newAck(model.KindPubComp, packetID)
}

func newAck(kind model.PacketKind, packetID uint16) (AckPacket, []byte) {
	p := AckPacket{Kind: kind, PacketID: packetID, ReasonCode: ReasonSuccess}
	return p, EncodeAck(p, model.ProtocolLevel311)
}
