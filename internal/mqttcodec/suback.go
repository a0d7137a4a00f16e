package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// DecodeSubAck parses a SUBACK body.
func DecodeSubAck(body []byte, level model.ProtocolLevel) (SubAckPacket, error) {
	var p SubAckPacket
	id, n, err := DecodeUint16(body)
	if err != nil {
		return p, malformed("suback: packet id: %v", err)
	}
	p.PacketID = id
	body = body[n:]

	if level == model.ProtocolLevel5 {
		props, n, err := DecodeProperties(body, model.KindSubAck)
		if err != nil {
			return p, err
		}
		body = body[n:]
		p.Properties = props
	}

	p.ReasonCodes = append([]byte(nil), body...)
	return p, nil
}

// EncodeSubAck serializes a SUBACK packet.
func EncodeSubAck(p SubAckPacket, level model.ProtocolLevel) []byte {
	var body []byte
	body = EncodeUint16(body, p.PacketID)
	if level == model.ProtocolLevel5 {
		body = append(body, p.Properties.Encode()...)
	}
	body = append(body, p.ReasonCodes...)

	dst := EncodeFixedHeader(nil, model.KindSubAck, 0, len(body))
	return append(dst, body...)
}

// NewSubAck builds a SUBACK granting/rejecting one code per requested
// topic, in request order (spec.md §4.4).
func NewSubAck(packetID uint16, codes []byte) (SubAckPacket, []byte) {
	p := SubAckPacket{PacketID: packetID, ReasonCodes: codes}
	return p, EncodeSubAck(p, model.ProtocolLevel311)
}

// DecodeUnsubAck parses an UNSUBACK body.
func DecodeUnsubAck(body []byte, level model.ProtocolLevel) (UnsubAckPacket, error) {
	var p UnsubAckPacket
	p.ReasonCode = ReasonSuccess
	id, n, err := DecodeUint16(body)
	if err != nil {
		return p, malformed("unsuback: packet id: %v", err)
	}
	p.PacketID = id
	body = body[n:]

	if level == model.ProtocolLevel5 && len(body) > 0 {
		p.ReasonCode = ReasonCode(body[0])
		body = body[1:]
		if len(body) > 0 {
			props, _, err := DecodeProperties(body, model.KindUnsubAck)
			if err != nil {
				return p, err
			}
			p.Properties = props
		}
	}
	return p, nil
}

// EncodeUnsubAck serializes an UNSUBACK packet.
func EncodeUnsubAck(p UnsubAckPacket, level model.ProtocolLevel) []byte {
	var body []byte
	body = EncodeUint16(body, p.PacketID)
	if level == model.ProtocolLevel5 && (p.ReasonCode != ReasonSuccess || len(p.Properties) > 0) {
		body = append(body, byte(p.ReasonCode))
		body = append(body, p.Properties.Encode()...)
	}
	dst := EncodeFixedHeader(nil, model.KindUnsubAck, 0, len(body))
	return append(dst, body...)
}

// NewUnsubAck builds a v3.1.1 UNSUBACK for the given packet id.
func NewUnsubAck(packetID uint16) (UnsubAckPacket, []byte) {
	p := UnsubAckPacket{PacketID: packetID, ReasonCode: ReasonSuccess}
	return p, EncodeUnsubAck(p, model.ProtocolLevel311)
}
