package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// EncodeConnAck serializes a CONNACK. level selects the v3 return-code
// byte vs the v5 reason-code-plus-properties shape.
func EncodeConnAck(p ConnAckPacket, level model.ProtocolLevel) []byte {
	var body []byte
	var flags byte
	if p.SessionPresent {
		flags = 1
	}
	body = append(body, flags)

	if level == model.ProtocolLevel5 {
		body = append(body, byte(p.ReasonCode))
		body = append(body, p.Properties.Encode()...)
	} else {
		body = append(body, byte(p.ReturnCode))
	}

	dst := EncodeFixedHeader(nil, model.KindConnAck, 0, len(body))
	return append(dst, body...)
}

// DecodeConnAck parses a CONNACK body. The broker itself never receives a
// CONNACK; this is the client-side counterpart of EncodeConnAck.
func DecodeConnAck(body []byte, level model.ProtocolLevel) (ConnAckPacket, error) {
	var p ConnAckPacket
	if len(body) < 2 {
		return p, malformed("connack: short body")
	}
	p.SessionPresent = body[0]&0x01 != 0
	body = body[1:]

	if level == model.ProtocolLevel5 {
		p.ReasonCode = ReasonCode(body[0])
		body = body[1:]
		props, _, err := DecodeProperties(body, model.KindConnAck)
		if err != nil {
			return p, err
		}
		p.Properties = props
	} else {
		p.ReturnCode = ConnectReturnCode(body[0])
	}
	return p, nil
}

// NewConnAck builds an accepted/rejected v3.1.1 CONNACK, pre-serialized
// for cheap re-emission — spec.md §4.4's "construction helpers" contract.
func NewConnAck(sessionPresent bool, code ConnectReturnCode) (ConnAckPacket, []byte) {
	p := ConnAckPacket{SessionPresent: sessionPresent, ReturnCode: code}
	return p, EncodeConnAck(p, model.ProtocolLevel311)
}

// NewConnAckV5 builds a v5 CONNACK carrying props; the dispatcher passes
// DefaultV5ConnAckProperties (spec.md §4.7: "CONNACK with default property set").
func NewConnAckV5(sessionPresent bool, reason ReasonCode, props PropertyList) (ConnAckPacket, []byte) {
	p := ConnAckPacket{SessionPresent: sessionPresent, ReasonCode: reason, Properties: props}
	return p, EncodeConnAck(p, model.ProtocolLevel5)
}

// DefaultV5ConnAckProperties returns the broker's standard v5 CONNACK
// property set (spec.md §4.7).
func DefaultV5ConnAckProperties() PropertyList {
	return PropertyList{
		{ID: PropMaximumPacketSize, Value: uint32(1048576)},
		{ID: PropRetainAvailable, Value: byte(1)},
		{ID: PropWildcardSubAvailable, Value: byte(0)},
		{ID: PropSubIdentifierAvailable, Value: byte(0)},
		{ID: PropSharedSubAvailable, Value: byte(0)},
	}
}
