package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// DisconnectBytesV3 is the fixed, zero-length-body v3.1.1 DISCONNECT.
var DisconnectBytesV3 = []byte{byte(model.KindDisconnect) << 4, 0x00}

// DecodeDisconnect parses a DISCONNECT body. Under v3.1.1 the body is
// always empty; under v5 it carries an optional reason code and properties
// (both may be entirely absent, in which case Success/no-properties is
// assumed, mirroring the MQTT 5.0 spec's "may be omitted" allowance).
func DecodeDisconnect(body []byte, level model.ProtocolLevel) (DisconnectPacket, error) {
	p := DisconnectPacket{ReasonCode: ReasonSuccess}
	if level != model.ProtocolLevel5 {
		if len(body) != 0 {
			return p, malformed("disconnect: expected zero-length body under v3.1.1, got %d bytes", len(body))
		}
		return p, nil
	}
	if len(body) == 0 {
		return p, nil
	}
	p.ReasonCode = ReasonCode(body[0])
	body = body[1:]
	if len(body) > 0 {
		props, _, err := DecodeProperties(body, model.KindDisconnect)
		if err != nil {
			return p, err
		}
		p.Properties = props
	}
	return p, nil
}

// EncodeDisconnect serializes a DISCONNECT packet for the given level.
func EncodeDisconnect(p DisconnectPacket, level model.ProtocolLevel) []byte {
	if level != model.ProtocolLevel5 {
		return append([]byte(nil), DisconnectBytesV3...)
	}
	var body []byte
	if p.ReasonCode != ReasonSuccess || len(p.Properties) > 0 {
		body = append(body, byte(p.ReasonCode))
		body = append(body, p.Properties.Encode()...)
	}
	dst := EncodeFixedHeader(nil, model.KindDisconnect, 0, len(body))
	return append(dst, body...)
}
