package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// DecodeAuth parses an AUTH body (v5 only; the dispatcher never receives
// one under v3.1.1, since AUTH does not exist in that protocol level).
func DecodeAuth(body []byte) (AuthPacket, error) {
	p := AuthPacket{ReasonCode: ReasonSuccess}
	if len(body) == 0 {
		return p, nil
	}
	p.ReasonCode = ReasonCode(body[0])
	body = body[1:]
	if len(body) > 0 {
		props, _, err := DecodeProperties(body, model.KindAuth)
		if err != nil {
			return p, err
		}
		p.Properties = props
	}
	return p, nil
}

// EncodeAuth serializes an AUTH packet.
func EncodeAuth(p AuthPacket) []byte {
	var body []byte
	if p.ReasonCode != ReasonSuccess || len(p.Properties) > 0 {
		body = append(body, byte(p.ReasonCode))
		body = append(body, p.Properties.Encode()...)
	}
	dst := EncodeFixedHeader(nil, model.KindAuth, 0, len(body))
	return append(dst, body...)
}
