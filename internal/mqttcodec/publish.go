package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// PUBLISH header flag bits (spec.md §4.3): DUP bit 3, QoS bits 2..1, RETAIN bit 0.
const (
	publishFlagRetain = 1 << 0
	publishFlagQoSMask = 0x06
	publishFlagQoSShift = 1
	publishFlagDup      = 1 << 3
)

// DecodePublish parses a PUBLISH body given the fixed-header flags byte.
func DecodePublish(flags byte, body []byte, level model.ProtocolLevel) (PublishPacket, error) {
	var p PublishPacket
	p.Dup = flags&publishFlagDup != 0
	p.Retain = flags&publishFlagRetain != 0
	p.QoS = model.QoS((flags & publishFlagQoSMask) >> publishFlagQoSShift)
	if !p.QoS.Valid() {
		return p, malformed("publish: invalid qos %d in header flags", p.QoS)
	}

	topic, n, err := DecodeString(body)
	if err != nil {
		return p, malformed("publish: topic: %v", err)
	}
	body = body[n:]
	p.Topic = topic

	if p.QoS > model.QoS0 {
		id, n, err := DecodeUint16(body)
		if err != nil {
			return p, malformed("publish: packet id: %v", err)
		}
		if id == 0 {
			return p, malformed("publish: packet id 0 invalid for qos %d", p.QoS)
		}
		body = body[n:]
		p.PacketID = id
	}

	if level == model.ProtocolLevel5 {
		props, n, err := DecodeProperties(body, model.KindPublish)
		if err != nil {
			return p, err
		}
		body = body[n:]
		p.Properties = props
	}

	p.Body = append([]byte(nil), body...)
	return p, nil
}

// EncodePublish serializes a PUBLISH packet.
func EncodePublish(p PublishPacket, level model.ProtocolLevel) []byte {
	var body []byte
	body = EncodeString(body, p.Topic)
	if p.QoS > model.QoS0 {
		body = EncodeUint16(body, p.PacketID)
	}
	if level == model.ProtocolLevel5 {
		body = append(body, p.Properties.Encode()...)
	}
	body = append(body, p.Body...)

	var flags byte
	if p.Dup {
		flags |= publishFlagDup
	}
	flags |= byte(p.QoS) << publishFlagQoSShift
	if p.Retain {
		flags |= publishFlagRetain
	}

	dst := EncodeFixedHeader(nil, model.KindPublish, flags, len(body))
	return append(dst, body...)
}

// ToModel converts a decoded PublishPacket into the protocol-agnostic
// model.Publish value the registry and dispatcher operate on.
func (p PublishPacket) ToModel() model.Publish {
	return model.Publish{
		Topic:    model.Topic(p.Topic),
		QoS:      p.QoS,
		Dup:      p.Dup,
		Retain:   p.Retain,
		PacketID: p.PacketID,
		Body:     p.Body,
	}
}

// FromModel builds a PublishPacket from the protocol-agnostic model value,
// ready for EncodePublish.
func FromModel(m model.Publish) PublishPacket {
	return PublishPacket{
		Dup:      m.Dup,
		QoS:      m.QoS,
		Retain:   m.Retain,
		Topic:    string(m.Topic),
		PacketID: m.PacketID,
		Body:     m.Body,
	}
}

// NewPublish pre-serializes a server-originated PUBLISH (the will message
// on disconnect, or the HTTP collaborator's server-initiated publish API —
// spec.md §6).
func NewPublish(m model.Publish, level model.ProtocolLevel) (PublishPacket, []byte) {
	p := FromModel(m)
	return p, EncodePublish(p, level)
}
