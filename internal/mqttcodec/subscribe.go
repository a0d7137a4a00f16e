package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// Subscribe options byte bits (spec.md §4.3): QoS bits 1..0, NoLocal bit 2
// (v5), RetainAsPublished bit 3 (v5), RetainHandling bits 5..4 (v5).
const (
	subOptQoSMask       = 0x03
	subOptNoLocal       = 1 << 2
	subOptRetainAsPub   = 1 << 3
	subOptRetainShift   = 4
	subOptRetainMask    = 0x30
)

// DecodeSubscribe parses a SUBSCRIBE body into one SubscribeMessage per
// requested topic, each carrying the packet's shared packet id and
// property list (spec.md §4.3).
func DecodeSubscribe(body []byte, level model.ProtocolLevel) ([]SubscribeMessage, error) {
	id, n, err := DecodeUint16(body)
	if err != nil {
		return nil, malformed("subscribe: packet id: %v", err)
	}
	body = body[n:]

	var props PropertyList
	if level == model.ProtocolLevel5 {
		p, n, err := DecodeProperties(body, model.KindSubscribe)
		if err != nil {
			return nil, err
		}
		body = body[n:]
		props = p
	}

	var out []SubscribeMessage
	for len(body) > 0 {
		topic, n, err := DecodeString(body)
		if err != nil {
			return nil, malformed("subscribe: topic: %v", err)
		}
		body = body[n:]
		if len(body) == 0 {
			return nil, malformed("subscribe: missing options byte for topic %q", topic)
		}
		opts := body[0]
		body = body[1:]

		entry := SubscribeEntry{
			Topic:             topic,
			QoS:               model.QoS(opts & subOptQoSMask),
			NoLocal:           opts&subOptNoLocal != 0,
			RetainAsPublished: opts&subOptRetainAsPub != 0,
			RetainHandling:    (opts & subOptRetainMask) >> subOptRetainShift,
		}
		out = append(out, SubscribeMessage{PacketID: id, Entry: entry, Properties: props})
	}
	if len(out) == 0 {
		return nil, malformed("subscribe: no topic entries")
	}
	return out, nil
}

// EncodeSubscribe serializes a set of SubscribeMessage values that share a
// packet id back into a single SUBSCRIBE packet. The broker never
// originates a SUBSCRIBE; the dispatcher tests use this to build frames.
func EncodeSubscribe(msgs []SubscribeMessage, level model.ProtocolLevel) []byte {
	var body []byte
	body = EncodeUint16(body, msgs[0].PacketID)
	if level == model.ProtocolLevel5 {
		body = append(body, msgs[0].Properties.Encode()...)
	}
	for _, m := range msgs {
		body = EncodeString(body, m.Entry.Topic)
		opts := byte(m.Entry.QoS) & subOptQoSMask
		if m.Entry.NoLocal {
			opts |= subOptNoLocal
		}
		if m.Entry.RetainAsPublished {
			opts |= subOptRetainAsPub
		}
		opts |= (m.Entry.RetainHandling << subOptRetainShift) & subOptRetainMask
		body = append(body, opts)
	}
	dst := EncodeFixedHeader(nil, model.KindSubscribe, 0b0010, len(body))
	return append(dst, body...)
}

// DecodeUnsubscribe parses an UNSUBSCRIBE body.
func DecodeUnsubscribe(body []byte, level model.ProtocolLevel) (UnsubscribePacket, error) {
	var p UnsubscribePacket
	id, n, err := DecodeUint16(body)
	if err != nil {
		return p, malformed("unsubscribe: packet id: %v", err)
	}
	p.PacketID = id
	body = body[n:]

	if level == model.ProtocolLevel5 {
		props, n, err := DecodeProperties(body, model.KindUnsubscribe)
		if err != nil {
			return p, err
		}
		body = body[n:]
		p.Properties = props
	}

	for len(body) > 0 {
		topic, n, err := DecodeString(body)
		if err != nil {
			return p, malformed("unsubscribe: topic: %v", err)
		}
		body = body[n:]
		p.Topics = append(p.Topics, topic)
	}
	if len(p.Topics) == 0 {
		return p, malformed("unsubscribe: no topics")
	}
	return p, nil
}

// EncodeUnsubscribe serializes an UNSUBSCRIBE packet.
func EncodeUnsubscribe(p UnsubscribePacket, level model.ProtocolLevel) []byte {
	var body []byte
	body = EncodeUint16(body, p.PacketID)
	if level == model.ProtocolLevel5 {
		body = append(body, p.Properties.Encode()...)
	}
	for _, t := range p.Topics {
		body = EncodeString(body, t)
	}
	dst := EncodeFixedHeader(nil, model.KindUnsubscribe, 0b0010, len(body))
	return append(dst, body...)
}
