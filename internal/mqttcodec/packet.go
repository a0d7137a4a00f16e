package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// Decoded wraps the result of decoding one complete control packet. Exactly
// one field is populated, selected by Kind; this is the C4 "sum type per
// protocol version" spec.md §4.4 calls for, expressed as a tagged struct
// rather than an interface hierarchy since callers (internal/dispatch)
// switch on Kind anyway.
type Decoded struct {
	Kind model.PacketKind

	Connect     *ConnectPacket
	Publish     *PublishPacket
	Ack         *AckPacket
	Subscribe   []SubscribeMessage
	SubAck      *SubAckPacket
	Unsubscribe *UnsubscribePacket
	UnsubAck    *UnsubAckPacket
	PingReq     *PingReqPacket
	PingResp    *PingRespPacket
	Disconnect  *DisconnectPacket
	Auth        *AuthPacket
}

// Decode parses one complete packet body (everything after the fixed
// header) given the already-parsed FixedHeader and the connection's
// current protocol level. level is ignored for CONNECT, which carries its
// own protocol-level byte.
func Decode(header FixedHeader, body []byte, level model.ProtocolLevel) (Decoded, error) {
	switch header.Kind {
	case model.KindConnect:
		p, err := DecodeConnect(body)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Connect: &p}, nil

	case model.KindPublish:
		p, err := DecodePublish(header.Flags, body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Publish: &p}, nil

	case model.KindPubAck, model.KindPubRec, model.KindPubRel, model.KindPubComp:
		p, err := DecodeAck(header.Kind, body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Ack: &p}, nil

	case model.KindSubscribe:
		msgs, err := DecodeSubscribe(body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Subscribe: msgs}, nil

	case model.KindSubAck:
		p, err := DecodeSubAck(body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, SubAck: &p}, nil

	case model.KindUnsubscribe:
		p, err := DecodeUnsubscribe(body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Unsubscribe: &p}, nil

	case model.KindUnsubAck:
		p, err := DecodeUnsubAck(body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, UnsubAck: &p}, nil

	case model.KindPingReq:
		p, err := DecodePingReq(body)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, PingReq: &p}, nil

	case model.KindPingResp:
		if len(body) != 0 {
			return Decoded{}, malformed("pingresp: expected zero-length body, got %d bytes", len(body))
		}
		p := PingRespPacket{}
		return Decoded{Kind: header.Kind, PingResp: &p}, nil

	case model.KindDisconnect:
		p, err := DecodeDisconnect(body, level)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Disconnect: &p}, nil

	case model.KindAuth:
		if level != model.ProtocolLevel5 {
			return Decoded{}, protocolErr("auth: not valid under protocol level %d", level)
		}
		p, err := DecodeAuth(body)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: header.Kind, Auth: &p}, nil

	default:
		return Decoded{}, malformed("unknown packet kind %d", header.Kind)
	}
}
