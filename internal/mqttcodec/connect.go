package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// Connect flag bits, low to high (spec.md §4.3).
const (
	connectFlagReserved     = 1 << 0
	connectFlagCleanSession = 1 << 1
	connectFlagWill         = 1 << 2
	connectFlagWillQoSShift = 3 // 2 bits
	connectFlagWillRetain   = 1 << 5
	connectFlagPassword     = 1 << 6
	connectFlagUsername     = 1 << 7
)

// DecodeConnect parses a CONNECT body. level is not known in advance — it
// is read from the body itself (the protocol-level byte) and returned so
// the caller (internal/dispatch) can select the codec branch for subsequent
// packets on this connection.
func DecodeConnect(body []byte) (ConnectPacket, error) {
	var p ConnectPacket

	name, n, err := DecodeString(body)
	if err != nil {
		return p, malformed("connect: protocol name: %v", err)
	}
	body = body[n:]
	p.ProtocolName = name

	if len(body) < 1 {
		return p, malformed("connect: missing protocol level")
	}
	p.Level = model.ProtocolLevel(body[0])
	body = body[1:]
	if !p.Level.Supported() {
		return p, protocolErr("connect: unsupported protocol level %d", p.Level)
	}

	if len(body) < 1 {
		return p, malformed("connect: missing connect flags")
	}
	flags := body[0]
	body = body[1:]

	p.CleanSession = flags&connectFlagCleanSession != 0
	p.Will.Enabled = flags&connectFlagWill != 0
	p.Will.QoS = model.QoS((flags >> connectFlagWillQoSShift) & 0x03)
	p.Will.Retain = flags&connectFlagWillRetain != 0
	p.PasswordFlag = flags&connectFlagPassword != 0
	p.UsernameFlag = flags&connectFlagUsername != 0

	if p.Will.Enabled && !p.Will.QoS.Valid() {
		return p, malformed("connect: will-qos %d invalid", p.Will.QoS)
	}

	ka, n, err := DecodeUint16(body)
	if err != nil {
		return p, malformed("connect: keep-alive: %v", err)
	}
	body = body[n:]
	p.KeepAlive = ka

	if p.Level == model.ProtocolLevel5 {
		props, n, err := DecodeProperties(body, model.KindConnect)
		if err != nil {
			return p, err
		}
		body = body[n:]
		p.Properties = props
	}

	clientID, n, err := DecodeString(body)
	if err != nil {
		return p, malformed("connect: client id: %v", err)
	}
	body = body[n:]
	p.ClientID = clientID

	if p.Will.Enabled {
		if p.Level == model.ProtocolLevel5 {
			wprops, n, err := DecodeProperties(body, model.KindConnect)
			if err != nil {
				return p, err
			}
			body = body[n:]
			p.WillProperties = wprops
		}
		topic, n, err := DecodeString(body)
		if err != nil {
			return p, malformed("connect: will topic: %v", err)
		}
		body = body[n:]
		p.Will.Topic = model.Topic(topic)

		msg, n, err := DecodeBinary(body)
		if err != nil {
			return p, malformed("connect: will message: %v", err)
		}
		body = body[n:]
		p.Will.Message = msg
	}

	if p.UsernameFlag {
		username, n, err := DecodeString(body)
		if err != nil {
			return p, malformed("connect: username: %v", err)
		}
		body = body[n:]
		p.Username = username
	}

	if p.PasswordFlag {
		password, n, err := DecodeBinary(body)
		if err != nil {
			return p, malformed("connect: password: %v", err)
		}
		body = body[n:]
		p.Password = password
	}

	return p, nil
}

// EncodeConnect serializes a CONNECT packet. Provided for completeness and
// for round-trip tests; the broker itself never originates a CONNECT.
func EncodeConnect(p ConnectPacket) []byte {
	var body []byte
	body = EncodeString(body, "MQTT")
	body = append(body, byte(p.Level))

	var flags byte
	if p.CleanSession {
		flags |= connectFlagCleanSession
	}
	if p.Will.Enabled {
		flags |= connectFlagWill
		flags |= byte(p.Will.QoS) << connectFlagWillQoSShift
		if p.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if p.PasswordFlag {
		flags |= connectFlagPassword
	}
	if p.UsernameFlag {
		flags |= connectFlagUsername
	}
	body = append(body, flags)
	body = EncodeUint16(body, p.KeepAlive)

	if p.Level == model.ProtocolLevel5 {
		body = append(body, p.Properties.Encode()...)
	}

	body = EncodeString(body, p.ClientID)

	if p.Will.Enabled {
		if p.Level == model.ProtocolLevel5 {
			body = append(body, p.WillProperties.Encode()...)
		}
		body = EncodeString(body, string(p.Will.Topic))
		body = EncodeBinary(body, p.Will.Message)
	}

	if p.UsernameFlag {
		body = EncodeString(body, p.Username)
	}
	if p.PasswordFlag {
		body = EncodeBinary(body, p.Password)
	}

	dst := EncodeFixedHeader(nil, model.KindConnect, 0, len(body))
	return append(dst, body...)
}
