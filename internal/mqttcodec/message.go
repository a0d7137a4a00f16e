// Package mqttcodec implements the byte-level wire format for MQTT 3.1.1
// (and, partially, 5.0): fixed headers, the variable-length Remaining
// Length integer, v5 property blocks, and per-packet-kind encode/decode.
package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// ConnectPacket is the decoded form of a CONNECT control packet.
type ConnectPacket struct {
	ProtocolName string
	Level        model.ProtocolLevel
	CleanSession bool
	UsernameFlag bool
	PasswordFlag bool
	KeepAlive    uint16
	Properties   PropertyList // v5 only; nil under v3.1.1

	ClientID string

	Will           model.Will
	WillProperties PropertyList // v5 only

	Username string
	Password []byte
}

// ConnAckPacket is the decoded/constructed form of a CONNACK.
type ConnAckPacket struct {
	SessionPresent bool
	ReturnCode     ConnectReturnCode // v3.1.1
	ReasonCode     ReasonCode        // v5
	Properties     PropertyList
}

// PublishPacket is the decoded/constructed form of a PUBLISH.
type PublishPacket struct {
	Dup        bool
	QoS        model.QoS
	Retain     bool
	Topic      string
	PacketID   uint16 // only present when QoS > 0
	Properties PropertyList
	Body       []byte
}

// AckPacket is the shared shape of PUBACK, PUBREC, PUBREL, and PUBCOMP:
// a packet id, plus (v5 only) a reason code and optional properties.
type AckPacket struct {
	Kind       model.PacketKind
	PacketID   uint16
	ReasonCode ReasonCode
	Properties PropertyList
}

// SubscribeEntry is one (topic, options) pair from a SUBSCRIBE payload.
type SubscribeEntry struct {
	Topic             string
	QoS               model.QoS
	NoLocal           bool // v5
	RetainAsPublished bool // v5
	RetainHandling    byte // v5, bits 5..4 of the options byte
}

// SubscribeMessage is one topic entry from a SUBSCRIBE packet. Decoding a
// SUBSCRIBE produces one SubscribeMessage per topic, each carrying the
// packet's shared packet id — this mirrors the source implementation's
// decode shape (spec.md §4.3) rather than returning a single struct with
// an Entries slice.
type SubscribeMessage struct {
	PacketID   uint16
	Entry      SubscribeEntry
	Properties PropertyList // attached once per packet; repeated on each message here for convenience
}

// SubAckPacket is the constructed/decoded form of a SUBACK: one reason
// code per requested topic, in request order.
type SubAckPacket struct {
	PacketID    uint16
	Properties  PropertyList
	ReasonCodes []byte
}

// UnsubscribePacket is the decoded form of an UNSUBSCRIBE.
type UnsubscribePacket struct {
	PacketID   uint16
	Properties PropertyList
	Topics     []string
}

// UnsubAckPacket is the constructed/decoded form of an UNSUBACK.
type UnsubAckPacket struct {
	PacketID   uint16
	Properties PropertyList
	ReasonCode ReasonCode // v5 only
}

// PingReqPacket and PingRespPacket are header-only, zero-length-body
// packets; they carry no fields.
type PingReqPacket struct{}
type PingRespPacket struct{}

// DisconnectPacket is the decoded/constructed form of DISCONNECT. Under
// v3.1.1 it is header-only (ReasonCode/Properties are unused); under v5 it
// carries a reason code and optional properties.
type DisconnectPacket struct {
	ReasonCode ReasonCode
	Properties PropertyList
}

// AuthPacket is the decoded/constructed form of AUTH (v5 only).
type AuthPacket struct {
	ReasonCode ReasonCode
	Properties PropertyList
}
