package mqttcodec

import "fmt"

// ErrorKind classifies a codec failure per the taxonomy in spec.md §7.
type ErrorKind int

const (
	// MalformedPacket covers truncated bodies, bad UTF-8, varint overflow,
	// inconsistent fixed-header flags, and out-of-range QoS values.
	MalformedPacket ErrorKind = iota
	// ProtocolError covers packets that are well-formed but not acceptable
	// at the protocol level in use (an unsupported CONNECT protocol level,
	// or AUTH under v3.1.1).
	ProtocolError
	// UnsupportedCapability covers a v5 property appearing on a packet kind
	// that does not accept it. The decoder skips such properties rather
	// than returning this kind (see DecodeProperties).
	UnsupportedCapability
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedPacket:
		return "MalformedPacket"
	case ProtocolError:
		return "ProtocolError"
	case UnsupportedCapability:
		return "UnsupportedCapability"
	default:
		return "UnknownCodecError"
	}
}

// Error is the typed codec error the dispatcher branches on: a malformed
// or protocol-violating packet terminates the connection (spec.md §7); an
// UnsupportedCapability error is, in the source behavior this broker
// preserves, skipped rather than surfaced (see properties.go).
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func malformed(format string, args ...any) error {
	return &Error{Kind: MalformedPacket, Msg: fmt.Sprintf(format, args...)}
}

func protocolErr(format string, args ...any) error {
	return &Error{Kind: ProtocolError, Msg: fmt.Sprintf(format, args...)}
}

// AsCodecError unwraps err into a *Error, if it is one.
func AsCodecError(err error) (*Error, bool) {
	ce, ok := err.(*Error)
	return ce, ok
}
