package mqttcodec

import "github.com/devicelink/mqttbroker/internal/model"

// PingReqBytes and PingRespBytes are the fixed, zero-length-body encodings
// of PINGREQ/PINGRESP (spec.md §4.3 scenario 4: 0xC0 0x00 / 0xD0 0x00).
var (
	PingReqBytes  = []byte{byte(model.KindPingReq) << 4, 0x00}
	PingRespBytes = []byte{byte(model.KindPingResp) << 4, 0x00}
)

// DecodePingReq validates a zero-length PINGREQ body.
func DecodePingReq(body []byte) (PingReqPacket, error) {
	if len(body) != 0 {
		return PingReqPacket{}, malformed("pingreq: expected zero-length body, got %d bytes", len(body))
	}
	return PingReqPacket{}, nil
}

// NewPingResp returns the pre-serialized PINGRESP reply.
func NewPingResp() (PingRespPacket, []byte) {
	return PingRespPacket{}, PingRespBytes
}
