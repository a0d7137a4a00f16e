// Package dispatch implements the protocol dispatcher (spec.md §4.7): the
// per-Line state machine that turns one decoded frame into response bytes
// and subscript/devicebridge side effects. Grounded on
// JKI757-CatLocator/go-mqtt-server's internal/mqttbroker.handleConn big
// switch over packetType plus its handleConnect/handleSubscribe/
// writeUnsubAck helpers, generalized into the AwaitingConnect/Connected/
// Terminated table spec.md §4.7 lays out and extended to the full QoS 1/2
// ack handshake and will-on-disconnect, neither of which the teacher's
// QoS-0-only broker implements.
package dispatch

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/devicelink/mqttbroker/internal/devicebridge"
	"github.com/devicelink/mqttbroker/internal/line"
	"github.com/devicelink/mqttbroker/internal/model"
	"github.com/devicelink/mqttbroker/internal/mqttcodec"
	"github.com/devicelink/mqttbroker/internal/subscript"
)

// Outcome is what handling one frame produced: zero or more response byte
// slices to write back to the socket (in order), and whether the Line
// should be torn down after writing them.
type Outcome struct {
	Responses [][]byte
	Terminate bool
}

// Dispatcher holds the two pieces of broker-wide shared state (the
// subscription registry and the device-registry bridge) it mutates on
// behalf of a Line. Both are constructed by the caller and injected — no
// package-level singletons.
type Dispatcher struct {
	logger   *slog.Logger
	registry *subscript.Registry
	devices  *devicebridge.Bridge
}

// New constructs a Dispatcher.
func New(logger *slog.Logger, registry *subscript.Registry, devices *devicebridge.Bridge) *Dispatcher {
	return &Dispatcher{logger: logger, registry: registry, devices: devices}
}

// HandleFrame is the state-table lookup from spec.md §4.7, applied to one
// complete frame already extracted by line.Line.Feed.
func (d *Dispatcher) HandleFrame(l *line.Line, frame line.Frame) Outcome {
	state := l.State()
	kind := frame.Header.Kind

	if state == line.AwaitingConnect {
		if kind != model.KindConnect {
			d.logger.Debug("closing line: non-connect received before connect", "kind", kind)
			return Outcome{Terminate: true}
		}
		return d.handleConnect(l, frame)
	}

	if kind == model.KindConnect {
		d.logger.Debug("closing line: connect received while already connected", "client", l.ClientID())
		return Outcome{Terminate: true}
	}

	level := l.ProtocolLevel()
	decoded, err := mqttcodec.Decode(frame.Header, frame.Body, level)
	if err != nil {
		d.logger.Debug("closing line: codec error", "client", l.ClientID(), "error", err)
		return Outcome{Terminate: true}
	}

	switch kind {
	case model.KindPublish:
		return d.handlePublish(l, decoded.Publish)
	case model.KindPubRec:
		return d.handlePubRec(l, decoded.Ack)
	case model.KindPubRel:
		return d.handlePubRel(l, decoded.Ack)
	case model.KindSubscribe:
		return d.handleSubscribe(l, decoded.Subscribe)
	case model.KindUnsubscribe:
		return d.handleUnsubscribe(l, decoded.Unsubscribe)
	case model.KindPingReq:
		_, bytes := mqttcodec.NewPingResp()
		return Outcome{Responses: [][]byte{bytes}}
	case model.KindDisconnect:
		return Outcome{Terminate: true}
	default:
		d.logger.Debug("closing line: unexpected packet kind in connected state", "kind", kind)
		return Outcome{Terminate: true}
	}
}

func (d *Dispatcher) handleConnect(l *line.Line, frame line.Frame) Outcome {
	cp, err := mqttcodec.DecodeConnect(frame.Body)
	if err != nil {
		if ce, ok := mqttcodec.AsCodecError(err); ok && ce.Kind == mqttcodec.ProtocolError {
			d.logger.Debug("rejecting connect: unsupported protocol level", "error", err)
			_, bytes := mqttcodec.NewConnAck(false, mqttcodec.UnacceptableProtocolVer)
			return Outcome{Responses: [][]byte{bytes}, Terminate: true}
		}
		d.logger.Debug("closing line: malformed connect", "error", err)
		return Outcome{Terminate: true}
	}

	clientID := cp.ClientID
	if clientID == "" {
		clientID = "anon-" + uuid.NewString()
	}

	l.SetClientID(model.ClientID(clientID))
	l.SetProtocolLevel(cp.Level)
	l.SetWill(cp.Will)
	l.SetState(line.Connected)

	d.devices.Append(model.ClientID(clientID), devicebridge.Record{})

	// spec.md §4.9: if a QR code was previously set for this device, replay
	// it as a synthetic set-qrcode event now that the device has reconnected.
	if qr, ok := d.devices.GetQRCode(model.ClientID(clientID)); ok {
		event := devicebridge.Event{ID: model.ClientID(clientID), Event: devicebridge.EventSetQrcode, Data: qr}
		topic := model.Topic(clientID + "-topic")
		pub := model.Publish{Topic: topic, QoS: model.QoS1, Body: event.Encode()}
		d.registry.Broadcast(topic, model.Envelope{Originator: model.ClientID(clientID), Payload: pub})
	}

	var responses [][]byte
	if cp.Level == model.ProtocolLevel5 {
		_, bytes := mqttcodec.NewConnAckV5(false, mqttcodec.ReasonSuccess, mqttcodec.DefaultV5ConnAckProperties())
		responses = append(responses, bytes)
	} else {
		_, bytes := mqttcodec.NewConnAck(false, mqttcodec.Accepted)
		responses = append(responses, bytes)
	}

	return Outcome{Responses: responses}
}

func (d *Dispatcher) handlePublish(l *line.Line, pub *mqttcodec.PublishPacket) Outcome {
	m := pub.ToModel()
	d.registry.Broadcast(m.Topic, model.Envelope{Originator: l.ClientID(), Payload: m})

	level := l.ProtocolLevel()
	switch m.QoS {
	case model.QoS0:
		return Outcome{}
	case model.QoS1:
		ack := mqttcodec.AckPacket{Kind: model.KindPubAck, PacketID: m.PacketID, ReasonCode: mqttcodec.ReasonSuccess}
		return Outcome{Responses: [][]byte{mqttcodec.EncodeAck(ack, level)}}
	case model.QoS2:
		// spec.md §4.7: the broker only emits PUBREC here — the full QoS 2
		// handshake is stateless on the broker side (no in-flight packet id
		// tracking); see spec.md §9's QoS 2 open issue.
		ack := mqttcodec.AckPacket{Kind: model.KindPubRec, PacketID: m.PacketID, ReasonCode: mqttcodec.ReasonSuccess}
		return Outcome{Responses: [][]byte{mqttcodec.EncodeAck(ack, level)}}
	default:
		return Outcome{Terminate: true}
	}
}

func (d *Dispatcher) handlePubRec(l *line.Line, ack *mqttcodec.AckPacket) Outcome {
	reply := mqttcodec.AckPacket{Kind: model.KindPubRel, PacketID: ack.PacketID, ReasonCode: mqttcodec.ReasonSuccess}
	return Outcome{Responses: [][]byte{mqttcodec.EncodeAck(reply, l.ProtocolLevel())}}
}

func (d *Dispatcher) handlePubRel(l *line.Line, ack *mqttcodec.AckPacket) Outcome {
	reply := mqttcodec.AckPacket{Kind: model.KindPubComp, PacketID: ack.PacketID, ReasonCode: mqttcodec.ReasonSuccess}
	return Outcome{Responses: [][]byte{mqttcodec.EncodeAck(reply, l.ProtocolLevel())}}
}

func (d *Dispatcher) handleSubscribe(l *line.Line, msgs []mqttcodec.SubscribeMessage) Outcome {
	if len(msgs) == 0 {
		return Outcome{Terminate: true}
	}
	level := l.ProtocolLevel()
	codes := make([]byte, 0, len(msgs))

	for _, msg := range msgs {
		topic := model.Topic(msg.Entry.Topic)
		granted := msg.Entry.QoS <= model.QoS2

		if granted {
			if d.registry.Contain(topic) {
				d.registry.Subscript(topic, l.ClientID(), l)
			} else {
				d.registry.NewSubscript(topic, l.ClientID(), l)
			}
		}

		if level == model.ProtocolLevel5 {
			codes = append(codes, byte(mqttcodec.GrantedSubAckCodeV5(byte(msg.Entry.QoS), granted)))
		} else {
			codes = append(codes, mqttcodec.GrantedSubAckCodeV3(byte(msg.Entry.QoS), granted))
		}
	}

	packetID := msgs[0].PacketID
	var bytes []byte
	if level == model.ProtocolLevel5 {
		bytes = mqttcodec.EncodeSubAck(mqttcodec.SubAckPacket{PacketID: packetID, ReasonCodes: codes}, level)
	} else {
		_, bytes = mqttcodec.NewSubAck(packetID, codes)
	}
	return Outcome{Responses: [][]byte{bytes}}
}

func (d *Dispatcher) handleUnsubscribe(l *line.Line, p *mqttcodec.UnsubscribePacket) Outcome {
	for _, t := range p.Topics {
		topic := model.Topic(t)
		if d.registry.IsSubscript(topic, l.ClientID()) {
			d.registry.Unsubscript(topic, l.ClientID())
		}
		// spec.md §4.7: unsubscribe from a non-subscribed topic is a silent
		// no-op; UNSUBACK is still emitted.
	}

	level := l.ProtocolLevel()
	var bytes []byte
	if level == model.ProtocolLevel5 {
		bytes = mqttcodec.EncodeUnsubAck(mqttcodec.UnsubAckPacket{PacketID: p.PacketID, ReasonCode: mqttcodec.ReasonSuccess}, level)
	} else {
		_, bytes = mqttcodec.NewUnsubAck(p.PacketID)
	}
	return Outcome{Responses: [][]byte{bytes}}
}

// Teardown runs the side effects common to every way a Line's life ends —
// an explicit DISCONNECT frame, a socket error, or a clean EOF. spec.md §9
// flags that the source only broadcasts the will on explicit DISCONNECT
// ("implementers should extend to unclean close and note the deviation");
// this implementation applies that extension by routing every termination
// path through Teardown instead of duplicating the will-broadcast logic
// inside HandleFrame's DISCONNECT case.
func (d *Dispatcher) Teardown(l *line.Line) {
	clientID := l.ClientID()
	if clientID == "" {
		return // never completed CONNECT; nothing was registered
	}

	will := l.Will()
	if will.Enabled {
		pub := model.Publish{Topic: will.Topic, QoS: will.QoS, Retain: will.Retain, Body: will.Message}
		d.registry.Broadcast(will.Topic, model.Envelope{Originator: clientID, Payload: pub})
	}

	d.registry.Exit(clientID)
	d.devices.Remove(clientID)
	l.Terminate()
}
