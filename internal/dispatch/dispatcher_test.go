package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/devicebridge"
	"github.com/devicelink/mqttbroker/internal/line"
	"github.com/devicelink/mqttbroker/internal/model"
	"github.com/devicelink/mqttbroker/internal/mqttcodec"
	"github.com/devicelink/mqttbroker/internal/subscript"
)

func newTestDispatcher() (*Dispatcher, *subscript.Registry, *devicebridge.Bridge) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := subscript.New(logger)
	devices := devicebridge.New(logger)
	return New(logger, reg, devices), reg, devices
}

func connectFrame(clientID string) line.Frame {
	p := mqttcodec.ConnectPacket{Level: model.ProtocolLevel311, ClientID: clientID, KeepAlive: 60}
	raw := mqttcodec.EncodeConnect(p)
	hdr, err := mqttcodec.DecodeFixedHeader(raw)
	if err != nil {
		panic(err)
	}
	return line.Frame{Header: hdr, Body: raw[hdr.HeaderByteLen:]}
}

func TestHandleConnectAcceptsAndRegistersDevice(t *testing.T) {
	d, _, devices := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	out := d.HandleFrame(l, connectFrame("dev-1"))
	require.False(t, out.Terminate)
	require.Len(t, out.Responses, 1)
	require.Equal(t, line.Connected, l.State())
	require.Equal(t, model.ClientID("dev-1"), l.ClientID())

	snap := devices.Snapshot()
	require.True(t, snap["dev-1"].Online)
}

func TestHandleConnectRejectsSecondConnect(t *testing.T) {
	d, _, _ := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	d.HandleFrame(l, connectFrame("dev-1"))
	out := d.HandleFrame(l, connectFrame("dev-1"))
	require.True(t, out.Terminate)
}

func TestHandleConnectRejectsUnsupportedProtocolLevel(t *testing.T) {
	d, _, _ := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	p := mqttcodec.ConnectPacket{Level: model.ProtocolLevel(6), ClientID: "dev-1"}
	raw := mqttcodec.EncodeConnect(p)
	hdr, err := mqttcodec.DecodeFixedHeader(raw)
	require.NoError(t, err)
	frame := line.Frame{Header: hdr, Body: raw[hdr.HeaderByteLen:]}

	out := d.HandleFrame(l, frame)
	require.True(t, out.Terminate)
	require.Len(t, out.Responses, 1, "an unsupported protocol level still gets a CONNACK before close")
}

func TestHandleSubscribeThenPublishSuppressesSelfDelivery(t *testing.T) {
	d, _, _ := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(l, connectFrame("dev-1"))

	sub := mqttcodec.EncodeSubscribe([]mqttcodec.SubscribeMessage{
		{PacketID: 1, Entry: mqttcodec.SubscribeEntry{Topic: "room/1", QoS: model.QoS0}},
	}, model.ProtocolLevel311)
	hdr, err := mqttcodec.DecodeFixedHeader(sub)
	require.NoError(t, err)
	out := d.HandleFrame(l, line.Frame{Header: hdr, Body: sub[hdr.HeaderByteLen:]})
	require.False(t, out.Terminate)
	require.Len(t, out.Responses, 1)
	require.Equal(t, []byte{0x90, 0x03, 0x00, 0x01, 0x00}, out.Responses[0])

	pub := mqttcodec.EncodePublish(mqttcodec.PublishPacket{QoS: model.QoS0, Topic: "room/1", Body: []byte("hi")}, model.ProtocolLevel311)
	hdr, err = mqttcodec.DecodeFixedHeader(pub)
	require.NoError(t, err)
	out = d.HandleFrame(l, line.Frame{Header: hdr, Body: pub[hdr.HeaderByteLen:]})
	require.False(t, out.Terminate)
	require.Empty(t, out.Responses, "QoS 0 publish gets no ack")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, ok := l.Recv(ctx)
	require.False(t, ok, "the publisher is also the sole subscriber, so self-delivery must be suppressed")
}

func TestHandleSubscribeThenPublishDeliversToOtherSubscriber(t *testing.T) {
	d, reg, _ := newTestDispatcher()
	publisher := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(publisher, connectFrame("dev-1"))

	observer := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(observer, connectFrame("observer"))
	reg.NewSubscript("room/1", observer.ClientID(), observer)

	pub := mqttcodec.EncodePublish(mqttcodec.PublishPacket{QoS: model.QoS0, Topic: "room/1", Body: []byte("hi")}, model.ProtocolLevel311)
	hdr, err := mqttcodec.DecodeFixedHeader(pub)
	require.NoError(t, err)
	out := d.HandleFrame(publisher, line.Frame{Header: hdr, Body: pub[hdr.HeaderByteLen:]})
	require.False(t, out.Terminate)
	require.Empty(t, out.Responses, "QoS 0 publish gets no ack")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := observer.Recv(ctx)
	require.True(t, ok, "a distinct subscriber must still receive the publish")
	env, isSub := msg.IsSubscription()
	require.True(t, isSub)
	require.Equal(t, []byte("hi"), env.Payload.Body)
}

func TestHandleQoS1PublishRepliesPuback(t *testing.T) {
	d, _, _ := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(l, connectFrame("dev-1"))

	pub := mqttcodec.EncodePublish(mqttcodec.PublishPacket{QoS: model.QoS1, Topic: "room/1", PacketID: 7, Body: []byte("hi")}, model.ProtocolLevel311)
	hdr, err := mqttcodec.DecodeFixedHeader(pub)
	require.NoError(t, err)
	out := d.HandleFrame(l, line.Frame{Header: hdr, Body: pub[hdr.HeaderByteLen:]})
	require.Len(t, out.Responses, 1)
	require.Equal(t, []byte{0x40, 0x02, 0x00, 0x07}, out.Responses[0])
}

func TestHandleUnsubscribeAlwaysReplies(t *testing.T) {
	d, _, _ := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(l, connectFrame("dev-1"))

	unsub := mqttcodec.EncodeUnsubscribe(mqttcodec.UnsubscribePacket{PacketID: 3, Topics: []string{"nope"}}, model.ProtocolLevel311)
	hdr, err := mqttcodec.DecodeFixedHeader(unsub)
	require.NoError(t, err)
	out := d.HandleFrame(l, line.Frame{Header: hdr, Body: unsub[hdr.HeaderByteLen:]})
	require.False(t, out.Terminate)
	require.Len(t, out.Responses, 1, "unsubscribe from a non-subscribed topic still gets an unsuback")
}

func TestHandlePingReqRepliesPingResp(t *testing.T) {
	d, _, _ := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(l, connectFrame("dev-1"))

	out := d.HandleFrame(l, line.Frame{Header: mqttcodec.FixedHeader{Kind: model.KindPingReq, HeaderByteLen: 2}, Body: nil})
	require.Equal(t, [][]byte{{0xD0, 0x00}}, out.Responses)
}

func TestTeardownBroadcastsWillAndRemovesFromRegistry(t *testing.T) {
	d, reg, devices := newTestDispatcher()
	l := line.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.HandleFrame(l, connectFrame("dev-1"))
	l.SetWill(model.Will{Enabled: true, Topic: "status/dev-1", Message: []byte("offline")})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	observer := line.New(logger)
	d.HandleFrame(observer, connectFrame("observer"))
	reg.NewSubscript("status/dev-1", observer.ClientID(), observer)

	d.Teardown(l)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := observer.Recv(ctx)
	require.True(t, ok)
	env, isSub := msg.IsSubscription()
	require.True(t, isSub)
	require.Equal(t, model.ClientID("dev-1"), env.Originator)
	require.Equal(t, []byte("offline"), env.Payload.Body)

	require.False(t, reg.IsSubscript("status/dev-1", "dev-1"))
	snap := devices.Snapshot()
	require.False(t, snap["dev-1"].Online)
}
