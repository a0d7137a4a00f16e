package acceptor

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/devicebridge"
	"github.com/devicelink/mqttbroker/internal/dispatch"
	"github.com/devicelink/mqttbroker/internal/mqttcodec"
	"github.com/devicelink/mqttbroker/internal/subscript"
)

func newTestAcceptor() *Acceptor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := subscript.New(logger)
	devices := devicebridge.New(logger)
	d := dispatch.New(logger, reg, devices)
	return New(logger, d)
}

func TestServeAcceptsConnectAndPingRoundTrip(t *testing.T) {
	a := newTestAcceptor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	go func() { _ = a.Serve(ctx, addr) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	connect := mqttcodec.EncodeConnect(mqttcodecConnectPacket("acceptor-test"))
	_, err = conn.Write(connect)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	connack := make([]byte, 4)
	_, err = io.ReadFull(conn, connack)
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x02, 0x00, 0x00}, connack)

	_, err = conn.Write(mqttcodec.PingReqBytes)
	require.NoError(t, err)

	pingresp := make([]byte, 2)
	_, err = io.ReadFull(conn, pingresp)
	require.NoError(t, err)
	require.Equal(t, mqttcodec.PingRespBytes, pingresp)

	require.NoError(t, a.Stop())
}

func mqttcodecConnectPacket(clientID string) mqttcodec.ConnectPacket {
	return mqttcodec.ConnectPacket{Level: 4, ClientID: clientID, KeepAlive: 60}
}
