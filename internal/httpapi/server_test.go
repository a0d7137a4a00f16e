package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/devicebridge"
	"github.com/devicelink/mqttbroker/internal/model"
	"github.com/devicelink/mqttbroker/internal/subscript"
)

func newTestServer() (*Server, *subscript.Registry, *devicebridge.Bridge) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := subscript.New(logger)
	devices := devicebridge.New(logger)
	return New(logger, reg, devices), reg, devices
}

type fakeSender struct {
	ch chan model.Envelope
}

func (f *fakeSender) Deliver(e model.Envelope) { f.ch <- e }

func TestHandlePublishBroadcastsToSubscribers(t *testing.T) {
	s, reg, _ := newTestServer()
	sender := &fakeSender{ch: make(chan model.Envelope, 1)}
	reg.NewSubscript("room/1", "dev-1", sender)

	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`{"topic":"room/1","payload":{"x":1}}`))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	select {
	case env := <-sender.ch:
		require.JSONEq(t, `{"x":1}`, string(env.Payload.Body))
	case <-time.After(time.Second):
		t.Fatal("expected a delivered envelope")
	}
}

func TestHandlePublishRejectsMissingTopic(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`{"payload":{}}`))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleDeviceQRCodeSetsCode(t *testing.T) {
	s, _, devices := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/devices/dev-1/qrcode", strings.NewReader(`{"url":"https://example.com/qr"}`))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	url, ok := devices.GetQRCode("dev-1")
	require.True(t, ok)
	require.Equal(t, "https://example.com/qr", url)
}

func TestHandleHealthz(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
