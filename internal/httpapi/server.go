// Package httpapi is the thin HTTP collaborator surface spec.md §6
// describes: a publish endpoint the registry fans out through, a QR-code
// endpoint that feeds the CONNECT-time "set-qrcode" replay (spec.md §4.9),
// a device-registry snapshot endpoint, and a health check. Grounded on
// JKI757-CatLocator/go-mqtt-server's
// internal/app.routes/handleBeaconPublish/handleHealthz
// (http.NewServeMux, typed JSON request structs, http.Error status codes),
// trimmed to those four routes — every beacon/training/room/export route
// the teacher carries belongs to the CatLocator product, not this broker.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devicelink/mqttbroker/internal/devicebridge"
	"github.com/devicelink/mqttbroker/internal/model"
	"github.com/devicelink/mqttbroker/internal/subscript"
)

// Server is the HTTP collaborator: a publish front door onto the
// subscription registry, plus device QR-code management.
type Server struct {
	logger   *slog.Logger
	registry *subscript.Registry
	devices  *devicebridge.Bridge
}

// New constructs a Server.
func New(logger *slog.Logger, registry *subscript.Registry, devices *devicebridge.Bridge) *Server {
	return &Server{logger: logger, registry: registry, devices: devices}
}

// Handler builds the mux routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/publish", s.handlePublish)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/devices/", s.handleDeviceQRCode)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handlePublish accepts {"topic": "...", "payload": {...}} and broadcasts
// it through the subscription registry as a server-originated publish
// (spec.md §6), with no connected client as the originator.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Topic == "" {
		http.Error(w, "topic required", http.StatusBadRequest)
		return
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	topic := model.Topic(req.Topic)
	pub := model.Publish{Topic: topic, QoS: model.QoS0, Body: payload}
	s.registry.Broadcast(topic, model.Envelope{Payload: pub})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// handleDevices returns a snapshot of the device registry
// (original_source/src/lib.rs's machineListSnapshot()).
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.devices.Snapshot())
}

// handleDeviceQRCode handles POST /devices/{id}/qrcode, recording a newly
// assigned QR code for the device; this is what a subsequent reconnect
// replays as a synthetic set-qrcode event (spec.md §4.9).
func (s *Server) handleDeviceQRCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/devices/")
	id, ok := strings.CutSuffix(rest, "/qrcode")
	if !ok || id == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.devices.SetQRCode(model.ClientID(id), req.URL)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
