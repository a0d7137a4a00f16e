// Package devicebridge is the thin callback surface between the MQTT
// dispatcher and the device-registry auxiliary map spec.md §1 and §4.9
// describe: "machine id -> last known QR code / online state". Grounded
// on JKI757-CatLocator/go-mqtt-server's internal/store.Store (guarded
// in-memory map, one method per operation), simplified to drop SQLite
// persistence entirely — spec.md §6: "Persisted state: none."
package devicebridge

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/devicelink/mqttbroker/internal/model"
)

// EventKind is the synthetic event type carried in a server-initiated
// publish's JSON body (spec.md §6: "event ∈ {Login=1, SetQrcode=2}").
type EventKind int

const (
	EventLogin     EventKind = 1
	EventSetQrcode EventKind = 2
)

// Event is the JSON shape of a server-initiated publish body.
type Event struct {
	ID    model.ClientID `json:"id"`
	Event EventKind      `json:"event"`
	Data  string         `json:"data"`
}

// Encode serializes the event to JSON bytes, ready to use as a Publish body.
func (e Event) Encode() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Record is one device's registry entry.
type Record struct {
	ID       model.ClientID
	QRCode   string
	Online   bool
}

// Bridge is the process-wide device registry. Constructed explicitly and
// injected into the dispatcher and the HTTP layer (spec.md §9's
// dependency-injection redesign note), rather than a lazily-initialized
// global singleton.
type Bridge struct {
	logger *slog.Logger

	mu      sync.Mutex
	devices map[model.ClientID]Record
}

// New constructs an empty bridge.
func New(logger *slog.Logger) *Bridge {
	return &Bridge{logger: logger, devices: make(map[model.ClientID]Record)}
}

// Append registers a device, called on CONNECT (spec.md §4.9). A QR code
// already stored for id is kept when rec carries none.
func (b *Bridge) Append(id model.ClientID, rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.devices[id]; ok && rec.QRCode == "" {
		rec.QRCode = prev.QRCode
	}
	rec.ID = id
	rec.Online = true
	b.devices[id] = rec
}

// Remove marks a device offline on DISCONNECT; the entry itself is
// retained (spec.md §4.9: "marks offline; entry retained").
func (b *Bridge) Remove(id model.ClientID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.devices[id]; ok {
		rec.Online = false
		b.devices[id] = rec
	}
}

// SetQRCode records a newly assigned QR code for id, called by the HTTP
// collaborator (spec.md §6).
func (b *Bridge) SetQRCode(id model.ClientID, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := b.devices[id]
	rec.ID = id
	rec.QRCode = url
	b.devices[id] = rec
}

// GetQRCode returns the previously set QR code for id, if any, used at
// CONNECT time to decide whether to emit the synthetic set-qrcode
// broadcast (spec.md §4.9).
func (b *Bridge) GetQRCode(id model.ClientID) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.devices[id]
	if !ok || rec.QRCode == "" {
		return "", false
	}
	return rec.QRCode, true
}

// Snapshot returns every known device record (original_source/src/lib.rs's
// machineListSnapshot(), named but not elaborated on in spec.md §6).
func (b *Bridge) Snapshot() map[model.ClientID]Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[model.ClientID]Record, len(b.devices))
	for k, v := range b.devices {
		out[k] = v
	}
	return out
}

// Seed bulk-loads device records at startup (original_source's
// initMachines(map), named in spec.md §6's "Device registry callbacks").
func (b *Bridge) Seed(records map[model.ClientID]Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range records {
		v.ID = k
		b.devices[k] = v
	}
}
