package devicebridge

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelink/mqttbroker/internal/model"
)

func newTestBridge() *Bridge {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAppendThenRemoveRetainsEntry(t *testing.T) {
	b := newTestBridge()
	b.Append("dev-1", Record{})

	snap := b.Snapshot()
	require.True(t, snap["dev-1"].Online)

	b.Remove("dev-1")
	snap = b.Snapshot()
	_, ok := snap["dev-1"]
	require.True(t, ok, "entry retained after disconnect, per spec")
	require.False(t, snap["dev-1"].Online)
}

func TestSetAndGetQRCode(t *testing.T) {
	b := newTestBridge()

	_, ok := b.GetQRCode("dev-1")
	require.False(t, ok)

	b.SetQRCode("dev-1", "https://example.com/qr/dev-1")
	url, ok := b.GetQRCode("dev-1")
	require.True(t, ok)
	require.Equal(t, "https://example.com/qr/dev-1", url)
}

func TestSeedBulkLoadsRecords(t *testing.T) {
	b := newTestBridge()
	b.Seed(map[model.ClientID]Record{
		"dev-1": {QRCode: "qr-1"},
		"dev-2": {QRCode: "qr-2"},
	})

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "qr-1", snap["dev-1"].QRCode)
}

func TestEventEncode(t *testing.T) {
	e := Event{ID: "dev-1", Event: EventLogin, Data: "hello"}
	b := e.Encode()
	require.Contains(t, string(b), `"event":1`)
}
