package publish

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sergev/antspeed/monitoring"
	"github.com/sergev/antspeed/speed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = speed.Sample{DeviceID: 4660, Speed: 8.5, Cadence: 240, Distance: 21.18}

func muteLogs(t *testing.T) {
	t.Helper()
	logf := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(logf) })
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	m := NewMessage(sample, at)
	assert.Equal(t, uint16(4660), m.DeviceID)
	assert.True(t, m.Time.Equal(at))
	assert.Equal(t, time.UTC, m.Time.Location())
	assert.Nil(t, m.RSSI)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"speed_mps":8.5`)
	assert.NotContains(t, string(data), "rssi")

	withRSSI := sample
	withRSSI.HasRSSI = true
	withRSSI.RSSI = -61
	withRSSI.Threshold = -90
	data, err = json.Marshal(NewMessage(withRSSI, at))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rssi":-61`)
	assert.Contains(t, string(data), `"threshold":-90`)
}

func TestWebSocketStreamsSamples(t *testing.T) {
	muteLogs(t)
	ws := NewWebSocket()
	srv := httptest.NewServer(ws)
	defer srv.Close()

	ws.Add(sample) // no clients yet

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ws.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ws.Add(sample)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, uint16(4660), m.DeviceID)
	assert.InDelta(t, 8.5, m.Speed, 1e-9)
	assert.InDelta(t, 240, m.Cadence, 1e-9)
	assert.InDelta(t, 21.18, m.Distance, 1e-9)

	ws.Close()
	assert.Equal(t, 0, ws.Clients())
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebSocketClientLeaves(t *testing.T) {
	muteLogs(t)
	ws := NewWebSocket()
	srv := httptest.NewServer(ws)
	defer srv.Close()
	defer ws.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ws.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return ws.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NotPanics(t, func() { ws.Add(sample) })
}

func TestRedisWithoutServer(t *testing.T) {
	muteLogs(t)
	r := NewRedis(context.Background(), "127.0.0.1:1", "")
	assert.Equal(t, DefaultChannel, r.Channel())

	r.Add(sample)
	assert.NoError(t, r.Close())
	assert.Equal(t, 0, r.Dropped())

	assert.NotPanics(t, func() { r.Add(sample) })
	assert.NoError(t, r.Close())
}
