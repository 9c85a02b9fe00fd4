package server

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centerback/centerback-go/internal/models"
	"github.com/centerback/centerback-go/internal/service"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 1
	}, time.Second, 10*time.Millisecond, "client registers with the hub")

	return conn
}

func TestHubBroadcastDelivers(t *testing.T) {
	hub := NewHub(testLogger())
	conn := dialHub(t, hub)

	hub.Broadcast(service.AlertSummary{
		AlertID:       "a1",
		Type:          "DDoS",
		Severity:      models.SeverityCritical,
		SourceIP:      "10.0.0.1",
		DestinationIP: "10.0.0.2",
		Confidence:    0.97,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got service.AlertSummary
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, models.SeverityCritical, got.Severity)
}

func TestHubConcurrentBroadcasts(t *testing.T) {
	hub := NewHub(testLogger())
	conn := dialHub(t, hub)

	// One dispatcher goroutine per alert means broadcasts overlap; every
	// frame must still arrive intact on the single connection.
	const writers = 16
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				hub.Broadcast(service.AlertSummary{
					AlertID:  "a1",
					Type:     "PortScan",
					Severity: models.SeverityHigh,
				})
			}
		}()
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for received := 0; received < writers*perWriter; received++ {
		var got service.AlertSummary
		require.NoError(t, conn.ReadJSON(&got))
		require.Equal(t, "PortScan", got.Type)
	}
	wg.Wait()

	hub.mu.Lock()
	clients := len(hub.conns)
	hub.mu.Unlock()
	assert.Equal(t, 1, clients, "client survives concurrent broadcasts")
}

func TestHubDropsClosedClient(t *testing.T) {
	hub := NewHub(testLogger())
	conn := dialHub(t, hub)

	conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 0
	}, 2*time.Second, 10*time.Millisecond, "closed client is dropped")

	// Broadcasting to nobody is a no-op.
	hub.Broadcast(service.AlertSummary{AlertID: "a2"})
}
