package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, streams ...string) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(streams, w, r)
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, stream string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(stream) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	hub, url := startHub(t, StreamAlerts)
	first := dial(t, url)
	second := dial(t, url)
	waitForSubscribers(t, hub, StreamAlerts, 2)

	delivered, err := hub.Broadcast(StreamAlerts, Message{Event: "alert", Data: map[string]string{"id": "w-1"}})
	require.NoError(t, err)
	require.Equal(t, 2, delivered)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Stream string            `json:"stream"`
			Event  string            `json:"event"`
			Data   map[string]string `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, StreamAlerts, msg.Stream)
		require.Equal(t, "alert", msg.Event)
		require.Equal(t, "w-1", msg.Data["id"])
	}
}

func TestBroadcastWithoutSubscribersSucceeds(t *testing.T) {
	hub := NewHub(zap.NewNop())
	delivered, err := hub.Broadcast(StreamAlerts, Message{Event: "alert"})
	require.NoError(t, err)
	require.Zero(t, delivered)

	_, err = hub.Broadcast("  ", Message{})
	require.Error(t, err)
}

func TestControlMessagesChangeSubscriptions(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "subscribe", Streams: []string{"Alerts", "alerts"}}))
	waitForSubscribers(t, hub, StreamAlerts, 1)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "unsubscribe", Streams: []string{StreamAlerts}}))
	waitForSubscribers(t, hub, StreamAlerts, 0)
}

func TestDisconnectRemovesSubscriber(t *testing.T) {
	hub, url := startHub(t, StreamAlerts)
	conn := dial(t, url)
	waitForSubscribers(t, hub, StreamAlerts, 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, hub, StreamAlerts, 0)
}

func TestClosedHubRejectsBroadcasts(t *testing.T) {
	hub, url := startHub(t, StreamAlerts)
	dial(t, url)
	waitForSubscribers(t, hub, StreamAlerts, 1)

	require.False(t, hub.Closed())
	hub.Close()
	require.True(t, hub.Closed())
	waitForSubscribers(t, hub, StreamAlerts, 0)

	_, err := hub.Broadcast(StreamAlerts, Message{Event: "alert"})
	require.ErrorIs(t, err, ErrHubClosed)
}

func TestHostHelpers(t *testing.T) {
	require.Equal(t, "example.com", hostWithoutPort("https://example.com:8443"))
	require.Equal(t, "127.0.0.1", hostWithoutPort("127.0.0.1:8000"))
	require.True(t, isLoopback("localhost"))
	require.True(t, isLoopback("::1"))
	require.False(t, isLoopback("example.com"))
	require.Equal(t, []string{"alerts", "ops"}, uniqueStreams([]string{" Alerts", "ops", "alerts", ""}))
}
