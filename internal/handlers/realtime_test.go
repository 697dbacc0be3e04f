package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/campusalert/internal/handlers/testutil"
	"github.com/charlesng35/campusalert/internal/realtime"
)

func dialStream(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/notifications/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRealtimeStream_DeliversSentNotifications(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithHubDelivery())
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	conn := dialStream(t, server, "")
	require.Eventually(t, func() bool {
		return env.Hub.Subscribers(realtime.StreamAlerts) == 1
	}, time.Second, 10*time.Millisecond)

	w := env.Request(http.MethodPost, "/api/warnings", map[string]any{
		"id":                 "live-1",
		"category":           "harassment",
		"incident_timestamp": env.Clock.Now().Add(-2 * time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Stream string `json:"stream"`
		Event  string `json:"event"`
		Data   struct {
			ID       string `json:"id"`
			Category string `json:"category"`
			Priority string `json:"priority"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, realtime.StreamAlerts, msg.Stream)
	require.Equal(t, "alert", msg.Event)
	require.Equal(t, "live-1", msg.Data.ID)
	require.Equal(t, "harassment", msg.Data.Category)
	require.Equal(t, "high", msg.Data.Priority)
}

func TestRealtimeStream_RejectsUnknownStreams(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/notifications/stream?streams=admin", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "unknown stream admin")
}

func TestRealtimeStream_UnavailableAfterHubClose(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Hub.Close()

	w := env.Request(http.MethodGet, "/api/notifications/stream", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
