package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams []string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, KnownStreams(), w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, stream, userID string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Subscribers(stream, userID) == want
	}, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "u1", []string{StreamRecommendations, "unknown"})
	waitForSubscribers(t, hub, StreamRecommendations, "u1", 1)
	require.Zero(t, hub.Subscribers("unknown", "u1"))

	hub.BroadcastToUser(StreamRecommendations, "u2", Message{Event: "ignored"})
	hub.BroadcastToUser(StreamRecommendations, "u1", Message{Event: "recommendations.updated", Data: map[string]any{"kind": "goals"}})

	msg := readMessage(t, conn)
	require.Equal(t, StreamRecommendations, msg.Stream)
	require.Equal(t, "recommendations.updated", msg.Event)
	require.Equal(t, "goals", msg.Data.(map[string]any)["kind"])
}

func TestHubControlMessages(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "u1", nil)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "subscribe", Streams: []string{"Notifications, unknown"}}))
	ack := readMessage(t, conn)
	require.Equal(t, EventSubscribed, ack.Event)
	require.Equal(t, []any{StreamNotifications}, ack.Data.(map[string]any)["streams"])
	require.Equal(t, 1, hub.Subscribers(StreamNotifications, "u1"))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "ping"}))
	require.Equal(t, EventPong, readMessage(t, conn).Event)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "unsubscribe", Streams: []string{StreamNotifications}}))
	require.Equal(t, EventUnsubscribed, readMessage(t, conn).Event)
	require.Zero(t, hub.Subscribers(StreamNotifications, "u1"))
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "u1", []string{StreamRecommendations})
	waitForSubscribers(t, hub, StreamRecommendations, "u1", 1)
	require.Equal(t, 1, hub.Connections())

	hub.Close()
	require.Zero(t, hub.Connections())
	require.Zero(t, hub.Subscribers(StreamRecommendations, "u1"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error %v", err)
}

func TestParseStreams(t *testing.T) {
	require.Equal(t, []string{"notifications", "recommendations"}, ParseStreams(" Notifications ,recommendations", "notifications", ""))
	require.Empty(t, ParseStreams())
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "u1", []string{StreamNotifications})
	waitForSubscribers(t, hub, StreamNotifications, "u1", 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, hub, StreamNotifications, "u1", 0)
}

func TestHubCheckOrigin(t *testing.T) {
	hub := NewHub("https://app.longevity.example")

	cases := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "api.example", true},
		{"https://api.example", "api.example:8000", true},
		{"http://localhost:5173", "api.example", true},
		{"https://app.longevity.example", "api.example", true},
		{"https://evil.example", "api.example", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Host = tc.host
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		require.Equal(t, tc.want, hub.checkOrigin(req), "origin %q", tc.origin)
	}
}
