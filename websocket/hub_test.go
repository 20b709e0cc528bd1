package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHubServer(t *testing.T, hub *Hub, interviewID uint) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.RegisterClient(conn, interviewID)
		go client.WritePump()
		client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishReachesSubscribersOfInterview(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	watched := startHubServer(t, hub, 7)
	other := startHubServer(t, hub, 8)

	conn := dial(t, watched)
	otherConn := dial(t, other)
	require.Eventually(t, func() bool {
		return hub.Subscribers(7) == 1 && hub.Subscribers(8) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(7, map[string]interface{}{"type": "progress", "answered": 1})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "progress", event["type"])
	assert.Equal(t, float64(1), event["answered"])

	otherConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err, "other interview must not receive the event")
}

func TestPingAndUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := startHubServer(t, hub, 3)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers(3) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers(3) == 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	hub.Publish(99, map[string]string{"type": "progress"})
	hub.Publish(99, make(chan int)) // unmarshalable payloads are dropped
	assert.Equal(t, 0, hub.Subscribers(99))
}
