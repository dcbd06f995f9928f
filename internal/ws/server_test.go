package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/ratelimit"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed, origin string
		want            bool
	}{
		{"*", "http://evil.example", true},
		{"http://app.example", "http://app.example", true},
		{"http://app.example", "http://evil.example", false},
		{"http://app.example", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, originAllowed(tt.allowed, tt.origin), "%s vs %s", tt.allowed, tt.origin)
	}
}

func TestServer_HandleConnections(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := NewServer(hub, ratelimit.NewAddresses(t.Context(), 1), ServerConfig{AllowedOrigin: "*", EventsPerSecond: 100, EventBurst: 100})
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleConnections))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "join-room",
		"data": map[string]string{"roomId": "ABC123", "username": "Alice"},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type models.ServerMessageType `json:"type"`
		Data models.RoomState         `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.ServerMessageTypeRoomState, msg.Type)
	assert.Equal(t, "ABC123", msg.Data.RoomID)
	require.Len(t, msg.Data.Files, 1)
	assert.Equal(t, models.MainFile, msg.Data.Files[0].Name)

	// The second connection from the same address within a minute is refused.
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
