package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/engine"
)

func TestHandlerSendsConnectedThenLogEntries(t *testing.T) {
	eng := engine.New()
	server := httptest.NewServer(Handler(eng))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "connected", first["type"])

	// Give the handler's Subscribe() a moment to register before publishing.
	time.Sleep(20 * time.Millisecond)
	eng.AppendLog(engine.LogEntry{ID: "abc", Method: "GET", Path: "/x", StatusCode: 200})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg, &decoded))
	require.Equal(t, "new-log", decoded["type"])
	logField, ok := decoded["log"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "abc", logField["id"])
}
