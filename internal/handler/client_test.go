package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/logger"
	ws "facewatch/internal/service/websocket"
)

func TestViewWebsocketReceivesBroadcasts(t *testing.T) {
	log := logger.NewDiscard()
	hub := ws.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(ViewWebsocketHandler(hub, log))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.True(t, hub.Broadcast([]byte(`{"camera":"door"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"camera":"door"}`, string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestHubBroadcastDoesNotBlock(t *testing.T) {
	hub := ws.NewHubService(logger.NewDiscard())

	accepted := 0
	for range 20 {
		if hub.Broadcast([]byte("frame")) {
			accepted++
		}
	}
	assert.Less(t, accepted, 20)
}
