package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebSocketBroadcastsSpotChanges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsm := NewWebSocketManager(zap.NewNop())
	go wsm.Start(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(wsm).HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return wsm.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	wsm.SpotChanged(ctx, domain.SpotStatusChange{LotID: 1, SpotID: 3, Status: domain.SpotOccupied, ReservationID: 9})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wsMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "spot_status", msg.Type)
	assert.Equal(t, 3, msg.Data.SpotID)
	assert.Equal(t, domain.SpotOccupied, msg.Data.Status)
}

func TestSpotChangedNeverBlocks(t *testing.T) {
	wsm := NewWebSocketManager(zap.NewNop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			wsm.SpotChanged(context.Background(), domain.SpotStatusChange{SpotID: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SpotChanged blocked without a running hub")
	}
	assert.Len(t, wsm.broadcast, broadcastBuffer)
}
