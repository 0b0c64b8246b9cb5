package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 5 * time.Second
	broadcastBuffer = 64
)

var upgrader = websocket.Upgrader{
	// Dashboards are authenticated by token, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type string                  `json:"type"`
	Data domain.SpotStatusChange `json:"data"`
}

// WebSocketManager pushes spot status changes to connected admin dashboards.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
	log        *zap.Logger
}

func NewWebSocketManager(log *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Start runs the hub until ctx is cancelled, then closes every client.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(wsm.done)
			wsm.mutex.Lock()
			for client := range wsm.clients {
				client.Close()
				delete(wsm.clients, client)
			}
			wsm.mutex.Unlock()
			return

		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			n := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.log.Info("websocket client connected", zap.Int("clients", n))

		case client := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			n := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.log.Info("websocket client disconnected", zap.Int("clients", n))

		case message := <-wsm.broadcast:
			wsm.mutex.Lock()
			for client := range wsm.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					wsm.log.Warn("websocket write failed", zap.Error(err))
					client.Close()
					delete(wsm.clients, client)
				}
			}
			wsm.mutex.Unlock()
		}
	}
}

// send hands conn to the hub, or closes it when the hub has stopped.
func (wsm *WebSocketManager) send(ch chan *websocket.Conn, conn *websocket.Conn) {
	select {
	case ch <- conn:
	case <-wsm.done:
		conn.Close()
	}
}

func (wsm *WebSocketManager) Clients() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

// SpotChanged queues ev for broadcast. It never blocks; when the queue is
// full the message is dropped.
func (wsm *WebSocketManager) SpotChanged(_ context.Context, ev domain.SpotStatusChange) {
	message, err := json.Marshal(wsMessage{Type: "spot_status", Data: ev})
	if err != nil {
		wsm.log.Error("marshal spot change", zap.Error(err))
		return
	}
	select {
	case wsm.broadcast <- message:
	default:
		wsm.log.Warn("broadcast queue full, dropping spot change", zap.Int("spot_id", ev.SpotID))
	}
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsManager.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.wsManager.send(h.wsManager.register, conn)

	go func() {
		defer h.wsManager.send(h.wsManager.unregister, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.wsManager.log.Warn("websocket read error", zap.Error(err))
				}
				return
			}
		}
	}()
}
