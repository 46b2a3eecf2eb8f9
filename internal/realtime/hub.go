package realtime

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"km-backend/internal/metrics"
	"km-backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	broadcastQueue = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes committed settlement events to connected admin dashboards
type Hub struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan models.SettlementEvent
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan models.SettlementEvent, broadcastQueue),
	}
}

// Run delivers queued events until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// NotifySettlement queues an event without blocking the caller.
// Events are dropped when the queue is full.
func (h *Hub) NotifySettlement(ctx context.Context, event models.SettlementEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[Realtime] broadcast queue full, dropping %s event", event.Type)
	}
}

// ClientCount returns the number of connected dashboards
func (h *Hub) ClientCount() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the client goes away. Incoming messages are ignored.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Realtime] WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	h.register(conn)
	defer h.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.clientsMux.Lock()
	h.clients[conn] = true
	metrics.RealtimeClients.Set(float64(len(h.clients)))
	h.clientsMux.Unlock()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.clientsMux.Lock()
	delete(h.clients, conn)
	metrics.RealtimeClients.Set(float64(len(h.clients)))
	h.clientsMux.Unlock()
}

func (h *Hub) deliver(event models.SettlementEvent) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(event); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
	metrics.RealtimeClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client := range h.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
	metrics.RealtimeClients.Set(0)
}
