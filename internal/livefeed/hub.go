// Package livefeed implements an additive, spec-silent operational
// endpoint: a WebSocket push of the most recent minute's aggregate visit
// counts. The hub's register/unregister/connection-handling shape is
// grounded on the teacher's MetricsHub (pkg/ingest/websocket.go), but it
// is specialized to the one payload this feature ever sends: a Tick is
// a coalescing point-in-time snapshot, not an event to queue, so the
// hub carries typed Ticks and keeps only the latest one pending per
// broadcast rather than buffering a backlog of byte messages.
package livefeed

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
	channelBuffer   = 16
	writeDeadline   = 10 * time.Second
	readDeadline    = 60 * time.Second
	pingInterval    = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: writeBufferSize,
}

// Hub manages WebSocket connections for the live-feed broadcast. Its
// broadcast channel holds at most one pending Tick: a tick superseded by
// a fresher one before it is sent is simply replaced, since a client
// that missed tick N only needs tick N+1, not a replay of both.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan Tick
	mu         sync.RWMutex
}

// NewHub creates an empty live-feed hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, channelBuffer),
		unregister: make(chan *websocket.Conn, channelBuffer),
		broadcast:  make(chan Tick, 1),
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// cancelled, closing every client connection on the way out.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		case tick := <-h.broadcast:
			h.send(tick)
		}
	}
}

func (h *Hub) send(tick Tick) {
	message, err := json.Marshal(tick)
	if err != nil {
		log.Printf("livefeed: encoding tick: %v", err)
		return
	}

	h.mu.RLock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		h.unregister <- conn
	}
}

// Broadcast enqueues tick for every connected client. A tick already
// waiting to be sent is dropped in favor of the newer one: the feed is
// a live gauge, so only the most recent sample matters once the hub
// falls behind.
func (h *Hub) Broadcast(tick Tick) {
	select {
	case h.broadcast <- tick:
		return
	default:
	}
	select {
	case <-h.broadcast:
	default:
	}
	select {
	case h.broadcast <- tick:
	default:
	}
}

// HasClients reports whether any client is currently connected.
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection
// registered with the hub.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("livefeed: upgrade failed: %v", err)
			return
		}

		hub.register <- conn

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(writeDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		defer func() {
			close(done)
			hub.unregister <- conn
		}()

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(readDeadline))
			return nil
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("livefeed: connection error: %v", err)
				}
				break
			}
		}
	}
}
