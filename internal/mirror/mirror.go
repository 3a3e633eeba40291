// Package mirror broadcasts the received byte stream to WebSocket
// clients so a browser can watch the session read-only. Client input
// is discarded; a client that cannot keep up is dropped rather than
// ever blocking the relay.
package mirror

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const clientBuffer = 64

type client struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub fans the session's received bytes out to connected viewers.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Broadcast queues data for every connected client. Never blocks; a
// full client buffer drops the client.
func (h *Hub) Broadcast(data []byte) {
	chunk := append([]byte(nil), data...)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- chunk:
		case <-c.done:
			delete(h.clients, c)
		default:
			slog.Warn("mirror client too slow, dropping")
			c.close()
			delete(h.clients, c)
		}
	}
}

// Handler upgrades the request and streams broadcasts to the client
// until it disconnects.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("mirror upgrade failed", "error", err)
		return
	}
	c := &client{
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("mirror client connected", "remote", r.RemoteAddr)

	// Discard client input; its only purpose is detecting disconnect.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				c.close()
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = ws.Close()
		slog.Info("mirror client disconnected", "remote", r.RemoteAddr)
	}()
	for {
		select {
		case data := <-c.send:
			if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// ListenAndServe serves the mirror endpoint at / on addr. Blocks;
// meant to run in its own goroutine.
func (h *Hub) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Handler)
	slog.Info("mirror listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
