package devserver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one user's live socket plus the pong bookkeeping the
// keepalive loop needs.
type client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	pong    chan struct{}
}

func (c *client) sendJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub tracks the single active connection per user. Registering while a
// connection exists replaces it: the protocol allows one duplex stream
// per authenticated user.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]*client)}
}

// Register installs the connection for a user, closing any prior one.
func (h *Hub) Register(userID int64, ws *websocket.Conn) {
	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = &client{ws: ws, pong: make(chan struct{}, 1)}
	h.mu.Unlock()

	if prev != nil {
		_ = prev.ws.Close()
	}
	log.Printf("devserver: user %d connected", userID)
}

// Unregister drops the user's connection if it is still the given one.
func (h *Hub) Unregister(userID int64, ws *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[userID]; ok && c.ws == ws {
		delete(h.clients, userID)
	}
	h.mu.Unlock()
	log.Printf("devserver: user %d disconnected", userID)
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendJSON delivers a frame to the user if online. Reports whether the
// frame was written.
func (h *Hub) SendJSON(userID int64, v any) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := c.sendJSON(v); err != nil {
		log.Printf("devserver: send to %d: %v", userID, err)
		h.evict(userID, c)
		return false
	}
	return true
}

// MarkPong records a keepalive answer from the user.
func (h *Hub) MarkPong(userID int64) {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.pong <- struct{}{}:
	default:
	}
}

func (h *Hub) evict(userID int64, c *client) {
	_ = c.ws.Close()
	h.mu.Lock()
	if cur, ok := h.clients[userID]; ok && cur == c {
		delete(h.clients, userID)
	}
	h.mu.Unlock()
}

// PingLoop probes every connected user and evicts those that do not
// answer with a pong inside the timeout. Zombie sockets otherwise keep
// receiving messages that are marked delivered but never seen.
func (h *Hub) PingLoop(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		snapshot := make(map[int64]*client, len(h.clients))
		for id, c := range h.clients {
			snapshot[id] = c
		}
		h.mu.RUnlock()

		for id, c := range snapshot {
			// Drain a stale pong before probing.
			select {
			case <-c.pong:
			default:
			}
			if err := c.sendJSON(map[string]any{"type": "ping"}); err != nil {
				log.Printf("devserver: ping to %d: %v", id, err)
				h.evict(id, c)
				continue
			}
			select {
			case <-c.pong:
			case <-time.After(timeout):
				log.Printf("devserver: no pong from %d, evicting", id)
				h.evict(id, c)
			case <-ctx.Done():
				return
			}
		}
	}
}
