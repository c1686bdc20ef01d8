package realtime

import (
	"encoding/json"
	"sync"

	"glimpse/pkg/logger"
	"glimpse/pkg/telemetry"
)

// Frame is the wire envelope pushed to websocket clients.
type Frame struct {
	Event string          `json:"event"`
	Room  string          `json:"room"`
	Data  json.RawMessage `json:"data"`
}

// Hub tracks live websocket clients and their room subscriptions. Every
// client is implicitly subscribed to its own user room; conversation
// rooms are joined on demand. All methods are safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
	rooms  map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		byUser: make(map[string]map[*Client]struct{}),
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[c.userID] == nil {
		h.byUser[c.userID] = make(map[*Client]struct{})
	}
	h.byUser[c.userID][c] = struct{}{}
	h.joinLocked(c, "user:"+c.userID)
	telemetry.WSConnected()
	logger.Debug("ws_client_registered", "user", c.userID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.byUser[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.close()
	telemetry.WSDisconnected()
	logger.Debug("ws_client_unregistered", "user", c.userID)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Join subscribes a client to a room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	h.joinLocked(c, room)
	h.mu.Unlock()
}

// Leave removes a client from a room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

// Publish fans an event out to every client subscribed to room. Slow
// clients are skipped rather than blocking the caller.
func (h *Hub) Publish(room, event string, payload []byte) {
	frame, err := json.Marshal(Frame{Event: event, Room: room, Data: payload})
	if err != nil {
		logger.Error("ws_frame_marshal_failed", "room", room, "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- frame:
		default:
			logger.Warn("ws_client_slow_drop", "user", c.userID, "room", room)
		}
	}
}

// Reachable reports whether the user has at least one live connection.
func (h *Hub) Reachable(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// Connections returns the number of live connections, for metrics.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.byUser {
		n += len(set)
	}
	return n
}
