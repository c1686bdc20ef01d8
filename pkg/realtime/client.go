package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"glimpse/pkg/logger"
	"glimpse/pkg/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// inbound frames carry only subscribe/unsubscribe requests
	maxInboundBytes = 1024
)

// Client is one websocket connection owned by an authenticated user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	// rooms is touched only under the hub lock
	rooms     map[string]struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// inbound is the client-to-server control message: room subscription
// management only. Writes go through the HTTP API.
type inbound struct {
	Type         string `json:"type"`
	Conversation string `json:"conversation"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws_read_error", "user", c.userID, "error", err)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			logger.Debug("ws_bad_frame", "user", c.userID)
			continue
		}
		c.handle(in)
	}
}

func (c *Client) handle(in inbound) {
	switch in.Type {
	case "subscribe":
		if !c.mayJoin(in.Conversation) {
			logger.Warn("ws_subscribe_denied", "user", c.userID, "conversation", in.Conversation)
			return
		}
		c.hub.Join(c, "conv:"+in.Conversation)
	case "unsubscribe":
		c.hub.Leave(c, "conv:"+in.Conversation)
	default:
		logger.Debug("ws_unknown_frame_type", "user", c.userID, "type", in.Type)
	}
}

// mayJoin gates conversation rooms on membership.
func (c *Client) mayJoin(convID string) bool {
	if convID == "" {
		return false
	}
	conv, err := store.GetConversation(convID)
	if err != nil {
		return false
	}
	return conv.HasParticipant(c.userID)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
