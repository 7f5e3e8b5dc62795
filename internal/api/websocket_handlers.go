package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 54 * time.Second
	wsWriteWait       = 10 * time.Second
)

// WebSocketMessage is the envelope for both directions of the chat socket.
// Clients send {"type":"message","message":...}; the server answers with
// "delta", "done" or "error".
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	EventID string      `json:"event_id,omitempty"`
}

// ChatWebSocketClient represents a WebSocket client
type ChatWebSocketClient struct {
	conn   *websocket.Conn
	send   chan WebSocketMessage
	turns  chan WebSocketMessage
	done   chan struct{}
	server *Server
	ctx    context.Context
	cancel context.CancelFunc
}

// handleChatWebSocket handles WebSocket connections for real-time chat
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	client := &ChatWebSocketClient{
		conn:   conn,
		send:   make(chan WebSocketMessage, 256),
		turns:  make(chan WebSocketMessage, 16),
		done:   make(chan struct{}),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}

	s.logger.Debug("WebSocket client connected", "remote", r.RemoteAddr)

	go client.writePump()
	go client.turnLoop()
	go client.readPump()
}

// readPump handles incoming WebSocket messages. Chat turns are queued for
// turnLoop so that pongs keep extending the read deadline during long answers.
// Leaving cancels the turn in progress.
func (c *ChatWebSocketClient) readPump() {
	defer func() {
		c.cancel()
		close(c.turns)
		c.server.logger.Debug("WebSocket client disconnected")
	}()

	pongWait := c.server.pongWait
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("WebSocket error", "err", err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

// turnLoop runs queued chat turns one at a time and closes send once the
// reader is gone.
func (c *ChatWebSocketClient) turnLoop() {
	defer close(c.send)
	for msg := range c.turns {
		c.handleChatMessage(msg)
	}
}

// writePump handles outgoing WebSocket messages
func (c *ChatWebSocketClient) writePump() {
	ticker := time.NewTicker(c.server.pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Debug("WebSocket write error", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (c *ChatWebSocketClient) handleMessage(msg WebSocketMessage) {
	switch msg.Type {
	case "message":
		select {
		case c.turns <- msg:
		case <-c.done:
		}
	case "ping":
		c.sendMessage(WebSocketMessage{Type: "pong", EventID: msg.EventID})
	default:
		c.sendError("Unknown message type", msg.EventID)
	}
}

// handleChatMessage runs one chat turn and streams the answer back
func (c *ChatWebSocketClient) handleChatMessage(msg WebSocketMessage) {
	s := c.server

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ctx.Err() != nil {
		return
	}

	answer, err := s.controller.SendMessage(c.ctx, s.state, msg.Message, func(delta, full string) {
		c.sendMessage(WebSocketMessage{
			Type:    "delta",
			EventID: msg.EventID,
			Data:    newDeltaPayload(delta, full),
		})
	})
	if err != nil {
		c.sendError(err.Error(), msg.EventID)
		return
	}

	c.sendMessage(WebSocketMessage{
		Type:    "done",
		EventID: msg.EventID,
		Data:    DonePayload{Message: answer, HistoryFile: s.state.HistoryFile},
	})
}

// sendMessage queues a message for the write pump; it is dropped once the
// connection is gone.
func (c *ChatWebSocketClient) sendMessage(msg WebSocketMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// sendError sends an error message to the WebSocket client
func (c *ChatWebSocketClient) sendError(message string, eventID string) {
	c.sendMessage(WebSocketMessage{
		Type:    "error",
		Error:   message,
		EventID: eventID,
	})
}
