package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"drowsydetect/internal/models"
	"drowsydetect/pkg/log"
)

// Message types exchanged with clients.
const (
	TypeWelcome    = "WELCOME"
	TypePing       = "PING"
	TypePong       = "PONG"
	TypeFrame      = "FRAME"
	TypeAssessment = "ASSESSMENT"
	TypeAlert      = "ALERT"
	TypeError      = "ERROR"
)

type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FrameHandler processes one client-submitted frame.
type FrameHandler func(c *Client, frame models.VideoFrame)

const (
	readWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan Message
}

func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		ID:   id,
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// Serve registers the client, greets it and runs the read loop until the
// connection drops. The write pump runs alongside.
func (c *Client) Serve(onFrame FrameHandler) {
	c.hub.register(c)
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		log.Info(log.Fields{"client_id": c.ID}, "websocket client disconnected")
	}()

	go c.writePump()

	c.Send(Message{
		Type:      TypeWelcome,
		ClientID:  c.ID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"message": "Connected to DrowsyDetect",
			"version": "1.0",
		},
	})

	c.readPump(onFrame)
}

// Send queues a message without blocking; a full buffer drops the message.
// Safe to call while the client is shutting down.
func (c *Client) Send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Warn(log.Fields{"client_id": c.ID}, "send buffer full, dropping message")
	}
}

// close marks the client dead and closes the send channel exactly once, so
// the write pump drains and exits.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(onFrame FrameHandler) {
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn(log.Fields{"client_id": c.ID, "error": err.Error()}, "websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readWait))

		switch msg.Type {
		case TypePing:
			c.Send(Message{Type: TypePong, ClientID: c.ID, Timestamp: time.Now().Unix()})

		case TypeFrame:
			var frame models.VideoFrame
			if err := json.Unmarshal(msg.Payload, &frame); err != nil {
				c.Send(Message{
					Type:      TypeError,
					ClientID:  c.ID,
					Timestamp: time.Now().Unix(),
					Payload:   models.ErrorResponse{Error: "invalid frame payload", Code: "BAD_FRAME", Timestamp: time.Now().UnixMilli()},
				})
				continue
			}
			onFrame(c, frame)

		default:
			log.Debug(log.Fields{"client_id": c.ID, "type": msg.Type}, "unknown message type")
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
