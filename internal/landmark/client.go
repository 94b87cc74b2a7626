// Package landmark talks to the face-landmark sidecar over a JSON
// websocket: one base64 frame out, one landmark set back.
package landmark

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"drowsydetect/internal/models"
	"drowsydetect/pkg/log"
)

type Client struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn

	handshakeTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
}

// NewClient builds a client for the given ws:// URL and attempts an initial
// connection in the background. A failed first connect is not fatal: the
// client redials on demand.
func NewClient(url string) *Client {
	c := &Client{
		url:              url,
		handshakeTimeout: 10 * time.Second,
		readTimeout:      10 * time.Second,
		writeTimeout:     5 * time.Second,
	}

	go func() {
		if err := c.Reconnect(); err != nil {
			log.Warn(log.Fields{"url": url, "error": err.Error()},
				"initial connection to landmark service failed, will retry on demand")
		} else {
			log.Info(log.Fields{"url": url}, "connected to landmark service")
		}
	}()

	return c
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Reconnect drops any existing connection and dials the sidecar again.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectLocked()
}

func (c *Client) reconnectLocked() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to landmark service at %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
	})

	c.conn = conn
	return nil
}

// Detect submits one JPEG frame and blocks for the sidecar's landmark set.
// The connection is dropped on any transport error so the next call redials.
func (c *Client) Detect(frame []byte) (*models.LandmarkSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.reconnectLocked(); err != nil {
			return nil, err
		}
	}

	req := models.VideoFrame{
		Frame:     base64.StdEncoding.EncodeToString(frame),
		Timestamp: time.Now().UnixMilli(),
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to send frame to landmark service: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	var set models.LandmarkSet
	if err := c.conn.ReadJSON(&set); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to read landmark response: %w", err)
	}

	return &set, nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}
