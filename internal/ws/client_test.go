package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"drowsydetect/internal/models"
)

// startServer runs a ws endpoint that serves each connection through the
// hub, echoing every frame back as an assessment.
func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(hub, conn, "test-client")
		client.Serve(func(c *Client, frame models.VideoFrame) {
			c.Send(Message{
				Type:      TypeAssessment,
				ClientID:  c.ID,
				Timestamp: time.Now().Unix(),
				Payload:   models.FrameAssessment{SequenceNumber: frame.SequenceNumber, Status: models.StatusAwake},
			})
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestServeGreetsAndRegisters(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	hub := NewHub()
	srv := startServer(t, hub)
	conn := dial(t, srv)

	if msg := readMessage(t, conn); msg.Type != TypeWelcome {
		t.Fatalf("first message type = %q, want %q", msg.Type, TypeWelcome)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("hub count = %d, want 1", hub.Count())
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Errorf("hub count after disconnect = %d, want 0", hub.Count())
	}
}

func TestPingPong(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	srv := startServer(t, NewHub())
	conn := dial(t, srv)
	readMessage(t, conn) // welcome

	if err := conn.WriteJSON(Message{Type: TypePing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != TypePong {
		t.Errorf("got %q, want %q", msg.Type, TypePong)
	}
}

func TestFrameDispatch(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	srv := startServer(t, NewHub())
	conn := dial(t, srv)
	readMessage(t, conn) // welcome

	payload, _ := json.Marshal(models.VideoFrame{Frame: "aGVsbG8=", SequenceNumber: 7})
	if err := conn.WriteJSON(map[string]interface{}{"type": TypeFrame, "payload": json.RawMessage(payload)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != TypeAssessment {
		t.Fatalf("got %q, want %q", msg.Type, TypeAssessment)
	}
	raw, _ := json.Marshal(msg.Payload)
	var a models.FrameAssessment
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if a.SequenceNumber != 7 {
		t.Errorf("sequence = %d, want 7", a.SequenceNumber)
	}
}

func TestMalformedFramePayload(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	srv := startServer(t, NewHub())
	conn := dial(t, srv)
	readMessage(t, conn) // welcome

	if err := conn.WriteJSON(map[string]interface{}{"type": TypeFrame, "payload": "not-an-object"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != TypeError {
		t.Errorf("got %q, want %q", msg.Type, TypeError)
	}
}

// Shutdown must not race queued Sends into a closed channel: CloseAll only
// drops the connections, each Serve loop closes its own send channel, and
// Send refuses quietly once the client is closed.
func TestCloseAllDuringConcurrentSends(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	hub := NewHub()
	served := make(chan *Client, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("clientId"))
		served <- client
		client.Serve(func(*Client, models.VideoFrame) {})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	var clients []*Client
	for i := 0; i < 4; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?clientId=c%d", url, i), nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		defer conn.Close()
		clients = append(clients, <-served)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					c.Send(Message{Type: TypeAlert, Timestamp: time.Now().Unix()})
				}
			}
		}(c)
	}

	hub.CloseAll()

	deadline := time.Now().Add(3 * time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	close(stop)
	wg.Wait()

	if hub.Count() != 0 {
		t.Errorf("hub count = %d after CloseAll, want 0", hub.Count())
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("clientId"))
		client.Serve(func(*Client, models.VideoFrame) {})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	var conns []*websocket.Conn
	for _, id := range []string{"a", "b"} {
		conn, _, err := websocket.DefaultDialer.Dial(url+"?clientId="+id, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", id, err)
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		readMessage(t, conn) // welcome
		conns = append(conns, conn)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(Message{Type: TypeAlert, Timestamp: time.Now().Unix()})

	for i, conn := range conns {
		if msg := readMessage(t, conn); msg.Type != TypeAlert {
			t.Errorf("client %d got %q, want %q", i, msg.Type, TypeAlert)
		}
	}
}
