// Streaming test client: registers a user, opens a monitoring session and
// feeds JPEG frames from a directory over the websocket, printing each
// assessment as it comes back.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"drowsydetect/internal/models"
	"drowsydetect/internal/ws"
	"drowsydetect/pkg/log"
)

var (
	backendURL = flag.String("backend", "http://localhost:8080", "backend base URL")
	email      = flag.String("email", "test@example.com", "account email")
	password   = flag.String("password", "Test123456", "account password")
	frameDir   = flag.String("frames", "testdata/frames", "directory of JPEG frames to stream")
	fps        = flag.Int("fps", 10, "frames per second")
)

func main() {
	flag.Parse()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	if err := register(client); err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "registration failed")
	}
	if err := login(client); err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "login failed")
	}

	sessionID, err := createSession(client)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "session creation failed")
	}
	log.Info(log.Fields{"session_id": sessionID}, "monitoring session created")

	frames, err := loadFrames(*frameDir)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error(), "dir": *frameDir}, "failed to load frames")
	}
	log.Info(log.Fields{"count": len(frames)}, "frames loaded")

	if err := stream(client, sessionID, frames); err != nil {
		log.Error(log.Fields{"error": err.Error()}, "streaming failed")
	}

	if err := endSession(client, sessionID); err != nil {
		log.Error(log.Fields{"error": err.Error()}, "failed to end session")
	}
	log.Info(log.Fields{"session_id": sessionID}, "session ended")
}

func register(client *http.Client) error {
	resp, err := postJSON(client, "/api/auth/register", models.RegisterRequest{
		Email: *email, Username: "stream_client", Password: *password,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// An existing account is fine, the login that follows proves it.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return unexpectedStatus(resp)
	}
	return nil
}

func login(client *http.Client) error {
	resp, err := postJSON(client, "/api/auth/login", models.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	return nil
}

func createSession(client *http.Client) (int, error) {
	resp, err := postJSON(client, "/api/sessions/", models.CreateSessionRequest{Notes: "streaming test run"})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return 0, unexpectedStatus(resp)
	}
	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return 0, err
	}
	return session.ID, nil
}

func endSession(client *http.Client, sessionID int) error {
	resp, err := postJSON(client, fmt.Sprintf("/api/sessions/%d/end", sessionID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	return nil
}

func loadFrames(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if !e.IsDir() && (strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg")) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no JPEG files in %s", dir)
	}
	sort.Strings(names)

	frames := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	return frames, nil
}

func stream(client *http.Client, sessionID int, frames [][]byte) error {
	wsURL, err := websocketURL(*backendURL, sessionID)
	if err != nil {
		return err
	}

	// Carry the auth cookie into the websocket handshake.
	base, _ := url.Parse(*backendURL)
	header := http.Header{}
	for _, c := range client.Jar.Cookies(base) {
		header.Add("Cookie", c.String())
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	// Drain the welcome message.
	var welcome ws.Message
	if err := conn.ReadJSON(&welcome); err != nil {
		return err
	}

	interval := time.Second / time.Duration(*fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, frame := range frames {
		<-ticker.C

		payload, _ := json.Marshal(models.VideoFrame{
			Frame:          base64.StdEncoding.EncodeToString(frame),
			Timestamp:      time.Now().UnixMilli(),
			SequenceNumber: int32(i + 1),
		})
		msg := map[string]interface{}{"type": ws.TypeFrame, "payload": json.RawMessage(payload)}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("failed to send frame %d: %w", i+1, err)
		}

		reply, err := readAssessment(conn)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
		if reply != nil {
			printAssessment(i+1, *reply)
		}
	}
	return nil
}

// readAssessment skips broadcast traffic (alerts, pings) until the direct
// per-frame reply arrives.
func readAssessment(conn *websocket.Conn) (*models.FrameAssessment, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, err
		}
		switch msg.Type {
		case ws.TypeAssessment:
			var a models.FrameAssessment
			if err := json.Unmarshal(msg.Payload, &a); err != nil {
				return nil, err
			}
			return &a, nil
		case ws.TypeError:
			var e models.ErrorResponse
			json.Unmarshal(msg.Payload, &e)
			return nil, fmt.Errorf("server rejected frame: %s", e.Error)
		default:
			// ALERT broadcasts and pings interleave with replies.
			continue
		}
	}
}

func printAssessment(seq int, a models.FrameAssessment) {
	marker := " "
	if a.Alert {
		marker = "!"
	}
	fmt.Printf("%s frame %4d  ear=%.4f mar=%.4f status=%-10s vigilance=%3d face=%v\n",
		marker, seq, a.EAR, a.MAR, a.Status, a.Vigilance, a.FaceDetected)
}

func websocketURL(backend string, sessionID int) (string, error) {
	u, err := url.Parse(backend)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = fmt.Sprintf("session_id=%d", sessionID)
	return u.String(), nil
}

func postJSON(client *http.Client, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, *backendURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
