package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"drowsydetect/internal/models"
	"drowsydetect/internal/ws"
	"drowsydetect/pkg/log"
)

// ServeWS upgrades the connection and runs the client's frame loop. An
// optional session_id query parameter links processed frames to a stored
// monitoring session; that requires an authenticated owner. Without it the
// client gets a live preview that is not persisted.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	dbSessionID := 0
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		userID, ok := h.userFromRequest(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		err = h.store.VerifySessionOwner(ctx, id, userID)
		cancel()
		if err != nil {
			status, msg := ownershipStatus(err)
			respondError(w, status, msg)
			return
		}
		dbSessionID = id
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.cfg.CORSOrigins == "*" || origin == h.cfg.CORSOrigins
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(int64(h.cfg.MaxMessageSize) * 1024 * 1024)

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.NewString()
	}
	log.Info(log.Fields{"client_id": clientID, "session_id": dbSessionID}, "websocket client connected")

	session, err := h.pipeline.StartSession(dbSessionID)
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "failed to start pipeline session")
		conn.Close()
		return
	}
	defer session.Close()

	h.metrics.ClientConnected()
	defer h.metrics.ClientDisconnected()

	client := ws.NewClient(h.hub, conn, clientID)
	client.Serve(func(c *ws.Client, frame models.VideoFrame) {
		h.metrics.IncrementMessages()

		assessment, err := session.Process(context.Background(), frame)
		if err != nil {
			log.Warn(log.Fields{"client_id": c.ID, "error": err.Error()}, "frame processing failed")
			c.Send(ws.Message{
				Type:      ws.TypeError,
				ClientID:  c.ID,
				Timestamp: time.Now().Unix(),
				Payload:   models.ErrorResponse{Error: err.Error(), Code: "PROCESSING_FAILED", Timestamp: time.Now().UnixMilli()},
			})
			return
		}

		c.Send(ws.Message{
			Type:      ws.TypeAssessment,
			ClientID:  c.ID,
			Timestamp: time.Now().Unix(),
			Payload:   assessment,
		})
	})
}
