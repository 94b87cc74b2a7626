package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"drowsydetect/internal/models"
	"drowsydetect/pkg/log"
)

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request, userID int) {
	var req models.CreateSessionRequest
	// An empty body means a session without notes.
	_ = jsonDecodeBody(r, &req)

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	session, err := h.store.CreateSession(ctx, userID, req.Notes)
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "failed to create session")
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	log.Info(log.Fields{"session_id": session.ID, "user_id": userID}, "session created")
	respondJSON(w, http.StatusCreated, session)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request, userID int) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	sessions, err := h.store.ListSessions(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch sessions")
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request, userID int) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.store.EndSession(ctx, sessionID, userID); err != nil {
		status, msg := ownershipStatus(err)
		respondError(w, status, msg)
		return
	}

	log.Info(log.Fields{"session_id": sessionID}, "session ended")
	respondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request, userID int) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.store.DeleteSession(ctx, sessionID, userID); err != nil {
		status, msg := ownershipStatus(err)
		respondError(w, status, msg)
		return
	}

	log.Info(log.Fields{"session_id": sessionID}, "session deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request, userID int) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	events, err := h.store.ListEvents(ctx, sessionID, userID)
	if err != nil {
		status, msg := ownershipStatus(err)
		respondError(w, status, msg)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}

// ExportSession streams the session history as CSV in the same column
// order as the on-disk session logs.
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request, userID int) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	events, err := h.store.ListEvents(ctx, sessionID, userID)
	if err != nil {
		status, msg := ownershipStatus(err)
		respondError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="session_%d.csv"`, sessionID))

	cw := csv.NewWriter(w)
	cw.Write([]string{"timestamp", "ear_value", "mar_value", "eyes_closed", "mouth_open", "alert"})
	for _, e := range events {
		cw.Write([]string{
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(e.EAR, 'f', 4, 64),
			strconv.FormatFloat(e.MAR, 'f', 4, 64),
			strconv.FormatBool(e.EyesClosed),
			strconv.FormatBool(e.MouthOpen),
			strconv.FormatBool(e.Alert),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Warn(log.Fields{"session_id": sessionID, "error": err.Error()}, "csv export interrupted")
	}
}

func sessionIDParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func jsonDecodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
