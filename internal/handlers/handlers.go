// Package handlers wires the REST and websocket surface: auth, monitoring
// sessions, event history, CSV export, health and metrics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"drowsydetect/internal/config"
	"drowsydetect/internal/database"
	"drowsydetect/internal/models"
	"drowsydetect/internal/pipeline"
	"drowsydetect/internal/services"
	"drowsydetect/internal/ws"
	"drowsydetect/pkg/log"
)

// Store is the persistence surface the handlers need.
type Store interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	CreateSession(ctx context.Context, userID int, notes string) (*models.Session, error)
	ListSessions(ctx context.Context, userID int) ([]models.Session, error)
	EndSession(ctx context.Context, sessionID, userID int) error
	DeleteSession(ctx context.Context, sessionID, userID int) error
	ListEvents(ctx context.Context, sessionID, userID int) ([]models.Event, error)
	VerifySessionOwner(ctx context.Context, sessionID, userID int) error
}

type Handler struct {
	store    Store
	cfg      *config.Config
	metrics  *services.Metrics
	hub      *ws.Hub
	pipeline *pipeline.Pipeline

	mu           sync.Mutex
	userSessions map[string]int
}

func New(store Store, cfg *config.Config, metrics *services.Metrics, hub *ws.Hub, p *pipeline.Pipeline) *Handler {
	return &Handler{
		store:        store,
		cfg:          cfg,
		metrics:      metrics,
		hub:          hub,
		pipeline:     p,
		userSessions: make(map[string]int),
	}
}

const dbTimeout = 5 * time.Second

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func validateEmail(email string) bool {
	return emailRegex.MatchString(email) && len(email) <= 255
}

func validatePassword(password string) bool {
	if len(password) < 8 || len(password) > 72 {
		return false
	}
	hasLetter := false
	hasNumber := false
	for _, char := range password {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') {
			hasLetter = true
		}
		if char >= '0' && char <= '9' {
			hasNumber = true
		}
	}
	return hasLetter && hasNumber
}

func validateUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	return usernameRegex.MatchString(username)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, models.ErrorResponse{Error: msg, Timestamp: time.Now().UnixMilli()})
}

func (h *Handler) newAuthSession(userID int) string {
	id := uuid.NewString()
	h.mu.Lock()
	// One active auth session per user.
	for key, uid := range h.userSessions {
		if uid == userID {
			delete(h.userSessions, key)
		}
	}
	h.userSessions[id] = userID
	h.mu.Unlock()
	return id
}

func (h *Handler) userFromRequest(r *http.Request) (int, bool) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	userID, ok := h.userSessions[cookie.Value]
	return userID, ok
}

func (h *Handler) dropAuthSession(value string) {
	h.mu.Lock()
	delete(h.userSessions, value)
	h.mu.Unlock()
}

func setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" || req.Username == "" {
		respondError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if !validateEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if !validatePassword(req.Password) {
		respondError(w, http.StatusBadRequest, "password must be 8-72 characters with at least one letter and one number")
		return
	}
	if !validateUsername(req.Username) {
		respondError(w, http.StatusBadRequest, "username must be 3-30 characters, alphanumeric and underscore only")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "password hashing failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	user, err := h.store.CreateUser(ctx, req.Email, req.Username, string(hash))
	if errors.Is(err, database.ErrDuplicate) {
		respondError(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "registration failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.Info(log.Fields{"email": user.Email}, "user registered")
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	user, err := h.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "login failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	setSessionCookie(w, h.newAuthSession(user.ID), 86400)
	log.Info(log.Fields{"email": user.Email}, "user logged in")
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session_id"); err == nil {
		h.dropAuthSession(cookie.Value)
	}
	setSessionCookie(w, "", -1)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFromRequest(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	user, err := h.store.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// requireAuth wraps session-scoped endpoints.
func (h *Handler) requireAuth(next func(w http.ResponseWriter, r *http.Request, userID int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.userFromRequest(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, userID)
	}
}

func ownershipStatus(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, database.ErrNotOwner):
		return http.StatusForbidden, "session does not belong to user"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
