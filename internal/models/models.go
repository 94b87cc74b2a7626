package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
}

// Event is one persisted frame assessment. The CSV export follows the field
// order here: timestamp, ear_value, mar_value, eyes_closed, mouth_open, alert.
type Event struct {
	ID         int       `json:"id"`
	SessionID  int       `json:"session_id"`
	EAR        float64   `json:"ear_value"`
	MAR        float64   `json:"mar_value"`
	EyesClosed bool      `json:"eyes_closed"`
	MouthOpen  bool      `json:"mouth_open"`
	Alert      bool      `json:"alert"`
	Timestamp  time.Time `json:"timestamp"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateSessionRequest struct {
	Notes string `json:"notes,omitempty"`
}
