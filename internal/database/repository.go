package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"drowsydetect/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNotOwner  = errors.New("resource does not belong to user")
	ErrDuplicate = errors.New("already exists")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, email, username, passwordHash string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, username, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, email, username, created_at`,
		email, username, passwordHash,
	).Scan(&u.ID, &u.Email, &u.Username, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, username, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) CreateSession(ctx context.Context, userID int, notes string) (*models.Session, error) {
	var s models.Session
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (user_id, notes) VALUES ($1, $2)
		 RETURNING id, user_id, start_time, status, notes`,
		userID, notes,
	).Scan(&s.ID, &s.UserID, &s.StartTime, &s.Status, &s.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &s, nil
}

func (r *Repository) ListSessions(ctx context.Context, userID int) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, start_time, end_time, status, notes
		 FROM sessions WHERE user_id = $1 ORDER BY start_time DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var endTime sql.NullTime
		if err := rows.Scan(&s.ID, &s.UserID, &s.StartTime, &endTime, &s.Status, &s.Notes); err != nil {
			return nil, err
		}
		if endTime.Valid {
			s.EndTime = &endTime.Time
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// VerifySessionOwner maps a missing session to ErrNotFound and a foreign
// session to ErrNotOwner so handlers can pick the right status code.
func (r *Repository) VerifySessionOwner(ctx context.Context, sessionID, userID int) error {
	var owner int
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE id = $1`, sessionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrNotOwner
	}
	return nil
}

func (r *Repository) EndSession(ctx context.Context, sessionID, userID int) error {
	if err := r.VerifySessionOwner(ctx, sessionID, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET end_time = now(), status = 'completed' WHERE id = $1`,
		sessionID,
	)
	return err
}

// DeleteSession removes a session and its events atomically: a failure
// after the events are gone must not leave an orphaned session row.
func (r *Repository) DeleteSession(ctx context.Context, sessionID, userID int) error {
	if err := r.VerifySessionOwner(ctx, sessionID, userID); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = $1`, sessionID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Repository) InsertEvent(ctx context.Context, e *models.Event) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO events (session_id, ear_value, mar_value, eyes_closed, mouth_open, alert, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		e.SessionID, e.EAR, e.MAR, e.EyesClosed, e.MouthOpen, e.Alert, e.Timestamp,
	).Scan(&e.ID)
}

func (r *Repository) ListEvents(ctx context.Context, sessionID, userID int) ([]models.Event, error) {
	if err := r.VerifySessionOwner(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, ear_value, mar_value, eyes_closed, mouth_open, alert, timestamp
		 FROM events WHERE session_id = $1 ORDER BY timestamp ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EAR, &e.MAR, &e.EyesClosed, &e.MouthOpen, &e.Alert, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func isUniqueViolation(err error) bool {
	// pgx wraps server errors; SQLSTATE 23505 is unique_violation.
	type sqlState interface{ SQLState() string }
	var s sqlState
	return errors.As(err, &s) && s.SQLState() == "23505"
}
