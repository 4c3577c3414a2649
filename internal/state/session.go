package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/jit/pkg/models"
)

// DefaultSessionID names the session used when none is given.
const DefaultSessionID = "default"

// SessionInfo describes a stored conversation session.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryStatus summarizes a session's stored turns.
type MemoryStatus struct {
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
	Tokens    int    `json:"tokens"`
}

// EstimateTokens approximates a token count as one token per four bytes,
// rounded up.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Session CRUD operations

// CreateSession creates a session. An empty id gets a generated one.
func (db *DB) CreateSession(id string) (*SessionInfo, error) {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now()
	_, err := db.Exec(`
		INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
	`, id, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &SessionInfo{ID: id, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}, nil
}

// GetSession retrieves a session by ID. Returns nil, nil if it does not exist.
func (db *DB) GetSession(id string) (*SessionInfo, error) {
	row := db.QueryRow(`
		SELECT id, created_at, updated_at FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// LatestSession returns the most recently updated session, or nil, nil.
func (db *DB) LatestSession() (*SessionInfo, error) {
	row := db.QueryRow(`
		SELECT id, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT 1
	`)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*SessionInfo, error) {
	var s SessionInfo
	var createdAt, updatedAt string
	err := row.Scan(&s.ID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.CreatedAt, _ = parseTime(createdAt)
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

// ListSessions returns all sessions, most recently updated first.
func (db *DB) ListSessions() ([]SessionInfo, error) {
	rows, err := db.Query(`
		SELECT id, created_at, updated_at FROM sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var s SessionInfo
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.CreatedAt, _ = parseTime(createdAt)
		s.UpdatedAt, _ = parseTime(updatedAt)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession deletes a session and its turns.
func (db *DB) DeleteSession(id string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Turn operations

// AddTurn appends a turn to a session and bumps the session's update time.
func (db *DB) AddTurn(sessionID string, role models.Role, content string) (models.Turn, error) {
	turn := models.Turn{
		Role:      role,
		Content:   content,
		Tokens:    EstimateTokens(content),
		CreatedAt: time.Now().UTC(),
	}
	ts := formatTime(turn.CreatedAt)

	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO turns (session_id, role, content, tokens, created_at) VALUES (?, ?, ?, ?, ?)
		`, sessionID, string(role), content, turn.Tokens, ts); err != nil {
			return fmt.Errorf("add turn: %w", err)
		}
		if _, err := tx.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", ts, sessionID); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Turn{}, err
	}
	return turn, nil
}

// Turns returns a session's turns, oldest first.
func (db *DB) Turns(sessionID string) ([]models.Turn, error) {
	rows, err := db.Query(`
		SELECT role, content, tokens, created_at FROM turns WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var role, createdAt string
		if err := rows.Scan(&role, &t.Content, &t.Tokens, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = models.Role(role)
		t.CreatedAt, _ = parseTime(createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ClearTurns removes every turn of a session.
func (db *DB) ClearTurns(sessionID string) error {
	_, err := db.Exec("DELETE FROM turns WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// MemoryStatus counts a session's turns and their estimated tokens.
func (db *DB) MemoryStatus(sessionID string) (MemoryStatus, error) {
	status := MemoryStatus{SessionID: sessionID}
	row := db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(tokens), 0) FROM turns WHERE session_id = ?
	`, sessionID)
	if err := row.Scan(&status.Turns, &status.Tokens); err != nil {
		return MemoryStatus{}, fmt.Errorf("memory status: %w", err)
	}
	return status, nil
}

// Session binds the database to one conversation.
type Session struct {
	db *DB
	id string
}

// Session returns a handle for the given session, creating it if needed.
// An empty id selects DefaultSessionID.
func (db *DB) Session(id string) (*Session, error) {
	if id == "" {
		id = DefaultSessionID
	}
	existing, err := db.GetSession(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if _, err := db.CreateSession(id); err != nil {
			return nil, err
		}
	}
	return &Session{db: db, id: id}, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Add records a turn.
func (s *Session) Add(role models.Role, content string) error {
	_, err := s.db.AddTurn(s.id, role, content)
	return err
}

// Context renders the most recent turns that fit in tokenLimit, oldest
// first, as "User: ..." / "Assistant: ..." lines. The newest turn is always
// included even when it alone exceeds the limit. An empty session yields "".
func (s *Session) Context(tokenLimit int) (string, error) {
	turns, err := s.db.Turns(s.id)
	if err != nil {
		return "", err
	}
	return FormatContext(turns, tokenLimit), nil
}

// FormatContext selects and renders turns the way Session.Context does.
func FormatContext(turns []models.Turn, tokenLimit int) string {
	var selected []models.Turn
	total := 0
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if total+t.Tokens <= tokenLimit {
			selected = append(selected, t)
			total += t.Tokens
			continue
		}
		if len(selected) == 0 {
			selected = append(selected, t)
		}
		break
	}

	lines := make([]string, 0, len(selected))
	for i := len(selected) - 1; i >= 0; i-- {
		lines = append(lines, selected[i].Label()+": "+selected[i].Content)
	}
	return strings.Join(lines, "\n")
}

// Clear removes the session's turns.
func (s *Session) Clear() error {
	return s.db.ClearTurns(s.id)
}

// Status returns the session's turn and token counts.
func (s *Session) Status() (MemoryStatus, error) {
	return s.db.MemoryStatus(s.id)
}
