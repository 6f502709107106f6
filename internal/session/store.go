package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/db"
)

// Store is the conversation memory consumed by the question pipeline.
// Turn history is persistent. Active-file hints are advisory; losing
// them degrades follow-up continuity, not correctness.
type Store interface {
	// Context returns the last N exchanges of the session rendered as
	// "User: …" / "Assistant: …" lines in chronological order.
	Context(ctx context.Context, sessionID string) (string, error)

	// AppendTurn records one completed exchange. Writes are append-only.
	AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error

	// ActiveFile returns the last file resolved for this session, or "".
	ActiveFile(sessionID string) string

	// SetActiveFile remembers the file for later follow-ups.
	SetActiveFile(sessionID, filename string)

	// ClearActiveFiles drops every active-file hint. Invoked on corpus
	// switches so stale file references cannot cross corpora.
	ClearActiveFiles()
}

// SQLiteStore persists turns in SQLite and keeps active-file hints in a
// mutex-guarded map.
type SQLiteStore struct {
	db     *db.DB
	window int

	mu          sync.RWMutex
	activeFiles map[string]string
}

// NewSQLiteStore creates a session store with the given context window
// (number of exchanges kept in the prompt).
func NewSQLiteStore(database *db.DB, window int) *SQLiteStore {
	if window <= 0 {
		window = 5
	}
	return &SQLiteStore{
		db:          database,
		window:      window,
		activeFiles: make(map[string]string),
	}
}

// Turn is one immutable entry of the session log.
type Turn struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_turns WHERE session_id = ?`, sessionID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("reading turn sequence: %w", err)
	}

	now := time.Now().UTC()
	for i, turn := range []struct {
		role, content string
	}{
		{"user", userText},
		{"assistant", assistantText},
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_turns (id, session_id, role, content, created_at, seq)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, turn.role, turn.content, now, seq+1+i,
		); err != nil {
			return fmt.Errorf("appending %s turn: %w", turn.role, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Context(ctx context.Context, sessionID string) (string, error) {
	turns, err := s.recent(ctx, sessionID, s.window)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case "user":
			fmt.Fprintf(&b, "User: %s\n", t.Content)
		case "assistant":
			fmt.Fprintf(&b, "Assistant: %s\n", t.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// recent returns the last n exchanges (2n rows) in chronological order.
func (s *SQLiteStore) recent(ctx context.Context, sessionID string, n int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM chat_turns WHERE session_id = ?
		 ORDER BY seq DESC LIMIT ?`,
		sessionID, n*2,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) ActiveFile(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeFiles[sessionID]
}

func (s *SQLiteStore) SetActiveFile(sessionID, filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFiles[sessionID] = filename
}

func (s *SQLiteStore) ClearActiveFiles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFiles = make(map[string]string)
}
