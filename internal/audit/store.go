package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/db"
)

// Store is the append-only trail of administrative actions: uploads,
// deletions, corpus switches.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record appends an entry.
func (s *Store) Record(ctx context.Context, actor string, action Action, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, actor, action, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), actor, string(action), detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor, action, detail, created_at
		 FROM audit_entries ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
