package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	// Schema should be in place.
	var count int
	if err := d.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := d.QueryRow(`SELECT COUNT(*) FROM chat_turns`).Scan(&count); err != nil {
		t.Fatalf("chat_turns table missing: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docuchat.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	// Migration is idempotent.
	if err := d.migrate(); err != nil {
		t.Fatalf("re-running migrate: %v", err)
	}
}
