package session

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/docuchat/docuchat/internal/db"
)

func newTestStore(t *testing.T, window int) *SQLiteStore {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteStore(database, window)
}

func TestContextEmpty(t *testing.T) {
	store := newTestStore(t, 5)

	got, err := store.Context(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestContextWindowKeepsLastExchanges(t *testing.T) {
	store := newTestStore(t, 5)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		err := store.AppendTurn(ctx, "s1",
			fmt.Sprintf("question %d", i),
			fmt.Sprintf("answer %d", i))
		if err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}

	got, err := store.Context(ctx, "s1")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}

	for i := 1; i <= 2; i++ {
		if strings.Contains(got, fmt.Sprintf("question %d\n", i)) {
			t.Errorf("context contains trimmed exchange %d:\n%s", i, got)
		}
	}
	for i := 3; i <= 7; i++ {
		if !strings.Contains(got, fmt.Sprintf("User: question %d", i)) {
			t.Errorf("context missing exchange %d:\n%s", i, got)
		}
	}

	// Chronological order within the window.
	if strings.Index(got, "question 3") > strings.Index(got, "question 7") {
		t.Errorf("context not chronological:\n%s", got)
	}
	if !strings.HasSuffix(got, "Assistant: answer 7") {
		t.Errorf("context should end with the latest answer:\n%s", got)
	}
}

func TestContextIsolatedPerSession(t *testing.T) {
	store := newTestStore(t, 5)
	ctx := context.Background()

	if err := store.AppendTurn(ctx, "a", "hello from a", "hi a"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := store.AppendTurn(ctx, "b", "hello from b", "hi b"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	got, err := store.Context(ctx, "a")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if strings.Contains(got, "hello from b") {
		t.Errorf("session a context leaked session b turns:\n%s", got)
	}
}

func TestActiveFileLifecycle(t *testing.T) {
	store := newTestStore(t, 5)

	if got := store.ActiveFile("s1"); got != "" {
		t.Errorf("expected no active file, got %q", got)
	}

	store.SetActiveFile("s1", "Manual.pdf")
	store.SetActiveFile("s2", "Report.pdf")

	if got := store.ActiveFile("s1"); got != "Manual.pdf" {
		t.Errorf("ActiveFile(s1) = %q, want Manual.pdf", got)
	}
	if got := store.ActiveFile("s2"); got != "Report.pdf" {
		t.Errorf("ActiveFile(s2) = %q, want Report.pdf", got)
	}

	store.ClearActiveFiles()

	if got := store.ActiveFile("s1"); got != "" {
		t.Errorf("expected active files cleared, got %q", got)
	}
}
