package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docuchat/docuchat/internal/db"
	"github.com/docuchat/docuchat/internal/vectordb"
)

type stubEmbedder struct{}

func (stubEmbedder) Name() string { return "stub" }

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r)
	}
	return v, nil
}

func (e stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestFileID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Manual.pdf", "manual"},
		{"Great Gatsby.pdf", "great-gatsby"},
		{"UPPER CASE NAME.txt", "upper-case-name"},
		{"notes.md", "notes"},
	}
	for _, c := range cases {
		if got := FileID(c.in); got != c.want {
			t.Errorf("FileID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCatalogOrderAndPlace(t *testing.T) {
	database := newTestDB(t)
	cat := NewCatalog(database, "books")
	ctx := context.Background()

	for i, name := range []string{"First.pdf", "Second.pdf", "Third.pdf"} {
		place, err := cat.NextPlace(ctx)
		if err != nil {
			t.Fatalf("NextPlace: %v", err)
		}
		if place != i+1 {
			t.Errorf("NextPlace = %d, want %d", place, i+1)
		}
		err = cat.Add(ctx, FileInfo{
			FileID: FileID(name), Filename: name, TotalPages: 10,
			Place: place, UploadedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	files, err := cat.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	for i, want := range []string{"First.pdf", "Second.pdf", "Third.pdf"} {
		if files[i].Filename != want {
			t.Errorf("files[%d] = %q, want %q", i, files[i].Filename, want)
		}
	}
}

func TestCatalogScopedByCorpus(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	books := NewCatalog(database, "books")
	papers := NewCatalog(database, "papers")

	if err := books.Add(ctx, FileInfo{FileID: "a", Filename: "A.pdf", Place: 1, UploadedAt: time.Now()}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := papers.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("papers catalog leaked %d books entries", len(got))
	}
}

func TestIngestTextFile(t *testing.T) {
	database := newTestDB(t)
	cat := NewCatalog(database, "books")
	store, err := vectordb.NewMemoryStore(stubEmbedder{})
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "Field Notes.txt")
	if err := os.WriteFile(path, []byte("the pump impeller sits behind the housing"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ing := NewIngestor(cat, store, stubEmbedder{}, filepath.Join(dir, "uploads"), nil, nil)
	info, err := ing.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	if info.FileID != "field-notes" {
		t.Errorf("FileID = %q, want field-notes", info.FileID)
	}
	if info.TotalPages != 1 || info.Place != 1 {
		t.Errorf("unexpected info: %+v", info)
	}
	if store.Count() != 1 {
		t.Errorf("store has %d chunks, want 1", store.Count())
	}
	if _, err := os.Stat(ing.UploadPath("Field Notes.txt")); err != nil {
		t.Errorf("upload copy missing: %v", err)
	}

	// Second ingest of the same file must be refused.
	if _, err := ing.IngestFile(context.Background(), path); err == nil {
		t.Error("expected duplicate ingest to fail")
	}
}

func TestManagerSwitchPersistsAndNotifies(t *testing.T) {
	database := newTestDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	var switched []string
	mgr, err := NewManager(database, stubEmbedder{}, dir, "books", func(name string) {
		switched = append(switched, name)
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if mgr.Active() != "books" {
		t.Fatalf("Active = %q, want books", mgr.Active())
	}

	if err := mgr.Switch(ctx, "papers"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if mgr.Active() != "papers" {
		t.Errorf("Active = %q, want papers", mgr.Active())
	}
	if len(switched) != 1 || switched[0] != "papers" {
		t.Errorf("onSwitch calls = %v, want [papers]", switched)
	}

	// Switching to the already-active corpus is a no-op.
	if err := mgr.Switch(ctx, "papers"); err != nil {
		t.Fatalf("Switch same: %v", err)
	}
	if len(switched) != 1 {
		t.Errorf("onSwitch fired on no-op switch")
	}

	// A fresh manager against the same database resumes the selection.
	mgr2, err := NewManager(database, stubEmbedder{}, dir, "books", nil)
	if err != nil {
		t.Fatalf("NewManager (resume): %v", err)
	}
	if mgr2.Active() != "papers" {
		t.Errorf("resumed Active = %q, want papers", mgr2.Active())
	}

	names, err := mgr2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("List = %v, want [books papers]", names)
	}
}
