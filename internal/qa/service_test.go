package qa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docuchat/docuchat/internal/assemble"
	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/db"
	"github.com/docuchat/docuchat/internal/orchestrator"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/scope"
	"github.com/docuchat/docuchat/internal/session"
	"github.com/docuchat/docuchat/internal/vectordb"
)

type fakeResolver struct {
	decision scope.Decision
	err      error
}

func (r *fakeResolver) Resolve(context.Context, string, string, string) (scope.Decision, error) {
	return r.decision, r.err
}

type fakeEngine struct {
	results *retrieval.Results
	err     error
}

func (e *fakeEngine) Retrieve(context.Context, string, scope.Decision) (*retrieval.Results, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.results == nil {
		return &retrieval.Results{}, nil
	}
	return e.results, nil
}

type fakeAnswerer struct {
	reply string
	err   error
	last  orchestrator.Request
}

func (a *fakeAnswerer) Answer(_ context.Context, req orchestrator.Request) (string, error) {
	a.last = req
	if a.err != nil {
		return "", a.err
	}
	return a.reply, nil
}

type fakeLibrary struct {
	files   []corpus.FileInfo
	removed []string
}

func (l *fakeLibrary) List(context.Context) ([]corpus.FileInfo, error) { return l.files, nil }

func (l *fakeLibrary) Remove(_ context.Context, fileID string) error {
	l.removed = append(l.removed, fileID)
	return nil
}

type fakeChunks struct {
	count   int
	deleted []string
}

func (c *fakeChunks) DeleteFile(_ context.Context, fileID string) error {
	c.deleted = append(c.deleted, fileID)
	return nil
}

func (c *fakeChunks) Count() int { return c.count }

func newSessions(t *testing.T) session.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return session.NewSQLiteStore(database, 5)
}

func manualResults() *retrieval.Results {
	c := vectordb.Chunk{
		ID:   "manual-1",
		Text: "torque the housing bolts to 25 Nm",
		Meta: vectordb.ChunkMeta{FileID: "manual", Source: "Manual.pdf", Page: 7, TotalPages: 40, Place: 1},
	}
	return &retrieval.Results{
		Ranked:  []vectordb.Result{{Chunk: c, Score: 0.9}},
		Groups:  []retrieval.Group{{FileID: "manual", Source: "Manual.pdf", TotalPages: 40, Place: 1, Chunks: []vectordb.Chunk{c}}},
		Sources: []retrieval.Source{{Filename: "Manual.pdf", Page: 7}},
	}
}

type serviceParts struct {
	svc      *Service
	sessions session.Store
	answerer *fakeAnswerer
	library  *fakeLibrary
	chunks   *fakeChunks
}

func newService(t *testing.T, resolver Resolver, engine Engine) serviceParts {
	t.Helper()
	sessions := newSessions(t)
	answerer := &fakeAnswerer{reply: "The torque is 25 Nm (Manual.pdf, p. 7)."}
	library := &fakeLibrary{files: []corpus.FileInfo{
		{FileID: "manual", Filename: "Manual.pdf", TotalPages: 40, Place: 1, EmbeddingModel: "stub", UploadedAt: time.Now()},
		{FileID: "great-gatsby", Filename: "The Great Gatsby.pdf", TotalPages: 180, Place: 2, EmbeddingModel: "stub", UploadedAt: time.Now()},
	}}
	chunks := &fakeChunks{count: 220}

	svc := NewService(sessions, resolver, engine, nil, assemble.NewAssembler(10000),
		answerer, library, chunks, nil, Options{})
	return serviceParts{svc: svc, sessions: sessions, answerer: answerer, library: library, chunks: chunks}
}

func TestAskSingleFileFlow(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeSingle, Files: []string{"Manual.pdf"}}}
	parts := newService(t, resolver, &fakeEngine{results: manualResults()})
	ctx := context.Background()

	ans, err := parts.svc.Ask(ctx, "s1", Caller{UserID: "alice"}, "what torque for the housing bolts")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if !strings.Contains(ans.Markdown, "25 Nm") {
		t.Errorf("answer lost the reply: %q", ans.Markdown)
	}
	if !strings.Contains(ans.Markdown, "Sources:") || !strings.Contains(ans.Markdown, "Manual.pdf") {
		t.Errorf("answer missing sources footer: %q", ans.Markdown)
	}
	if ans.HTML == "" || !strings.Contains(ans.HTML, "<") {
		t.Errorf("HTML not rendered: %q", ans.HTML)
	}
	if ans.Mode != scope.ModeSingle {
		t.Errorf("Mode = %v", ans.Mode)
	}
	if len(ans.UsedFiles) != 1 || ans.UsedFiles[0] != "Manual.pdf" {
		t.Errorf("UsedFiles = %v", ans.UsedFiles)
	}

	// The document context reached the model.
	if !strings.Contains(parts.answerer.last.DocContext, "torque the housing bolts") {
		t.Errorf("model did not receive context: %q", parts.answerer.last.DocContext)
	}

	// The exchange landed in session memory.
	memory, err := parts.sessions.Context(ctx, "s1")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if !strings.Contains(memory, "User: what torque") {
		t.Errorf("turn not recorded: %q", memory)
	}
}

func TestAskEmptyRetrieval(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeUncertain}}
	parts := newService(t, resolver, &fakeEngine{})

	ans, err := parts.svc.Ask(context.Background(), "s1", Caller{}, "anything about submarines")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Markdown != noResultsAnswer {
		t.Errorf("Markdown = %q, want the no-results answer", ans.Markdown)
	}
}

func TestAskProviderFailureLeavesMemoryUntouched(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeSingle, Files: []string{"Manual.pdf"}}}
	parts := newService(t, resolver, &fakeEngine{results: manualResults()})
	parts.answerer.err = errors.New("provider down")
	ctx := context.Background()

	if _, err := parts.svc.Ask(ctx, "s1", Caller{}, "what torque"); err == nil {
		t.Fatal("expected error from a dead provider")
	}

	memory, err := parts.sessions.Context(ctx, "s1")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if memory != "" {
		t.Errorf("failed request wrote to session memory: %q", memory)
	}
}

func TestAskListMode(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeList}}
	parts := newService(t, resolver, &fakeEngine{})

	ans, err := parts.svc.Ask(context.Background(), "s1", Caller{}, "what files do you have")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, want := range []string{"Manual.pdf", "The Great Gatsby.pdf", "180 pages"} {
		if !strings.Contains(ans.Markdown, want) {
			t.Errorf("listing missing %q:\n%s", want, ans.Markdown)
		}
	}
	if ans.Mode != scope.ModeList {
		t.Errorf("Mode = %v", ans.Mode)
	}
}

func TestAskDeleteRequiresAdmin(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeDelete, DeleteTarget: "gatsby"}}
	parts := newService(t, resolver, &fakeEngine{})

	ans, err := parts.svc.Ask(context.Background(), "s1", Caller{UserID: "mallory"}, "delete gatsby")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Markdown, "restricted to administrators") {
		t.Errorf("expected polite refusal, got %q", ans.Markdown)
	}
	if len(parts.chunks.deleted) != 0 || len(parts.library.removed) != 0 {
		t.Error("non-admin delete reached the stores")
	}
}

func TestAskDeleteFuzzyMatch(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeDelete, DeleteTarget: "gatsby"}}
	parts := newService(t, resolver, &fakeEngine{})

	ans, err := parts.svc.Ask(context.Background(), "s1", Caller{UserID: "alice", Admin: true}, "delete gatsby")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Markdown, "The Great Gatsby.pdf") {
		t.Errorf("delete answer = %q", ans.Markdown)
	}
	if len(parts.chunks.deleted) != 1 || parts.chunks.deleted[0] != "great-gatsby" {
		t.Errorf("chunks deleted = %v", parts.chunks.deleted)
	}
	if len(parts.library.removed) != 1 || parts.library.removed[0] != "great-gatsby" {
		t.Errorf("catalog removed = %v", parts.library.removed)
	}
}

func TestAskDeleteUnknownTarget(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeDelete, DeleteTarget: "zzzzzzz"}}
	parts := newService(t, resolver, &fakeEngine{})

	ans, err := parts.svc.Ask(context.Background(), "s1", Caller{Admin: true}, "delete zzzzzzz")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Markdown, "could not find") {
		t.Errorf("answer = %q", ans.Markdown)
	}
	if len(parts.chunks.deleted) != 0 {
		t.Error("unknown target deleted something")
	}
}

func TestAskDebugMode(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{Mode: scope.ModeDebug}}
	parts := newService(t, resolver, &fakeEngine{})

	ans, err := parts.svc.Ask(context.Background(), "s1", Caller{}, "debug")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, want := range []string{"Indexed chunks: 220", "Documents: 2", "manual"} {
		if !strings.Contains(ans.Markdown, want) {
			t.Errorf("debug output missing %q:\n%s", want, ans.Markdown)
		}
	}
}

func TestDeleteFileIDExact(t *testing.T) {
	resolver := &fakeResolver{decision: scope.Decision{}}
	parts := newService(t, resolver, &fakeEngine{})

	info, err := parts.svc.DeleteFileID(context.Background(), Caller{Admin: true}, "manual")
	if err != nil {
		t.Fatalf("DeleteFileID: %v", err)
	}
	if info.Filename != "Manual.pdf" {
		t.Errorf("deleted %q", info.Filename)
	}

	if _, err := parts.svc.DeleteFileID(context.Background(), Caller{Admin: true}, "nope"); !errors.Is(err, corpus.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
