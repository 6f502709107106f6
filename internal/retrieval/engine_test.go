package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/scope"
	"github.com/docuchat/docuchat/internal/vectordb"
)

// fakeStore returns canned results and records the filter it was
// queried with.
type fakeStore struct {
	results    []vectordb.Result
	lastFilter vectordb.Filter
	lastTopK   int
}

func (s *fakeStore) Add(context.Context, []vectordb.Chunk, [][]float32) error { return nil }
func (s *fakeStore) DeleteFile(context.Context, string) error                 { return nil }
func (s *fakeStore) Count() int                                               { return len(s.results) }

func (s *fakeStore) Query(_ context.Context, _ []float32, topK int, filter vectordb.Filter) ([]vectordb.Result, error) {
	s.lastFilter = filter
	s.lastTopK = topK
	return s.results, nil
}

// recordingEmbedder captures the text it was asked to embed.
type recordingEmbedder struct {
	lastText string
}

func (e *recordingEmbedder) Name() string { return "recording" }

func (e *recordingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.lastText = text
	return []float32{1, 0, 0}, nil
}

func (e *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

type fakeCatalog map[string]corpus.FileInfo

func (c fakeCatalog) Get(_ context.Context, fileID string) (corpus.FileInfo, error) {
	info, ok := c[fileID]
	if !ok {
		return corpus.FileInfo{}, corpus.ErrNotFound
	}
	return info, nil
}

func hit(fileID, source string, page, chunkIndex int, score float32, text string) vectordb.Result {
	return vectordb.Result{
		Chunk: vectordb.Chunk{
			ID:   fileID,
			Text: text,
			Meta: vectordb.ChunkMeta{
				FileID: fileID, Source: source, Page: page, TotalPages: 20,
				Place: 1, ChunkIndex: chunkIndex, CharCount: len(text),
				UploadedAt: time.Now(),
			},
		},
		Score: score,
	}
}

func TestRetrieveGroupsByFilePreservingRank(t *testing.T) {
	store := &fakeStore{results: []vectordb.Result{
		hit("b", "B.pdf", 5, 4, 0.9, "best hit from b"),
		hit("a", "A.pdf", 2, 1, 0.8, "second chunk of a"),
		hit("b", "B.pdf", 1, 0, 0.7, "earlier chunk of b"),
		hit("a", "A.pdf", 1, 0, 0.6, "first chunk of a"),
	}}
	eng := NewEngine(store, &recordingEmbedder{}, nil, 10)

	res, err := eng.Retrieve(context.Background(), "anything", scope.Decision{Mode: scope.ModeAll})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Groups))
	}
	// Group order follows best rank: b appeared first.
	if res.Groups[0].FileID != "b" || res.Groups[1].FileID != "a" {
		t.Errorf("group order = %s, %s; want b, a", res.Groups[0].FileID, res.Groups[1].FileID)
	}
	// Within a group, chunks follow document order regardless of rank.
	b := res.Groups[0].Chunks
	if b[0].Meta.ChunkIndex != 0 || b[1].Meta.ChunkIndex != 4 {
		t.Errorf("chunks not in document order: %d, %d", b[0].Meta.ChunkIndex, b[1].Meta.ChunkIndex)
	}
}

func TestRetrieveBuildsFileAndPageFilter(t *testing.T) {
	store := &fakeStore{}
	emb := &recordingEmbedder{}
	eng := NewEngine(store, emb, nil, 10)

	d := scope.Decision{
		Mode:  scope.ModeSingle,
		Files: []string{"Pump Manual.pdf"},
		Pages: []int{3, 7},
	}
	if _, err := eng.Retrieve(context.Background(), "what is on these pages", d); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if store.lastFilter == nil {
		t.Fatal("expected a filter for a scoped query")
	}
	match := map[string]string{vectordb.KeyFileID: "pump-manual", vectordb.KeyPage: "3"}
	if !store.lastFilter.Matches(match) {
		t.Errorf("filter rejects in-scope chunk: %s", store.lastFilter)
	}
	wrongPage := map[string]string{vectordb.KeyFileID: "pump-manual", vectordb.KeyPage: "4"}
	if store.lastFilter.Matches(wrongPage) {
		t.Errorf("filter accepts out-of-scope page: %s", store.lastFilter)
	}
	wrongFile := map[string]string{vectordb.KeyFileID: "other", vectordb.KeyPage: "3"}
	if store.lastFilter.Matches(wrongFile) {
		t.Errorf("filter accepts out-of-scope file: %s", store.lastFilter)
	}
}

func TestRetrievePageLookupUsesPlaceholderEmbedding(t *testing.T) {
	store := &fakeStore{}
	emb := &recordingEmbedder{}
	eng := NewEngine(store, emb, nil, 10)

	d := scope.Decision{Mode: scope.ModeSingle, Files: []string{"A.pdf"}, Pages: []int{7}}
	if _, err := eng.Retrieve(context.Background(), "show me page 7", d); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if emb.lastText != pageLookupText {
		t.Errorf("embedded %q, want the page lookup placeholder", emb.lastText)
	}

	d = scope.Decision{Mode: scope.ModeSingle, Files: []string{"A.pdf"}}
	if _, err := eng.Retrieve(context.Background(), "how does the pump work", d); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if emb.lastText != "how does the pump work" {
		t.Errorf("embedded %q, want the literal query", emb.lastText)
	}
}

func TestRetrieveUnscopedHasNilFilter(t *testing.T) {
	store := &fakeStore{}
	eng := NewEngine(store, &recordingEmbedder{}, nil, 10)

	if _, err := eng.Retrieve(context.Background(), "anything", scope.Decision{Mode: scope.ModeUncertain}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.lastFilter != nil {
		t.Errorf("unscoped query carried filter %s", store.lastFilter)
	}
}

func TestRetrieveBackfillsFromCatalog(t *testing.T) {
	legacy := hit("a", "", 3, 0, 0.9, "legacy chunk")
	legacy.Chunk.Meta.TotalPages = 0
	legacy.Chunk.Meta.Place = 0

	store := &fakeStore{results: []vectordb.Result{legacy}}
	cat := fakeCatalog{"a": {FileID: "a", Filename: "A.pdf", TotalPages: 44, Place: 2}}
	eng := NewEngine(store, &recordingEmbedder{}, cat, 10)

	res, err := eng.Retrieve(context.Background(), "anything", scope.Decision{Mode: scope.ModeAll})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	g := res.Groups[0]
	if g.Source != "A.pdf" || g.TotalPages != 44 || g.Place != 2 {
		t.Errorf("backfill incomplete: %+v", g)
	}
	if len(res.Sources) != 1 || res.Sources[0] != (Source{Filename: "A.pdf", Page: 3}) {
		t.Errorf("sources = %v", res.Sources)
	}
}

func TestSourcesDeduplicated(t *testing.T) {
	store := &fakeStore{results: []vectordb.Result{
		hit("a", "A.pdf", 3, 0, 0.9, "one"),
		hit("a", "A.pdf", 3, 1, 0.8, "two"),
		hit("a", "A.pdf", 4, 2, 0.7, "three"),
	}}
	eng := NewEngine(store, &recordingEmbedder{}, nil, 10)

	res, err := eng.Retrieve(context.Background(), "anything", scope.Decision{Mode: scope.ModeAll})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Sources) != 2 {
		t.Errorf("sources = %v, want pages 3 and 4 once each", res.Sources)
	}
}
