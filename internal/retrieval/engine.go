package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/embeddings"
	"github.com/docuchat/docuchat/internal/scope"
	"github.com/docuchat/docuchat/internal/vectordb"
)

// pageLookupText replaces the query embedding when the user asked for
// specific pages. Page scoping is exact via the metadata filter; a
// semantic embedding of "what is on page 7" would only add noise.
const pageLookupText = "page lookup"

// unknownFileID groups chunks that carry neither a file id nor a
// source filename.
const unknownFileID = "unknown-file"

// Group is all retrieved chunks of one file, in document order.
type Group struct {
	FileID     string
	Source     string
	TotalPages int
	Place      int
	Chunks     []vectordb.Chunk
}

// Source is one provenance entry for the answer footer.
type Source struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
}

// Results is the retrieval outcome handed to context assembly.
type Results struct {
	// Ranked preserves the raw relevance order for downstream
	// re-ranking; Groups reorder the same chunks by document position.
	Ranked []vectordb.Result
	// Groups are ordered by first appearance in the relevance ranking.
	Groups  []Group
	Sources []Source
}

// Empty reports whether nothing was retrieved.
func (r *Results) Empty() bool { return len(r.Groups) == 0 }

// FileCatalog backfills chunk metadata from the document index.
type FileCatalog interface {
	Get(ctx context.Context, fileID string) (corpus.FileInfo, error)
}

// Engine turns a scope decision into retrieved, grouped chunks.
type Engine struct {
	store    vectordb.Store
	embedder embeddings.Embedder
	catalog  FileCatalog
	topK     int
}

func NewEngine(store vectordb.Store, embedder embeddings.Embedder, catalog FileCatalog, topK int) *Engine {
	if topK <= 0 {
		topK = 10
	}
	return &Engine{store: store, embedder: embedder, catalog: catalog, topK: topK}
}

// Retrieve runs the scoped similarity search for a query.
func (e *Engine) Retrieve(ctx context.Context, query string, d scope.Decision) (*Results, error) {
	filter := BuildFilter(d)

	text := query
	if len(d.Pages) > 0 {
		text = pageLookupText
	}

	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.store.Query(ctx, emb, e.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	return e.groupResults(ctx, hits), nil
}

// BuildFilter maps a scope decision to a metadata filter. Nil means
// unscoped search.
func BuildFilter(d scope.Decision) vectordb.Filter {
	var parts vectordb.And

	if len(d.Files) > 0 {
		var files vectordb.Or
		for _, name := range d.Files {
			files = append(files, vectordb.FileEq(corpus.FileID(name), name))
		}
		parts = append(parts, files)
	}

	if len(d.Pages) > 0 {
		parts = append(parts, vectordb.PageIn(d.Pages))
	}

	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		return parts
	}
}

// groupResults buckets hits per file, keeping group order by best
// rank and chunk order by position in the document.
func (e *Engine) groupResults(ctx context.Context, hits []vectordb.Result) *Results {
	out := &Results{Ranked: hits}
	index := make(map[string]int)

	for _, hit := range hits {
		key := hit.Chunk.Meta.FileID
		if key == "" {
			key = hit.Chunk.Meta.Source
		}
		if key == "" {
			key = unknownFileID
		}

		i, ok := index[key]
		if !ok {
			i = len(out.Groups)
			index[key] = i
			out.Groups = append(out.Groups, Group{
				FileID:     key,
				Source:     hit.Chunk.Meta.Source,
				TotalPages: hit.Chunk.Meta.TotalPages,
				Place:      hit.Chunk.Meta.Place,
			})
		}
		out.Groups[i].Chunks = append(out.Groups[i].Chunks, hit.Chunk)
	}

	for i := range out.Groups {
		e.backfill(ctx, &out.Groups[i])
		chunks := out.Groups[i].Chunks
		sort.SliceStable(chunks, func(a, b int) bool {
			if chunks[a].Meta.ChunkIndex != chunks[b].Meta.ChunkIndex {
				return chunks[a].Meta.ChunkIndex < chunks[b].Meta.ChunkIndex
			}
			return chunks[a].Meta.Page < chunks[b].Meta.Page
		})
	}

	out.Sources = collectSources(out.Groups)
	return out
}

// backfill fills missing group metadata from the catalog. Chunks
// indexed by older versions may lack page totals or placement.
func (e *Engine) backfill(ctx context.Context, g *Group) {
	if e.catalog == nil || g.FileID == unknownFileID {
		return
	}
	if g.Source != "" && g.TotalPages > 0 && g.Place > 0 {
		return
	}

	info, err := e.catalog.Get(ctx, g.FileID)
	if err != nil {
		return
	}
	if g.Source == "" {
		g.Source = info.Filename
	}
	if g.TotalPages == 0 {
		g.TotalPages = info.TotalPages
	}
	if g.Place == 0 {
		g.Place = info.Place
	}
}

func collectSources(groups []Group) []Source {
	var sources []Source
	seen := make(map[Source]bool)
	for _, g := range groups {
		for _, c := range g.Chunks {
			name := g.Source
			if name == "" {
				name = g.FileID
			}
			s := Source{Filename: name, Page: c.Meta.Page}
			if !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
	}
	return sources
}
