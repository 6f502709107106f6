package vectordb

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/docuchat/docuchat/internal/embeddings"
)

const collectionName = "chunks"

// ChromemStore implements Store using chromem-go with on-disk persistence.
// One store maps to one corpus directory.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// OpenChromemStore opens (or creates) the persistent vector index for a
// corpus under dir.
func OpenChromemStore(dir string, embedder embeddings.Embedder) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "index"), true)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	ef := embeddings.ToChromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, collection: col, embedFunc: ef}, nil
}

// NewMemoryStore creates an in-memory store (useful for testing).
func NewMemoryStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemStore{db: db, collection: col, embedFunc: ef}, nil
}

func (s *ChromemStore) Add(ctx context.Context, chunks []Chunk, embeds [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(embeds) != len(chunks) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(embeds), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  metaToMap(c.Meta),
			Embedding: embeds[i],
		}
	}

	return s.collection.AddDocuments(ctx, docs, 1)
}

// Query runs the similarity search. chromem-go natively supports only
// AND-combined equality maps, so boolean filters are applied in-process:
// the candidate set is widened, then reduced through the expression tree.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	n := topK
	if filter != nil {
		// The index scores every chunk anyway; rank the full set so a
		// selective filter (e.g. a bare page lookup) cannot miss chunks
		// ranked below topK.
		n = count
	}
	if n > count {
		n = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]Result, 0, topK)
	for _, r := range results {
		if filter != nil && !filter.Matches(r.Metadata) {
			continue
		}
		out = append(out, Result{
			Chunk: Chunk{
				ID:   r.ID,
				Text: r.Content,
				Meta: mapToMeta(r.Metadata),
			},
			Score: r.Similarity,
		})
		if len(out) == topK {
			break
		}
	}

	return out, nil
}

func (s *ChromemStore) DeleteFile(ctx context.Context, fileID string) error {
	return s.collection.Delete(ctx, map[string]string{KeyFileID: fileID}, nil)
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}
