package vectordb

import "context"

// Store defines the vector index operations the pipeline consumes.
type Store interface {
	// Add indexes chunks with precomputed embeddings. Embeddings[i]
	// corresponds to chunks[i].
	Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Query runs a similarity search with the given query embedding,
	// returning up to topK results that satisfy the filter. A nil filter
	// means unscoped (full-corpus) search.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Result, error)

	// DeleteFile removes every chunk belonging to the given file id.
	DeleteFile(ctx context.Context, fileID string) error

	// Count returns the total number of chunks in the store.
	Count() int
}
