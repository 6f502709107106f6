package embeddings

import "context"

// Embedder defines the interface for generating text embeddings. The model
// behind an Embedder is corpus configuration, not pipeline state: a corpus
// records the model its chunks were embedded with.
type Embedder interface {
	// Embed generates the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for many texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the name/identifier of the embedding model.
	Name() string
}
