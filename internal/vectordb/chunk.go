package vectordb

import (
	"strconv"
	"time"
)

// ChunkMeta holds the structured metadata of one stored chunk. A chunk is
// one page (or merged page fragment) of an uploaded document.
type ChunkMeta struct {
	FileID         string
	Source         string // display filename
	Page           int
	TotalPages     int
	Place          int
	ChunkIndex     int
	CharCount      int
	EmbeddingModel string
	UploadedAt     time.Time
}

// Chunk pairs a retrievable text with its metadata.
type Chunk struct {
	ID   string
	Text string
	Meta ChunkMeta
}

// Result pairs a chunk with its similarity score.
type Result struct {
	Chunk Chunk
	Score float32
}

// Metadata keys as stored in the vector index. Values are strings because
// the index stores flat string maps; page is additionally matched against
// its stringified form at query time to tolerate mixed typing.
const (
	KeyFileID         = "file_id"
	KeySource         = "source"
	KeyPage           = "page"
	KeyTotalPages     = "pages"
	KeyPlace          = "place"
	KeyChunkIndex     = "chunk_index"
	KeyCharCount      = "char_count"
	KeyEmbeddingModel = "embedding_model"
	KeyUploadedAt     = "uploaded_at"
)

// metaToMap converts ChunkMeta to a flat map[string]string for the index.
func metaToMap(m ChunkMeta) map[string]string {
	return map[string]string{
		KeyFileID:         m.FileID,
		KeySource:         m.Source,
		KeyPage:           strconv.Itoa(m.Page),
		KeyTotalPages:     strconv.Itoa(m.TotalPages),
		KeyPlace:          strconv.Itoa(m.Place),
		KeyChunkIndex:     strconv.Itoa(m.ChunkIndex),
		KeyCharCount:      strconv.Itoa(m.CharCount),
		KeyEmbeddingModel: m.EmbeddingModel,
		KeyUploadedAt:     m.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// mapToMeta converts a flat map[string]string back to ChunkMeta.
func mapToMeta(m map[string]string) ChunkMeta {
	page, _ := strconv.Atoi(m[KeyPage])
	pages, _ := strconv.Atoi(m[KeyTotalPages])
	place, _ := strconv.Atoi(m[KeyPlace])
	chunkIndex, _ := strconv.Atoi(m[KeyChunkIndex])
	charCount, _ := strconv.Atoi(m[KeyCharCount])
	uploadedAt, _ := time.Parse(time.RFC3339, m[KeyUploadedAt])

	return ChunkMeta{
		FileID:         m[KeyFileID],
		Source:         m[KeySource],
		Page:           page,
		TotalPages:     pages,
		Place:          place,
		ChunkIndex:     chunkIndex,
		CharCount:      charCount,
		EmbeddingModel: m[KeyEmbeddingModel],
		UploadedAt:     uploadedAt,
	}
}
