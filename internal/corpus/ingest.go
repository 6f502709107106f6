package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/embeddings"
	"github.com/docuchat/docuchat/internal/progress"
	"github.com/docuchat/docuchat/internal/vectordb"
)

// ErrAlreadyIndexed is returned when a file id already exists in the
// catalog. Re-ingesting requires deleting the file first.
var ErrAlreadyIndexed = errors.New("file already indexed")

// CatalogWriter is the catalog surface ingestion needs.
type CatalogWriter interface {
	Exists(ctx context.Context, fileID string) (bool, error)
	NextPlace(ctx context.Context) (int, error)
	Add(ctx context.Context, f FileInfo) error
}

// Ingestor turns documents into indexed chunks: extract pages, embed
// them, write the vector index and the catalog entry, and keep a copy
// of the original under uploadsDir for page rendering.
type Ingestor struct {
	catalog    CatalogWriter
	store      vectordb.Store
	embedder   embeddings.Embedder
	uploadsDir string
	include    []string
	exclude    []string
}

func NewIngestor(catalog CatalogWriter, store vectordb.Store, embedder embeddings.Embedder, uploadsDir string, include, exclude []string) *Ingestor {
	if len(include) == 0 {
		include = []string{"**/*.pdf", "**/*.txt", "**/*.md"}
	}
	return &Ingestor{
		catalog:    catalog,
		store:      store,
		embedder:   embedder,
		uploadsDir: uploadsDir,
		include:    include,
		exclude:    exclude,
	}
}

// FileID derives the stable identifier for a filename: the stem,
// lowercased, with spaces replaced by dashes.
func FileID(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return strings.ReplaceAll(strings.ToLower(stem), " ", "-")
}

// IngestFile indexes a single document and returns its catalog entry.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (FileInfo, error) {
	filename := filepath.Base(path)
	fileID := FileID(filename)

	exists, err := in.catalog.Exists(ctx, fileID)
	if err != nil {
		return FileInfo{}, err
	}
	if exists {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrAlreadyIndexed, fileID)
	}

	pages, err := ExtractPages(path)
	if err != nil {
		return FileInfo{}, err
	}
	if len(pages) == 0 {
		return FileInfo{}, fmt.Errorf("no pages extracted from %s", filename)
	}

	place, err := in.catalog.NextPlace(ctx)
	if err != nil {
		return FileInfo{}, err
	}

	now := time.Now().UTC()
	info := FileInfo{
		FileID:         fileID,
		Filename:       filename,
		TotalPages:     len(pages),
		Place:          place,
		EmbeddingModel: in.embedder.Name(),
		UploadedAt:     now,
	}

	chunks := buildChunks(info, pages, now)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeds, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return FileInfo{}, fmt.Errorf("embedding %s: %w", filename, err)
	}

	if err := in.store.Add(ctx, chunks, embeds); err != nil {
		return FileInfo{}, fmt.Errorf("indexing %s: %w", filename, err)
	}
	if err := in.catalog.Add(ctx, info); err != nil {
		return FileInfo{}, err
	}

	if err := in.keepCopy(path, filename); err != nil {
		// The index is already written; page rendering degrades for
		// this file but retrieval still works.
		log.Printf("keeping upload copy of %s: %v", filename, err)
	}

	return info, nil
}

// buildChunks maps extracted pages to vector chunks, one per page.
// Pages without text get a placeholder so page-scoped lookups still
// resolve and the visual path has something to attach images to.
func buildChunks(info FileInfo, pages []Page, now time.Time) []vectordb.Chunk {
	chunks := make([]vectordb.Chunk, 0, len(pages))
	for i, p := range pages {
		text := p.Text
		if strings.TrimSpace(text) == "" {
			text = "no text found, analyze attached image"
		}
		chunks = append(chunks, vectordb.Chunk{
			ID:   chunkID(info.FileID, p.Number),
			Text: text,
			Meta: vectordb.ChunkMeta{
				FileID:         info.FileID,
				Source:         info.Filename,
				Page:           p.Number,
				TotalPages:     info.TotalPages,
				Place:          info.Place,
				ChunkIndex:     i,
				CharCount:      len(text),
				EmbeddingModel: info.EmbeddingModel,
				UploadedAt:     now,
			},
		})
	}
	return chunks
}

func chunkID(fileID string, page int) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-page-%d", fileID, hex, page)
}

func (in *Ingestor) keepCopy(path, filename string) error {
	if in.uploadsDir == "" {
		return nil
	}
	if err := os.MkdirAll(in.uploadsDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(in.uploadsDir, filename)
	if same, err := filepath.Abs(path); err == nil {
		if abs, err := filepath.Abs(dst); err == nil && same == abs {
			return nil
		}
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

// UploadPath returns where the retained copy of a file lives.
func (in *Ingestor) UploadPath(filename string) string {
	return filepath.Join(in.uploadsDir, filename)
}

// IngestDir walks a directory and indexes every matching document,
// reporting progress on stderr. Already-indexed files are skipped.
func (in *Ingestor) IngestDir(ctx context.Context, root string) ([]FileInfo, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !in.matches(rel) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	reporter := progress.NewReporter()
	reporter.Start(len(paths))
	defer reporter.Finish()

	var indexed []FileInfo
	for i, path := range paths {
		reporter.Update(i, filepath.Base(path))
		info, err := in.IngestFile(ctx, path)
		switch {
		case err == nil:
			indexed = append(indexed, info)
		case errors.Is(err, ErrAlreadyIndexed):
			log.Printf("skipping %s: already indexed", filepath.Base(path))
		default:
			log.Printf("skipping %s: %v", filepath.Base(path), err)
		}
		reporter.Update(i+1, filepath.Base(path))
	}
	return indexed, nil
}

func (in *Ingestor) matches(rel string) bool {
	for _, pattern := range in.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range in.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
