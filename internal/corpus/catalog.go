package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docuchat/docuchat/internal/db"
)

// ErrNotFound is returned when a file id is not present in the catalog.
var ErrNotFound = errors.New("file not found")

// FileInfo is one catalog entry: a document known to a corpus.
type FileInfo struct {
	FileID         string    `json:"file_id"`
	Filename       string    `json:"filename"`
	TotalPages     int       `json:"total_pages"`
	Place          int       `json:"place"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Catalog is the relational document index for one corpus. The vector
// store holds chunk text; the catalog is the source of truth for
// filenames, page counts and upload order.
type Catalog struct {
	db     *db.DB
	corpus string
}

func NewCatalog(database *db.DB, corpus string) *Catalog {
	return &Catalog{db: database, corpus: corpus}
}

// List returns all documents in upload order (place ascending).
func (c *Catalog) List(ctx context.Context) ([]FileInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT file_id, filename, total_pages, place, embedding_model, uploaded_at
		 FROM documents WHERE corpus = ? ORDER BY place`,
		c.corpus,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var files []FileInfo
	for rows.Next() {
		var f FileInfo
		if err := rows.Scan(&f.FileID, &f.Filename, &f.TotalPages, &f.Place, &f.EmbeddingModel, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Get looks up one document by file id.
func (c *Catalog) Get(ctx context.Context, fileID string) (FileInfo, error) {
	var f FileInfo
	err := c.db.QueryRowContext(ctx,
		`SELECT file_id, filename, total_pages, place, embedding_model, uploaded_at
		 FROM documents WHERE corpus = ? AND file_id = ?`,
		c.corpus, fileID,
	).Scan(&f.FileID, &f.Filename, &f.TotalPages, &f.Place, &f.EmbeddingModel, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FileInfo{}, ErrNotFound
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("reading document %s: %w", fileID, err)
	}
	return f, nil
}

// Exists reports whether a file id is already indexed.
func (c *Catalog) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := c.Get(ctx, fileID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts a catalog entry. The caller assigns the place.
func (c *Catalog) Add(ctx context.Context, f FileInfo) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (corpus, file_id, filename, total_pages, place, embedding_model, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.corpus, f.FileID, f.Filename, f.TotalPages, f.Place, f.EmbeddingModel, f.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", f.FileID, err)
	}
	return nil
}

// Remove deletes a catalog entry.
func (c *Catalog) Remove(ctx context.Context, fileID string) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE corpus = ? AND file_id = ?`,
		c.corpus, fileID,
	)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", fileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// NextPlace returns the ordinal for the next upload: one past the
// number of documents already in the corpus.
func (c *Catalog) NextPlace(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE corpus = ?`, c.corpus,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count + 1, nil
}

// Filenames returns every filename in upload order. Used by the scope
// resolver to validate model-proposed names.
func (c *Catalog) Filenames(ctx context.Context) ([]string, error) {
	files, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return names, nil
}
