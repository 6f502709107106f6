package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/docuchat/docuchat/internal/db"
	"github.com/docuchat/docuchat/internal/embeddings"
	"github.com/docuchat/docuchat/internal/vectordb"
)

// Manager owns the set of named corpora and which one is active. Each
// corpus is a directory under databasesDir holding its own vector
// index; catalog rows are partitioned by corpus name in SQLite. The
// active selection is persisted so restarts resume where they left off.
type Manager struct {
	db           *db.DB
	embedder     embeddings.Embedder
	databasesDir string
	defaultName  string

	// onSwitch runs after the active corpus changes. Wired to the
	// session store so stale active-file hints do not survive a switch.
	onSwitch func(name string)

	mu      sync.RWMutex
	active  string
	store   vectordb.Store
	catalog *Catalog
}

func NewManager(database *db.DB, embedder embeddings.Embedder, databasesDir, defaultName string, onSwitch func(name string)) (*Manager, error) {
	m := &Manager{
		db:           database,
		embedder:     embedder,
		databasesDir: databasesDir,
		defaultName:  defaultName,
		onSwitch:     onSwitch,
	}

	name, err := m.persistedActive()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = defaultName
	}
	if err := m.open(name); err != nil {
		return nil, err
	}
	return m, nil
}

// Active returns the name of the active corpus.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Store returns the vector store of the active corpus.
func (m *Manager) Store() vectordb.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

// Catalog returns the document catalog of the active corpus.
func (m *Manager) Catalog() *Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog
}

// List returns every known corpus name: directories on disk plus the
// active one, sorted.
func (m *Manager) List() ([]string, error) {
	names := map[string]bool{m.Active(): true}
	entries, err := os.ReadDir(m.databasesDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			names[e.Name()] = true
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Switch activates the named corpus, creating it on first use, and
// persists the selection.
func (m *Manager) Switch(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("corpus name must not be empty")
	}
	if m.Active() == name {
		return nil
	}

	if err := m.open(name); err != nil {
		return err
	}
	if err := m.persistActive(ctx, name); err != nil {
		return err
	}
	if m.onSwitch != nil {
		m.onSwitch(name)
	}
	return nil
}

func (m *Manager) open(name string) error {
	dir := filepath.Join(m.databasesDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}

	store, err := vectordb.OpenChromemStore(dir, m.embedder)
	if err != nil {
		return fmt.Errorf("opening corpus %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = name
	m.store = store
	m.catalog = NewCatalog(m.db, name)
	return nil
}

// FilesView is a catalog handle that always points at the active
// corpus, so long-lived components survive corpus switches.
type FilesView struct{ m *Manager }

// Files returns the active-corpus catalog view.
func (m *Manager) Files() FilesView { return FilesView{m: m} }

func (v FilesView) List(ctx context.Context) ([]FileInfo, error) { return v.m.Catalog().List(ctx) }

func (v FilesView) Get(ctx context.Context, fileID string) (FileInfo, error) {
	return v.m.Catalog().Get(ctx, fileID)
}

func (v FilesView) Exists(ctx context.Context, fileID string) (bool, error) {
	return v.m.Catalog().Exists(ctx, fileID)
}

func (v FilesView) Add(ctx context.Context, f FileInfo) error { return v.m.Catalog().Add(ctx, f) }

func (v FilesView) Remove(ctx context.Context, fileID string) error {
	return v.m.Catalog().Remove(ctx, fileID)
}

func (v FilesView) NextPlace(ctx context.Context) (int, error) { return v.m.Catalog().NextPlace(ctx) }

func (v FilesView) Filenames(ctx context.Context) ([]string, error) {
	return v.m.Catalog().Filenames(ctx)
}

// StoreView is the vector-store handle following the active corpus.
type StoreView struct{ m *Manager }

// Chunks returns the active-corpus vector store view.
func (m *Manager) Chunks() StoreView { return StoreView{m: m} }

func (v StoreView) Add(ctx context.Context, chunks []vectordb.Chunk, embeds [][]float32) error {
	return v.m.Store().Add(ctx, chunks, embeds)
}

func (v StoreView) Query(ctx context.Context, embedding []float32, topK int, filter vectordb.Filter) ([]vectordb.Result, error) {
	return v.m.Store().Query(ctx, embedding, topK, filter)
}

func (v StoreView) DeleteFile(ctx context.Context, fileID string) error {
	return v.m.Store().DeleteFile(ctx, fileID)
}

func (v StoreView) Count() int { return v.m.Store().Count() }

func (m *Manager) persistedActive() (string, error) {
	var name string
	err := m.db.QueryRow(`SELECT name FROM active_corpus WHERE id = 1`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading active corpus: %w", err)
	}
	return name, nil
}

func (m *Manager) persistActive(ctx context.Context, name string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO active_corpus (id, name) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		name,
	)
	if err != nil {
		return fmt.Errorf("persisting active corpus: %w", err)
	}
	return nil
}
