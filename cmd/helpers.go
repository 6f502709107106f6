package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/docuchat/docuchat/internal/assemble"
	"github.com/docuchat/docuchat/internal/audit"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/db"
	"github.com/docuchat/docuchat/internal/embeddings"
	"github.com/docuchat/docuchat/internal/llm"
	"github.com/docuchat/docuchat/internal/orchestrator"
	"github.com/docuchat/docuchat/internal/qa"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/scope"
	"github.com/docuchat/docuchat/internal/session"
	"github.com/docuchat/docuchat/internal/visual"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docuchat init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedder creates an embeddings.Embedder based on config.
func createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewCompatibleEmbedder(cfg.OllamaBaseURL, "ollama", cfg.EmbeddingModel), nil
	default:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, cfg.EmbeddingModel), nil
	}
}

// createProvider creates the chat LLM provider based on config.
func createProvider(cfg *config.Config, model string) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), model, cfg.OllamaBaseURL)
}

// app bundles the wired application components shared by the serve,
// mcp and ask commands.
type app struct {
	cfg      *config.Config
	database *db.DB
	manager  *corpus.Manager
	ingestor *corpus.Ingestor
	sessions *session.SQLiteStore
	trail    *audit.Store
	service  *qa.Service
}

func (a *app) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

// buildApp wires the full question-answering pipeline from config.
func buildApp(cfg *config.Config) (*app, error) {
	embedder, err := createEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	chatProvider, err := createProvider(cfg, cfg.ChatModel)
	if err != nil {
		return nil, err
	}
	classifierModel := cfg.ClassifierModel
	if classifierModel == "" {
		classifierModel = cfg.ChatModel
	}
	classifierProvider, err := createProvider(cfg, classifierModel)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "docuchat.db"))
	if err != nil {
		return nil, err
	}

	sessions := session.NewSQLiteStore(database, cfg.Session.Window)
	trail := audit.NewStore(database)

	manager, err := corpus.NewManager(database, embedder, cfg.DatabasesDir, cfg.DefaultDB, func(name string) {
		sessions.ClearActiveFiles()
		log.Printf("switched to corpus %s", name)
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	files := manager.Files()
	chunks := manager.Chunks()

	resolver := scope.NewResolver(classifierProvider, classifierModel, files, sessions, scope.Options{
		FuzzyCutoff:   cfg.Scope.FuzzyCutoff,
		KeywordMinLen: cfg.Scope.KeywordMinLen,
		StopWords:     cfg.Scope.StopWords,
	})

	engine := retrieval.NewEngine(chunks, embedder, files, cfg.Retrieval.TopK)

	var augmenter qa.Augmenter
	if cfg.Visual.Enabled {
		renderer := visual.NewFitzRenderer(cfg.Visual.OverviewZoom, cfg.Visual.SliceZoom)
		augmenter = visual.NewAugmenter(renderer, files, cfg.UploadsDir, visual.Options{
			Candidates:   cfg.Visual.Candidates,
			KeywordBonus: cfg.Visual.KeywordBonus,
			Keywords:     cfg.Visual.Keywords,
		})
	}

	dispatcher := orchestrator.NewDispatcher()
	orchestrator.RegisterFileTools(dispatcher, files)
	answerer := orchestrator.New(chatProvider, cfg.ChatModel, dispatcher)

	service := qa.NewService(
		sessions,
		resolver,
		engine,
		augmenter,
		assemble.NewAssembler(cfg.Retrieval.ContextCharLimit),
		answerer,
		files,
		chunks,
		trail,
		qa.Options{UploadsDir: cfg.UploadsDir},
	)

	ingestor := corpus.NewIngestor(files, chunks, embedder, cfg.UploadsDir, cfg.Ingest.Include, cfg.Ingest.Exclude)

	return &app{
		cfg:      cfg,
		database: database,
		manager:  manager,
		ingestor: ingestor,
		sessions: sessions,
		trail:    trail,
		service:  service,
	}, nil
}
