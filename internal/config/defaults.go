package config

// DefaultStopWords are generic or title-adjacent words that never count as
// strong keywords during filename rescue. Tuned by hand against real corpora.
var DefaultStopWords = []string{
	"about", "this", "that", "what", "when", "where", "which", "tell",
	"show", "give", "list", "explain", "describe", "please", "page",
	"pages", "file", "files", "document", "documents", "book", "books",
	"manual", "guide", "report", "paper", "text", "content", "contents",
	"compare", "between", "summary", "summarize", "chapter", "section",
}

// DefaultVisualKeywords mark a chunk as referring to visual material.
var DefaultVisualKeywords = []string{
	"figure", "fig.", "drawing", "diagram", "schematic", "exploded view",
}

// DefaultExcludes are glob patterns excluded from directory ingestion.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"**/*.tmp",
	"**/.*",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		ChatModel:         "gpt-4o",
		ClassifierModel:   "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-large",
		OllamaBaseURL:     "http://localhost:11434/v1",

		DataDir:      ".docuchat",
		UploadsDir:   ".docuchat/uploads",
		DatabasesDir: ".docuchat/databases",
		DefaultDB:    "books",

		Server: ServerConfig{
			Port: 8080,
		},
		Session: SessionConfig{
			Window: 5,
		},
		Retrieval: RetrievalConfig{
			TopK:             10,
			ContextCharLimit: 10000,
		},
		Scope: ScopeConfig{
			FuzzyCutoff:   0.6,
			KeywordMinLen: 4,
			StopWords:     DefaultStopWords,
		},
		Visual: VisualConfig{
			Enabled:      true,
			Candidates:   5,
			KeywordBonus: 10,
			Keywords:     DefaultVisualKeywords,
			OverviewZoom: 1.0,
			SliceZoom:    3.0,
		},
		Ingest: IngestConfig{
			Include: []string{"**/*.pdf", "**/*.txt"},
			Exclude: DefaultExcludes,
		},
	}
}
