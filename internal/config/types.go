package config

// ProviderType identifies an LLM/embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level docuchat configuration, corresponding to .docuchat.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	ChatModel         string       `yaml:"chat_model" koanf:"chat_model"`
	ClassifierModel   string       `yaml:"classifier_model" koanf:"classifier_model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	OllamaBaseURL     string       `yaml:"ollama_base_url" koanf:"ollama_base_url"`

	DataDir      string `yaml:"data_dir" koanf:"data_dir"`
	UploadsDir   string `yaml:"uploads_dir" koanf:"uploads_dir"`
	DatabasesDir string `yaml:"databases_dir" koanf:"databases_dir"`
	DefaultDB    string `yaml:"default_database" koanf:"default_database"`

	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Session   SessionConfig   `yaml:"session" koanf:"session"`
	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Scope     ScopeConfig     `yaml:"scope" koanf:"scope"`
	Visual    VisualConfig    `yaml:"visual" koanf:"visual"`
	Ingest    IngestConfig    `yaml:"ingest" koanf:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// SessionConfig holds conversation memory settings.
type SessionConfig struct {
	// Window is the number of recent exchanges kept in the prompt context.
	Window int `yaml:"window" koanf:"window"`
}

// RetrievalConfig holds vector search settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" koanf:"top_k"`
	// ContextCharLimit is the assembled-context size above which listing
	// queries skip retrieved content entirely.
	ContextCharLimit int `yaml:"context_char_limit" koanf:"context_char_limit"`
}

// ScopeConfig holds the tuned constants of the scope resolver heuristics.
// These values are empirical, not derived; treat them as configuration.
type ScopeConfig struct {
	// FuzzyCutoff is the minimum edit similarity (0..1) for a classifier
	// token to resolve to a known filename.
	FuzzyCutoff float64 `yaml:"fuzzy_cutoff" koanf:"fuzzy_cutoff"`
	// KeywordMinLen is the minimum length of a query word considered a
	// "strong" keyword by the rescue heuristic.
	KeywordMinLen int `yaml:"keyword_min_len" koanf:"keyword_min_len"`
	// StopWords are generic or title-adjacent words the rescue heuristic
	// ignores.
	StopWords []string `yaml:"stop_words" koanf:"stop_words"`
}

// VisualConfig holds page rendering and visual re-ranking settings.
type VisualConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"`
	// Candidates is the number of top retrieved chunks considered for a
	// visual target.
	Candidates int `yaml:"candidates" koanf:"candidates"`
	// KeywordBonus is added to a candidate's score when its text mentions a
	// figure or diagram.
	KeywordBonus int      `yaml:"keyword_bonus" koanf:"keyword_bonus"`
	Keywords     []string `yaml:"keywords" koanf:"keywords"`
	// OverviewZoom renders the full-page overview; SliceZoom renders the
	// high-resolution slices.
	OverviewZoom float64 `yaml:"overview_zoom" koanf:"overview_zoom"`
	SliceZoom    float64 `yaml:"slice_zoom" koanf:"slice_zoom"`
}

// IngestConfig holds directory ingestion glob patterns.
type IngestConfig struct {
	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`
}
