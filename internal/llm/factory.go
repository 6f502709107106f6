package llm

import (
	"fmt"
	"os"
)

// NewProvider creates a new LLM provider based on the given provider type
// and model. Supported provider types: "openai", "ollama". Ollama is served
// through its OpenAI-compatible endpoint so tool calls work unchanged
// (local models can still struggle with them).
func NewProvider(providerType, model, ollamaBaseURL string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "ollama":
		baseURL := ollamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		// API key string is required by the client but unused by Ollama.
		return NewCompatibleProvider("ollama", baseURL, "ollama", model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
