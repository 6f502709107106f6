package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to docuchat! Let's configure your corpus.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = cfg.Provider

	switch cfg.Provider {
	case ProviderOllama:
		cfg.ChatModel = "llama3"
		cfg.ClassifierModel = "llama3"
		cfg.EmbeddingModel = "nomic-embed-text"
	default:
		cfg.ChatModel = "gpt-4o"
		cfg.ClassifierModel = "gpt-4o-mini"
		cfg.EmbeddingModel = "text-embedding-3-large"
	}

	// 2. Default corpus name.
	namePrompt := promptui.Prompt{
		Label:   "Default corpus name",
		Default: cfg.DefaultDB,
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("name must not be empty")
			}
			return nil
		},
	}
	name, err := namePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("corpus name: %w", err)
	}
	cfg.DefaultDB = name

	// 3. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a valid port number")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration written to %s\n", path)
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" {
		fmt.Printf("Remember to set %s before starting the server.\n", envVar)
	}

	return cfg, nil
}
