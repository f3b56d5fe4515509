// Package config defines the ember configuration schema and its YAML loader.
package config

// Config is the root configuration document.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig selects and authenticates the LLM backend.
type ProviderConfig struct {
	// Name picks a registry entry: openai, anthropic, gemini, deepseek, local.
	Name    string `yaml:"name"`
	APIKey  string `yaml:"apiKey"`
	APIBase string `yaml:"apiBase"`
	Model   string `yaml:"model"`
	// ExtraHeaders are added verbatim to every provider request.
	ExtraHeaders map[string]string `yaml:"extraHeaders"`
}

// AgentConfig tunes the query loop and context management.
type AgentConfig struct {
	SystemPrompt   string  `yaml:"systemPrompt"`
	MaxIterations  int     `yaml:"maxIterations"`
	MaxQueryLength int     `yaml:"maxQueryLength"`
	ContextWindow  int     `yaml:"contextWindow"`
	MaxMessages    int     `yaml:"maxMessages"`
	MaxTokens      int     `yaml:"maxTokens"`
	Temperature    float64 `yaml:"temperature"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

const defaultSystemPrompt = `You are Ember, a helpful home assistant. You can inspect and control ` +
	`devices through the tools available to you. Answer in the user's language, ` +
	`be concise, and confirm state-changing actions.`

// DefaultConfig returns the built-in defaults used when no file exists or a
// field is left unset.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Name:  "openai",
			Model: "gpt-4o-mini",
		},
		Agent: AgentConfig{
			SystemPrompt:   defaultSystemPrompt,
			MaxIterations:  10,
			MaxQueryLength: 1000,
			MaxMessages:    100,
			MaxTokens:      4096,
			Temperature:    0.7,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
