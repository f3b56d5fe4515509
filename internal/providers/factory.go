package providers

import "github.com/emberhome/ember/internal/schema"

// Params carries everything needed to construct a provider.
type Params struct {
	APIKey       string
	APIBase      string
	DefaultModel string
	ProviderName string
	ExtraHeaders map[string]string
}

// New builds an LLMProvider from params. Every supported backend speaks
// either the OpenAI-compatible or Anthropic wire format, so one adapter
// covers the whole registry.
func New(p Params) schema.LLMProvider {
	return NewOpenAIProvider(p.APIKey, p.APIBase, p.DefaultModel, p.ProviderName, p.ExtraHeaders)
}
