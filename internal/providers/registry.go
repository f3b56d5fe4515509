// Package providers carries the provider metadata registry and the
// reference HTTP adapter. The core depends only on schema.LLMProvider; this
// package exists host-side so the assistant can actually talk to a backend.
package providers

import "strings"

// Family identifies the wire-format family a provider speaks. The parse
// package recognises all families on every response; Family is metadata for
// hosts and diagnostics.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyGemini    Family = "gemini"
	FamilyAnthropic Family = "anthropic"
)

// Spec is the metadata record for one LLM provider.
type Spec struct {
	Name           string   // config name, e.g. "anthropic"
	DisplayName    string   // shown in status output
	Family         Family   // wire-format family
	Keywords       []string // model-name keywords for matching (lowercase)
	DefaultAPIBase string   // fallback base URL when none is configured
	ContextWindow  int      // advertised context window of current models
}

// Label returns the display name, defaulting to Title-cased Name.
func (s Spec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// Specs is the registry. Order = match priority.
var Specs = []Spec{
	{
		Name:           "openai",
		DisplayName:    "OpenAI",
		Family:         FamilyOpenAI,
		Keywords:       []string{"gpt", "o1", "o3", "o4"},
		DefaultAPIBase: "https://api.openai.com/v1",
		ContextWindow:  128000,
	},
	{
		Name:           "anthropic",
		DisplayName:    "Anthropic",
		Family:         FamilyAnthropic,
		Keywords:       []string{"claude"},
		DefaultAPIBase: "https://api.anthropic.com/v1",
		ContextWindow:  200000,
	},
	{
		Name:           "gemini",
		DisplayName:    "Google Gemini",
		Family:         FamilyGemini,
		Keywords:       []string{"gemini"},
		DefaultAPIBase: "https://generativelanguage.googleapis.com/v1beta/openai",
		ContextWindow:  1048576,
	},
	{
		Name:           "deepseek",
		DisplayName:    "DeepSeek",
		Family:         FamilyOpenAI,
		Keywords:       []string{"deepseek"},
		DefaultAPIBase: "https://api.deepseek.com/v1",
		ContextWindow:  128000,
	},
	{
		Name:           "local",
		DisplayName:    "Local (OpenAI-compatible)",
		Family:         FamilyOpenAI,
		Keywords:       []string{"llama", "qwen", "mistral"},
		DefaultAPIBase: "http://localhost:11434/v1",
		ContextWindow:  32768,
	},
}

// FindByName returns the spec registered under name, or nil.
func FindByName(name string) *Spec {
	name = strings.ToLower(name)
	for i := range Specs {
		if Specs[i].Name == name {
			return &Specs[i]
		}
	}
	return nil
}

// FindByModel matches a model name against registry keywords, or nil.
func FindByModel(model string) *Spec {
	model = strings.ToLower(model)
	for i := range Specs {
		for _, kw := range Specs[i].Keywords {
			if strings.Contains(model, kw) {
				return &Specs[i]
			}
		}
	}
	return nil
}

// ContextWindowForModel looks up the advertised context window for a model,
// defaulting to 128000 for unknown models.
func ContextWindowForModel(model string) int {
	if spec := FindByModel(model); spec != nil {
		return spec.ContextWindow
	}
	return 128000
}
