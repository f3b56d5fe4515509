// Package dependency wires core ember services using go.uber.org/dig.
package dependency

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/emberhome/ember/internal/agent"
	"github.com/emberhome/ember/internal/compact"
	"github.com/emberhome/ember/internal/config"
	"github.com/emberhome/ember/internal/conversation"
	"github.com/emberhome/ember/internal/providers"
	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider      schema.LLMProvider
	registry      *tools.Registry
	conversations *conversation.Manager
	processor     *agent.Processor
}

func (c *Container) Provider() schema.LLMProvider         { return c.provider }
func (c *Container) Registry() *tools.Registry            { return c.registry }
func (c *Container) Conversations() *conversation.Manager { return c.conversations }
func (c *Container) Processor() *agent.Processor          { return c.processor }

// LLMModel is a named string type so dig can distinguish it from plain
// strings when injecting the effective model name.
type LLMModel string

// New builds and wires all core services from cfg. Hosts pass the tools they
// want registered; the core ships none of its own.
func New(cfg *config.Config, hostTools ...schema.Tool) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newProvider); err != nil {
		return nil, err
	}
	if err := d.Provide(resolveLLMModel); err != nil {
		return nil, err
	}
	if err := d.Provide(func() *tools.Registry { return newRegistry(hostTools) }); err != nil {
		return nil, err
	}
	if err := d.Provide(newConversationManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newCompactor); err != nil {
		return nil, err
	}
	if err := d.Provide(newProcessor); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		registry *tools.Registry,
		conversations *conversation.Manager,
		processor *agent.Processor,
	) {
		result = &Container{
			provider:      provider,
			registry:      registry,
			conversations: conversations,
			processor:     processor,
		}
	})
	return result, err
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	if cfg.Provider.APIKey == "" && cfg.Provider.Name != "local" {
		return nil, fmt.Errorf("no API key configured for provider %q — edit %s",
			cfg.Provider.Name, config.ConfigPath())
	}
	return providers.New(providers.Params{
		APIKey:       cfg.Provider.APIKey,
		APIBase:      cfg.Provider.APIBase,
		DefaultModel: cfg.Provider.Model,
		ProviderName: cfg.Provider.Name,
		ExtraHeaders: cfg.Provider.ExtraHeaders,
	}), nil
}

func resolveLLMModel(cfg *config.Config, p schema.LLMProvider) LLMModel {
	m := cfg.Provider.Model
	if m == "" {
		m = p.DefaultModel()
	}
	return LLMModel(m)
}

func newRegistry(hostTools []schema.Tool) *tools.Registry {
	b := tools.NewRegistryBuilder()
	for _, t := range hostTools {
		b = b.WithTool(t)
	}
	return b.Build()
}

func newConversationManager(cfg *config.Config) *conversation.Manager {
	return conversation.NewManager(cfg.Agent.MaxMessages)
}

func newCompactor(p schema.LLMProvider, m LLMModel) *compact.Engine {
	return compact.NewEngine(p, string(m))
}

func newProcessor(
	cfg *config.Config,
	p schema.LLMProvider,
	registry *tools.Registry,
	compactor *compact.Engine,
	m LLMModel,
) *agent.Processor {
	window := cfg.Agent.ContextWindow
	if window <= 0 {
		window = providers.ContextWindowForModel(string(m))
	}
	return agent.NewProcessor(p, registry, compactor, agent.Settings{
		Model:          string(m),
		MaxIterations:  cfg.Agent.MaxIterations,
		MaxQueryLength: cfg.Agent.MaxQueryLength,
		ContextWindow:  window,
		MaxTokens:      cfg.Agent.MaxTokens,
		Temperature:    cfg.Agent.Temperature,
	}, cfg.Agent.SystemPrompt)
}
