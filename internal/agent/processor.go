// Package agent implements the query processor: it turns one user utterance
// into a sequence of provider calls and tool invocations, keeping the
// message list under the model's context budget throughout.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/emberhome/ember/internal/compact"
	"github.com/emberhome/ember/internal/parse"
	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/shared/stringutils"
	"github.com/emberhome/ember/internal/tools"
)

// defaultAttachmentQuery substitutes for an empty query when images are
// attached.
const defaultAttachmentQuery = "Describe what you see in the attached image."

var errEmptyQuery = errors.New("query is empty after sanitisation")

// Processor orchestrates the provider/tool loop for one query at a time.
// State is local to each call; a Processor may serve many concurrent
// independent queries. All collaborators are injected at construction.
type Processor struct {
	provider  schema.LLMProvider
	registry  *tools.Registry
	executor  *tools.Executor
	compactor *compact.Engine
	settings  Settings
	sysPrompt string
}

// NewProcessor wires a Processor from its collaborators.
func NewProcessor(
	provider schema.LLMProvider,
	registry *tools.Registry,
	compactor *compact.Engine,
	settings Settings,
	systemPrompt string,
) *Processor {
	return &Processor{
		provider:  provider,
		registry:  registry,
		executor:  tools.NewExecutor(registry),
		compactor: compactor,
		settings:  settings.withDefaults(),
		sysPrompt: systemPrompt,
	}
}

// Process runs the non-streaming query loop: call the provider, execute any
// requested tools, re-ask, up to the iteration cap. It always returns a
// structured Result; no error from a single tool or parse attempt escapes.
func (p *Processor) Process(ctx context.Context, query string, opts ProcessOptions) Result {
	queryID := uuid.NewString()

	query, err := p.sanitize(query, opts)
	if err != nil {
		return failure(queryID, "Please provide a non-empty query.")
	}

	msgs := p.buildMessages(ctx, query, opts)
	available := compact.AvailableForInput(p.contextWindow(opts), 0)
	chatOpts := p.chatOptions(opts)
	defs := p.definitions(opts)
	allowed := p.registry.Names()
	maxIter := p.maxIterations(opts)

	var toolsUsed []string
	for i := 0; i < maxIter; i++ {
		resp, err := p.provider.Chat(ctx, msgs, defs, chatOpts)
		if err != nil {
			slog.Error("provider call failed", "query_id", queryID, "err", err)
			return failure(queryID, "The language model is unavailable: "+err.Error())
		}

		calls := p.detectCalls(resp, allowed)
		if len(calls) == 0 {
			return Result{
				Success:    true,
				Response:   finalText(resp.Content),
				ToolsUsed:  toolsUsed,
				Iterations: i + 1,
				QueryID:    queryID,
			}
		}

		msgs = append(msgs, assistantCallMessage(resp, calls))
		p.executor.Execute(ctx, calls, &msgs, tools.YieldNone, opts.DeniedTools, nil)
		for _, c := range calls {
			toolsUsed = append(toolsUsed, c.Name)
		}
		msgs = p.compactor.ShrinkToolResults(msgs, available)
	}

	// Iteration cap: one last call with tools stripped forces a text answer.
	resp, err := p.provider.Chat(ctx, msgs, nil, chatOpts)
	if err != nil {
		slog.Error("final call after iteration cap failed", "query_id", queryID, "err", err)
		return failure(queryID, "Maximum tool iterations reached without a final answer.")
	}
	return Result{
		Success:    true,
		Response:   finalText(resp.Content),
		ToolsUsed:  toolsUsed,
		Iterations: maxIter,
		QueryID:    queryID,
	}
}

// sanitize cleans the raw query: invisible characters stripped, whitespace
// trimmed, hard length cap. An empty result is an error unless attachments
// are present, in which case a generic describe-the-image query substitutes.
func (p *Processor) sanitize(query string, opts ProcessOptions) (string, error) {
	query = strings.TrimSpace(stringutils.StripInvisible(query))
	if query == "" {
		if len(opts.Attachments) > 0 {
			return defaultAttachmentQuery, nil
		}
		return "", errEmptyQuery
	}
	return stringutils.TruncateHard(query, p.settings.MaxQueryLength), nil
}

// buildMessages assembles system prompt + history + the new user message,
// then fits the list to the context budget.
func (p *Processor) buildMessages(ctx context.Context, query string, opts ProcessOptions) []schema.Message {
	sysPrompt := p.sysPrompt
	if opts.RAGContext != "" {
		sysPrompt += "\n\n## Relevant context\n" + opts.RAGContext
	}

	msgs := []schema.Message{schema.NewSystemMessage(sysPrompt)}

	history := opts.History
	// Keep a single leading system message: ours replaces any the history
	// starts with.
	if len(history) > 0 && history[0].Role == schema.RoleSystem {
		history = history[1:]
	}
	msgs = append(msgs, history...)

	var content schema.Content = schema.Text(query)
	if len(opts.Attachments) > 0 {
		content = schema.Multimodal{Text: query, Images: opts.Attachments}
	}
	msgs = append(msgs, schema.NewUserMessage(content))

	return p.compactor.Compact(ctx, msgs, compact.Options{
		ContextWindow: p.contextWindow(opts),
		UserID:        opts.UserID,
		SessionID:     opts.SessionID,
		ProviderName:  p.provider.DefaultModel(),
		Flush:         opts.Flush,
		ToolNames:     p.registry.NameList(),
	})
}

// detectCalls prefers structured calls from the provider and falls back to
// parsing the response text for embedded call JSON.
func (p *Processor) detectCalls(resp schema.LLMResponse, allowed map[string]bool) []schema.ToolCall {
	if resp.HasToolCalls() {
		return parse.Normalize(filterCalls(resp.ToolCalls, allowed))
	}
	return parse.Normalize(parse.Detect(resp.Content, allowed))
}

func filterCalls(calls []schema.ToolCall, allowed map[string]bool) []schema.ToolCall {
	var kept []schema.ToolCall
	for _, c := range calls {
		if !allowed[c.Name] {
			slog.Warn("dropping call to unknown tool", "tool", c.Name)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// assistantCallMessage records the model's tool request in history. The
// content is the canonical dual encoding so any provider family recognises
// its own shape on replay; when the provider returned structured call
// objects they are preserved verbatim on the message, since provider-side
// verification of prior turns may depend on byte-exact replay.
func assistantCallMessage(resp schema.LLMResponse, calls []schema.ToolCall) schema.Message {
	structured := resp.ToolCalls
	if len(structured) == 0 {
		structured = calls
	}
	return schema.Message{
		Role:      schema.RoleAssistant,
		Content:   schema.Text(parse.EncodeAssistantContent(calls)),
		ToolCalls: structured,
	}
}

func (p *Processor) contextWindow(opts ProcessOptions) int {
	if opts.ContextWindow > 0 {
		return opts.ContextWindow
	}
	return p.settings.ContextWindow
}

func (p *Processor) maxIterations(opts ProcessOptions) int {
	if opts.MaxIterations > 0 {
		return opts.MaxIterations
	}
	return p.settings.MaxIterations
}

func (p *Processor) chatOptions(opts ProcessOptions) schema.ChatOptions {
	model := p.settings.Model
	if opts.Model != "" {
		model = opts.Model
	}
	return schema.NewChatOptions(model, p.settings.MaxTokens, p.settings.Temperature)
}

// definitions returns the tool schemas for the provider call, or nil when
// the provider cannot use tools or denial leaves none enabled.
func (p *Processor) definitions(opts ProcessOptions) []map[string]any {
	if !p.provider.SupportsTools() || p.registry.Len() == 0 {
		return nil
	}
	if len(opts.DeniedTools) > 0 {
		enabled := 0
		for name := range p.registry.Names() {
			if !opts.DeniedTools[name] {
				enabled++
			}
		}
		if enabled == 0 {
			return nil
		}
	}
	return p.registry.Definitions()
}

func finalText(content string) string {
	return strings.TrimSpace(stringutils.StripThink(content))
}
