// Package compact shrinks conversation history to fit a token budget.
//
// Two strategies live here. The full engine runs before a query: it first
// tries AI summarisation of the old half of the history (with a best-effort
// memory flush of what is about to be discarded) and falls back to hard
// truncation when summarisation fails. A second, narrower path runs inside
// an active tool loop and only shrinks tool-result contents, because
// dropping assistant/tool pairs mid-loop makes the model re-issue calls it
// already made. The duplication is intentional: the two paths optimise for
// different invariants.
package compact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/shared/stringutils"
	"github.com/emberhome/ember/internal/tokens"
)

const (
	// MaxHistoryTurns caps user turns independently of the token budget:
	// even huge-window models degrade on long histories, so growth is
	// bounded regardless of the estimate.
	MaxHistoryTurns = 12

	// TriggerRatio: compaction starts when the estimate passes this
	// fraction of the available input budget.
	TriggerRatio = 0.80

	// MinRecentMessages is how much recent history survives summarisation
	// untouched.
	MinRecentMessages = 16

	// EffectiveMaxContext caps advertised context windows for budget
	// purposes.
	EffectiveMaxContext = 128000

	// SummaryMarker prefixes the injected summary message.
	SummaryMarker = "[Previous conversation summary]"

	minSummaryChars          = 20
	maxFormattedMessageChars = 2000
	maxSummaryInputChars     = 40000
	summaryMaxTokens         = 1024
	summaryTemperature       = 0.3
)

const summarizerPrompt = `You are summarising the older part of a conversation between a user and a home-automation assistant so it can be replaced by a shorter note.

Rules:
- Write the summary in the same language the conversation uses. Never translate.
- Preserve entity IDs, automation names, user decisions, tool call outcomes, errors, and open tasks exactly.
- Discard greetings, small talk and filler.
- At most 500 words.
- Output only the summary itself, with no meta-commentary.`

// toolReminder counteracts models treating a summary as licence to skip
// mandatory tool calls.
const toolReminder = "Understood. I have the summary of our earlier conversation. I will keep using the available tools for live device state and actions instead of relying on the summary."

// FlushFunc captures durable facts from messages about to be discarded.
// Failures are logged and ignored; compaction proceeds regardless.
type FlushFunc func(ctx context.Context, old []schema.Message, userID, sessionID, provider string) (int, error)

// Options carries the per-call inputs of a compaction decision.
type Options struct {
	ContextWindow int
	OutputReserve int // 0 selects the default reserve
	UserID        string
	SessionID     string
	ProviderName  string
	Flush         FlushFunc
	ToolNames     []string // enabled tools, re-listed after summarisation
}

// Engine decides whether and how to shrink a message list.
type Engine struct {
	provider schema.LLMProvider
	model    string
}

// NewEngine creates an Engine that summarises through provider using model
// (empty selects the provider default).
func NewEngine(provider schema.LLMProvider, model string) *Engine {
	return &Engine{provider: provider, model: model}
}

// AvailableForInput computes the input token budget for a context window,
// capped at EffectiveMaxContext.
func AvailableForInput(window, outputReserve int) int {
	if window > EffectiveMaxContext {
		window = EffectiveMaxContext
	}
	return tokens.ComputeBudget(window, outputReserve, tokens.DefaultSafetyMargin).AvailableForInput
}

// Compact returns msgs unchanged when they fit the budget; the provider is
// never called in that case. Otherwise it rebuilds the list around an AI
// summary of the old history, or truncates when summarisation is not
// worthwhile or fails. The result is always usable: every failure path
// degrades, none propagates.
func (e *Engine) Compact(ctx context.Context, msgs []schema.Message, opts Options) []schema.Message {
	available := AvailableForInput(opts.ContextWindow, opts.OutputReserve)

	userTurns := 0
	for _, m := range msgs {
		if m.Role == schema.RoleUser {
			userTurns++
		}
	}
	estimated := tokens.EstimateMessages(msgs)
	if userTurns <= MaxHistoryTurns && float64(estimated) <= float64(available)*TriggerRatio {
		return msgs
	}

	slog.Info("compacting conversation",
		"messages", len(msgs), "user_turns", userTurns,
		"estimated_tokens", estimated, "available", available)

	var system *schema.Message
	history := msgs
	if len(history) > 0 && history[0].Role == schema.RoleSystem {
		system = &history[0]
		history = history[1:]
	}
	var query *schema.Message
	if len(history) > 0 && history[len(history)-1].Role == schema.RoleUser {
		query = &history[len(history)-1]
		history = history[:len(history)-1]
	}

	// Too short to justify an AI call: not enough old material.
	if len(history) <= MinRecentMessages+2 {
		return Truncate(msgs, available)
	}

	// Never split inside an assistant/tool run; walk back to a user turn.
	split := len(history) - MinRecentMessages
	for split > 0 && history[split].Role != schema.RoleUser {
		split--
	}
	if split <= 0 {
		return Truncate(msgs, available)
	}
	old, recent := history[:split], history[split:]

	e.flush(ctx, old, opts)

	summary, err := e.summarize(ctx, old)
	if err != nil {
		slog.Warn("summarisation failed, falling back to truncation", "err", err)
		return Truncate(msgs, available)
	}

	rebuilt := make([]schema.Message, 0, len(recent)+5)
	if system != nil {
		rebuilt = append(rebuilt, *system)
	}
	rebuilt = append(rebuilt, schema.NewSystemMessage(SummaryMarker+"\n"+summary))
	rebuilt = append(rebuilt, schema.NewAssistantMessage(toolReminder, nil))
	if len(opts.ToolNames) > 0 {
		rebuilt = append(rebuilt, schema.NewSystemMessage(
			"Available tools: "+strings.Join(opts.ToolNames, ", ")+". Call them whenever the request needs live data or device control."))
	}
	rebuilt = append(rebuilt, recent...)
	if query != nil {
		rebuilt = append(rebuilt, *query)
	}

	if tokens.EstimateMessages(rebuilt) > available {
		return Truncate(rebuilt, available)
	}
	return rebuilt
}

// flush hands the soon-to-be-discarded messages to the memory hook.
// Best-effort: any error or panic is logged and swallowed.
func (e *Engine) flush(ctx context.Context, old []schema.Message, opts Options) {
	if opts.Flush == nil || opts.UserID == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("memory flush panicked", "recovered", r)
		}
	}()
	captured, err := opts.Flush(ctx, old, opts.UserID, opts.SessionID, opts.ProviderName)
	if err != nil {
		slog.Warn("memory flush failed", "err", err)
		return
	}
	slog.Info("memory flush done", "captured", captured, "messages", len(old))
}

func (e *Engine) summarize(ctx context.Context, old []schema.Message) (string, error) {
	input := formatForSummary(old)
	messages := []schema.Message{
		schema.NewSystemMessage(summarizerPrompt),
		schema.NewUserMessage(schema.Text(input)),
	}

	resp, err := e.provider.Chat(ctx, messages, nil,
		schema.NewChatOptions(e.model, summaryMaxTokens, summaryTemperature))
	if err != nil {
		return "", fmt.Errorf("summarisation call: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if len(summary) <= minSummaryChars {
		return "", fmt.Errorf("summary too short (%d chars)", len(summary))
	}
	return summary, nil
}

// formatForSummary renders messages as "[role]: content" lines, capping each
// message and the total input.
func formatForSummary(msgs []schema.Message) string {
	var lines []string
	for _, m := range msgs {
		content := m.Text()
		if content == "" {
			continue
		}
		content = stringutils.Truncate(content, maxFormattedMessageChars)
		lines = append(lines, fmt.Sprintf("[%s]: %s", m.Role, content))
	}
	return stringutils.TruncateHard(strings.Join(lines, "\n"), maxSummaryInputChars)
}
