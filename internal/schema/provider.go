package schema

import "context"

// ChatOptions configures a single LLM chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// LLMResponse is the normalised response from any LLM provider.
// ToolCalls is populated when the provider returns structured call objects;
// providers that embed calls in free text leave it empty and the caller
// falls back to text parsing.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        map[string]int // "input_tokens", "output_tokens"
}

// HasToolCalls reports whether the response contains at least one tool call.
func (r LLMResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// LLMProvider is the interface every LLM backend must satisfy.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, tools []map[string]any, opts ChatOptions) (LLMResponse, error)
	DefaultModel() string
	SupportsTools() bool
}

// Stream chunk types emitted by StreamingProvider implementations.
const (
	ChunkText     = "text"
	ChunkToolCall = "tool_call"
	ChunkError    = "error"
)

// StreamChunk is one increment of a streamed completion. Text deltas arrive
// as they are generated; tool calls arrive only once fully accumulated.
type StreamChunk struct {
	Type     string
	Text     string
	ToolCall *ToolCall
	Err      error
}

// StreamingProvider is implemented by providers that can stream responses
// incrementally. Callers discover the capability with a type assertion and
// degrade to one-shot Chat calls when it is absent.
type StreamingProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, messages []Message, tools []map[string]any, opts ChatOptions) (<-chan StreamChunk, error)
}
