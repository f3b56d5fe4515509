package agent

import (
	"github.com/emberhome/ember/internal/compact"
	"github.com/emberhome/ember/internal/schema"
)

// Defaults for processor settings.
const (
	DefaultMaxIterations  = 10
	DefaultMaxQueryLength = 1000
	DefaultContextWindow  = compact.EffectiveMaxContext
	DefaultMaxTokens      = 4096
)

// Settings is the static configuration of a Processor.
type Settings struct {
	Model          string
	MaxIterations  int
	MaxQueryLength int
	ContextWindow  int
	MaxTokens      int
	Temperature    float64
}

// withDefaults fills zero fields with their defaults.
func (s Settings) withDefaults() Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.MaxQueryLength <= 0 {
		s.MaxQueryLength = DefaultMaxQueryLength
	}
	if s.ContextWindow <= 0 {
		s.ContextWindow = DefaultContextWindow
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// ProcessOptions carries the optional per-query inputs. Named fields replace
// the loose option maps this design grew from, so every layer sees the same
// typed struct.
type ProcessOptions struct {
	// History is the conversation so far, already ordered. When non-nil it
	// takes precedence over any conversation state the host keeps, for this
	// call only.
	History []schema.Message

	// Attachments are images accompanying the query.
	Attachments []schema.Image

	// DeniedTools are blocked for this query: calls to them produce error
	// results instead of executing.
	DeniedTools map[string]bool

	// Flush captures durable facts from history discarded by compaction.
	Flush compact.FlushFunc

	UserID    string
	SessionID string

	// RAGContext is appended to the system prompt when non-empty.
	RAGContext string

	// Model overrides the processor's default model for this call.
	Model string

	// ContextWindow overrides the configured window for this call.
	ContextWindow int

	// MaxIterations overrides the configured tool-loop cap for this call.
	MaxIterations int
}

// Result is the terminal outcome of a processed query. Failures are data,
// not exceptions: Error is set and Success is false.
type Result struct {
	Success    bool
	Response   string
	Error      string
	ToolsUsed  []string
	Iterations int
	QueryID    string
}

func failure(queryID, msg string) Result {
	return Result{Success: false, Error: msg, QueryID: queryID}
}
