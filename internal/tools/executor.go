package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/shared/stringutils"
)

// YieldMode controls what the executor surfaces to the caller as live
// events. Every outcome is appended to the message list regardless; the mode
// only selects the event protocol, so one executor serves the non-streaming
// path (none), the in-stream tool loop (result) and a status-only UI.
type YieldMode string

const (
	YieldNone   YieldMode = "none"
	YieldStatus YieldMode = "status"
	YieldResult YieldMode = "result"
)

// MaxToolResultChars caps a serialised tool result before it is appended to
// the conversation. The cap is a last-resort backstop: tools are expected to
// paginate themselves.
const MaxToolResultChars = 30000

const truncationMarker = "\n[TRUNCATED - tool result exceeded %d characters. Use the tool's pagination parameters to retrieve the rest.]"

// Executor runs batches of normalised tool calls against a registry.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs calls in order, sequentially: batches are small and tools are
// mostly I/O-bound against one shared automation backend, so concurrency
// would buy little. Each outcome — blocked, success or error — is appended
// to msgs as a function-role message carrying the tool name, an echo of the
// call id, and JSON content. A failing tool never aborts the batch.
//
// emit may be nil; it receives events according to mode.
func (e *Executor) Execute(
	ctx context.Context,
	calls []schema.ToolCall,
	msgs *[]schema.Message,
	mode YieldMode,
	denied map[string]bool,
	emit func(schema.Event),
) {
	for _, call := range calls {
		if denied[call.Name] {
			result := errorResult(fmt.Sprintf("Tool '%s' is not available in this context", call.Name), call.Name)
			*msgs = append(*msgs, schema.NewToolResultMessage(call.ID, call.Name, result))
			e.yield(emit, mode, call, result)
			slog.Info("Tool call blocked", "name", call.Name)
			continue
		}

		if mode == YieldResult && emit != nil {
			c := call
			emit(schema.Event{Type: schema.EventToolCall, Call: &c})
		}
		if mode == YieldStatus && emit != nil {
			emit(schema.Event{Type: schema.EventStatus, Content: "Using " + toolHint(call)})
		}

		result := e.runOne(ctx, call)
		*msgs = append(*msgs, schema.NewToolResultMessage(call.ID, call.Name, result))
		if mode == YieldResult && emit != nil {
			emit(schema.Event{Type: schema.EventToolResult, ToolName: call.Name, Result: result})
		}
	}
}

func (e *Executor) runOne(ctx context.Context, call schema.ToolCall) string {
	tool := e.registry.GetTool(call.Name)
	if tool == nil {
		return errorResult(fmt.Sprintf("Tool '%s' not found", call.Name), call.Name)
	}

	argsJSON, _ := json.Marshal(call.Arguments)
	slog.Info("Tool call", "name", call.Name, "args", stringutils.Truncate(string(argsJSON), 200))

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		slog.Warn("Tool failed", "name", call.Name, "err", err)
		return errorResult(err.Error(), call.Name)
	}
	if len(result) > MaxToolResultChars {
		result = result[:MaxToolResultChars] + fmt.Sprintf(truncationMarker, MaxToolResultChars)
	}
	return result
}

// yield surfaces a blocked-call outcome according to mode.
func (e *Executor) yield(emit func(schema.Event), mode YieldMode, call schema.ToolCall, result string) {
	if emit == nil {
		return
	}
	switch mode {
	case YieldStatus:
		emit(schema.Event{Type: schema.EventStatus, Content: fmt.Sprintf("Tool '%s' is not available", call.Name)})
	case YieldResult:
		emit(schema.Event{Type: schema.EventToolResult, ToolName: call.Name, Result: result})
	}
}

func errorResult(msg, tool string) string {
	data, _ := json.Marshal(map[string]string{"error": msg, "tool": tool})
	return string(data)
}

// toolHint renders a short human-readable description of a call,
// e.g. `get_state("light.kitchen")`.
func toolHint(call schema.ToolCall) string {
	var firstVal string
	for _, v := range call.Arguments {
		if s, ok := v.(string); ok {
			firstVal = s
		}
		break
	}
	if firstVal == "" {
		return call.Name
	}
	if len(firstVal) > 40 {
		firstVal = stringutils.TruncateHard(firstVal, 40) + "…"
	}
	return fmt.Sprintf("%s(%q)", call.Name, firstVal)
}
