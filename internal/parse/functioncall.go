package parse

import (
	"encoding/json"
	"log/slog"

	"github.com/emberhome/ember/internal/schema"
)

// format is one provider-specific tool-call shape: a detection predicate and
// an extractor. Formats are tried in a fixed priority list; the first one
// yielding calls wins. A response can legally contain overlapping keys (e.g.
// tool_calls plus a stray name/arguments pair echoed from a prior turn), so
// the most structurally specific shape must be tried first. Adding a fourth
// provider family is a one-entry addition here.
type format struct {
	name    string
	extract func(obj map[string]any) []schema.ToolCall
}

var formats = []format{
	{name: "openai", extract: extractOpenAI},
	{name: "gemini", extract: extractGemini},
	{name: "anthropic", extract: extractAnthropic},
	{name: "simple", extract: extractSimple},
	{name: "raw_tool_calls", extract: extractRawList},
}

// Detect extracts tool calls from raw model text. It returns nil when the
// response carries no call; it never returns an empty non-nil slice, so
// callers distinguish "no call" only via nil. When allowed is non-nil, calls
// naming tools outside it are dropped with a warning instead of erroring —
// models hallucinate tool names, and a hallucinated name must not abort the
// query.
func Detect(raw string, allowed map[string]bool) []schema.ToolCall {
	resp := Parse(raw)
	if resp.Type == TypeText {
		return nil
	}
	for _, f := range formats {
		calls := f.extract(resp.Object)
		if len(calls) == 0 {
			continue
		}
		calls = filterAllowed(calls, allowed, f.name)
		if len(calls) == 0 {
			return nil
		}
		return calls
	}
	return nil
}

func filterAllowed(calls []schema.ToolCall, allowed map[string]bool, formatName string) []schema.ToolCall {
	if allowed == nil {
		return calls
	}
	kept := calls[:0:0]
	for _, c := range calls {
		if !allowed[c.Name] {
			slog.Warn("dropping call to unknown tool", "tool", c.Name, "format", formatName)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// coerceArgs normalises a raw arguments value to a mapping. Strings are
// JSON-decoded (providers often double-encode them); decode failure yields
// empty arguments, never a hard error.
func coerceArgs(v any) map[string]any {
	switch a := v.(type) {
	case map[string]any:
		return a
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(a), &parsed); err == nil {
			return parsed
		}
	}
	return map[string]any{}
}

// extractOpenAI handles {"tool_calls":[{"id","function":{"name","arguments"}}]}.
func extractOpenAI(obj map[string]any) []schema.ToolCall {
	entries, ok := obj["tool_calls"].([]any)
	if !ok {
		return nil
	}
	var calls []schema.ToolCall
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		fn, ok := entry["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		if name == "" {
			continue
		}
		id, _ := entry["id"].(string)
		if id == "" {
			id = name
		}
		calls = append(calls, schema.ToolCall{ID: id, Name: name, Arguments: coerceArgs(fn["arguments"])})
	}
	return calls
}

// extractGemini handles {"functionCall":{"name","args"}} and synthesises the
// call id as "gemini_" + name since Gemini supplies none.
func extractGemini(obj map[string]any) []schema.ToolCall {
	fc, ok := obj["functionCall"].(map[string]any)
	if !ok {
		return nil
	}
	name, _ := fc["name"].(string)
	if name == "" {
		return nil
	}
	return []schema.ToolCall{{ID: "gemini_" + name, Name: name, Arguments: coerceArgs(fc["args"])}}
}

// extractAnthropic handles {"tool_use":{"id","name","input"}} plus parallel
// calls in "additional_tool_calls" of the same shape.
func extractAnthropic(obj map[string]any) []schema.ToolCall {
	tu, ok := obj["tool_use"].(map[string]any)
	if !ok {
		return nil
	}
	var calls []schema.ToolCall
	if c, ok := toolUseToCall(tu); ok {
		calls = append(calls, c)
	}
	if extra, ok := obj["additional_tool_calls"].([]any); ok {
		for _, e := range extra {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if c, ok := toolUseToCall(entry); ok {
				calls = append(calls, c)
			}
		}
	}
	return calls
}

func toolUseToCall(tu map[string]any) (schema.ToolCall, bool) {
	name, _ := tu["name"].(string)
	if name == "" {
		return schema.ToolCall{}, false
	}
	id, _ := tu["id"].(string)
	if id == "" {
		id = name
	}
	return schema.ToolCall{ID: id, Name: name, Arguments: coerceArgs(tu["input"])}, true
}

// extractSimple handles ad-hoc shapes: a call name under one of
// function/name/tool with arguments under one of parameters/arguments/args
// (which must be a mapping).
func extractSimple(obj map[string]any) []schema.ToolCall {
	var name string
	for _, key := range []string{"function", "name", "tool"} {
		if s, ok := obj[key].(string); ok && s != "" {
			name = s
			break
		}
	}
	if name == "" {
		return nil
	}
	args := map[string]any{}
	for _, key := range []string{"parameters", "arguments", "args"} {
		if m, ok := obj[key].(map[string]any); ok {
			args = m
			break
		}
	}
	return []schema.ToolCall{{ID: name, Name: name, Arguments: args}}
}

// extractRawList is the tolerant fallback for tool_calls lists whose entries
// carry the name and arguments at the top level, or arguments already
// decoded to an object.
func extractRawList(obj map[string]any) []schema.ToolCall {
	entries, ok := obj["tool_calls"].([]any)
	if !ok {
		return nil
	}
	var calls []schema.ToolCall
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		argsSrc := entry["arguments"]
		if argsSrc == nil {
			argsSrc = entry["args"]
		}
		if name == "" {
			if fn, ok := entry["function"].(map[string]any); ok {
				name, _ = fn["name"].(string)
				if argsSrc == nil {
					argsSrc = fn["arguments"]
				}
			}
		}
		if name == "" {
			continue
		}
		id, _ := entry["id"].(string)
		if id == "" {
			id = name
		}
		calls = append(calls, schema.ToolCall{ID: id, Name: name, Arguments: coerceArgs(argsSrc)})
	}
	return calls
}
