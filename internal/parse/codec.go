package parse

import (
	"encoding/json"

	"github.com/emberhome/ember/internal/schema"
)

// Normalize canonicalises a call list: entries without a non-empty name are
// dropped, nil argument maps become empty maps, and a missing id defaults to
// the call name. Normalize is a fixed point: applying it to its own output
// changes nothing.
func Normalize(calls []schema.ToolCall) []schema.ToolCall {
	var out []schema.ToolCall
	for _, c := range calls {
		if c.Name == "" {
			continue
		}
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		if c.ID == "" {
			c.ID = c.Name
		}
		out = append(out, c)
	}
	return out
}

// EncodeAssistantContent serialises calls into the canonical assistant
// message body. The object carries both the generic tool_calls array and an
// Anthropic-shaped tool_use/additional_tool_calls projection of the same
// calls: the encoding must survive being replayed as history to any provider
// family, and each family expects to recognise its own shape in prior turns.
func EncodeAssistantContent(calls []schema.ToolCall) string {
	calls = Normalize(calls)

	generic := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		generic = append(generic, map[string]any{
			"id":   c.ID,
			"name": c.Name,
			"args": c.Arguments,
		})
	}

	payload := map[string]any{"tool_calls": generic}
	if len(calls) > 0 {
		payload["tool_use"] = map[string]any{
			"id":    calls[0].ID,
			"name":  calls[0].Name,
			"input": calls[0].Arguments,
		}
		additional := make([]map[string]any, 0, len(calls)-1)
		for _, c := range calls[1:] {
			additional = append(additional, map[string]any{
				"id":    c.ID,
				"name":  c.Name,
				"input": c.Arguments,
			})
		}
		payload["additional_tool_calls"] = additional
	}

	data, _ := json.Marshal(payload)
	return string(data)
}

// DecodeAssistantContent is the inverse of EncodeAssistantContent, tolerant
// of all three provider shapes appearing in the same object. Duplicates are
// removed by (id, name) identity, preserving first-seen order.
func DecodeAssistantContent(obj map[string]any) []schema.ToolCall {
	if obj == nil {
		return nil
	}

	type identity struct{ id, name string }
	seen := map[identity]bool{}
	var out []schema.ToolCall

	add := func(calls []schema.ToolCall) {
		for _, c := range Normalize(calls) {
			key := identity{c.ID, c.Name}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}

	if entries, ok := obj["tool_calls"].([]any); ok {
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			add(genericEntryToCalls(entry))
		}
	}
	if tu, ok := obj["tool_use"].(map[string]any); ok {
		if c, ok := toolUseToCall(tu); ok {
			add([]schema.ToolCall{c})
		}
	}
	if extra, ok := obj["additional_tool_calls"].([]any); ok {
		for _, e := range extra {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if c, ok := toolUseToCall(entry); ok {
				add([]schema.ToolCall{c})
			}
		}
	}
	if fc, ok := obj["functionCall"].(map[string]any); ok {
		name, _ := fc["name"].(string)
		if name != "" {
			add([]schema.ToolCall{{ID: "gemini_" + name, Name: name, Arguments: coerceArgs(fc["args"])}})
		}
	}

	return out
}

// genericEntryToCalls reads one tool_calls entry in either the canonical
// {id,name,args} form or the OpenAI {id,function:{name,arguments}} form.
func genericEntryToCalls(entry map[string]any) []schema.ToolCall {
	name, _ := entry["name"].(string)
	args := entry["args"]
	if args == nil {
		args = entry["arguments"]
	}
	if name == "" {
		fn, ok := entry["function"].(map[string]any)
		if !ok {
			return nil
		}
		name, _ = fn["name"].(string)
		args = fn["arguments"]
	}
	if name == "" {
		return nil
	}
	id, _ := entry["id"].(string)
	return []schema.ToolCall{{ID: id, Name: name, Arguments: coerceArgs(args)}}
}
