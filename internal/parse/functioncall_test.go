package parse

import (
	"reflect"
	"testing"

	"github.com/emberhome/ember/internal/schema"
)

func TestDetect_OpenAIFormat(t *testing.T) {
	raw := `{"tool_calls": [
		{"id": "call_1", "function": {"name": "get_state", "arguments": "{\"entity\": \"light.kitchen\"}"}},
		{"id": "call_2", "function": {"name": "set_state", "arguments": {"entity": "light.hall", "on": true}}}
	]}`
	calls := Detect(raw, nil)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "get_state" {
		t.Errorf("call 0 = %+v", calls[0])
	}
	if calls[0].Arguments["entity"] != "light.kitchen" {
		t.Errorf("string-encoded arguments not decoded: %v", calls[0].Arguments)
	}
	if calls[1].Arguments["on"] != true {
		t.Errorf("map arguments lost: %v", calls[1].Arguments)
	}
}

func TestDetect_OpenAIMissingIDDefaultsToName(t *testing.T) {
	raw := `{"tool_calls": [{"function": {"name": "get_state", "arguments": {}}}]}`
	calls := Detect(raw, nil)
	if len(calls) != 1 || calls[0].ID != "get_state" {
		t.Fatalf("got %+v, want id defaulted to name", calls)
	}
}

func TestDetect_GeminiFormat(t *testing.T) {
	raw := `{"functionCall": {"name": "set_temperature", "args": {"room": "bedroom", "target": 21}}}`
	calls := Detect(raw, nil)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "gemini_set_temperature" {
		t.Errorf("ID = %q, want synthesised gemini id", calls[0].ID)
	}
	if calls[0].Arguments["room"] != "bedroom" {
		t.Errorf("Arguments = %v", calls[0].Arguments)
	}
}

func TestDetect_AnthropicFormat(t *testing.T) {
	raw := `{"tool_use": {"id": "tu_1", "name": "get_state", "input": {"entity": "sensor.co2"}},
		"additional_tool_calls": [{"id": "tu_2", "name": "get_state", "input": {"entity": "sensor.temp"}}]}`
	calls := Detect(raw, nil)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "tu_1" || calls[1].ID != "tu_2" {
		t.Errorf("ids = %q, %q", calls[0].ID, calls[1].ID)
	}
}

func TestDetect_SimpleFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"function key", `{"function": "lock_door", "parameters": {"door": "front"}}`},
		{"name key", `{"name": "lock_door", "arguments": {"door": "front"}}`},
		{"tool key", `{"tool": "lock_door", "args": {"door": "front"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := Detect(tt.raw, nil)
			if len(calls) != 1 {
				t.Fatalf("got %d calls, want 1", len(calls))
			}
			c := calls[0]
			if c.Name != "lock_door" || c.ID != "lock_door" {
				t.Errorf("call = %+v", c)
			}
			if c.Arguments["door"] != "front" {
				t.Errorf("Arguments = %v", c.Arguments)
			}
		})
	}
}

func TestDetect_SimpleFormatRequiresMappingArgs(t *testing.T) {
	// Non-mapping argument values are ignored, not coerced.
	calls := Detect(`{"name": "lock_door", "arguments": "front"}`, nil)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if len(calls[0].Arguments) != 0 {
		t.Errorf("Arguments = %v, want empty", calls[0].Arguments)
	}
}

func TestDetect_FencedGeminiCall(t *testing.T) {
	raw := "Sure, checking now.\n```json\n{\"functionCall\": {\"name\": \"get_state\", \"args\": {\"entity\": \"light.kitchen\"}}}\n```"
	calls := Detect(raw, nil)
	if len(calls) != 1 || calls[0].Name != "get_state" {
		t.Fatalf("got %+v, want one get_state call", calls)
	}
}

func TestDetect_PriorityOpenAIOverSimple(t *testing.T) {
	// A tool_calls list beats a stray name/arguments pair in the same object.
	raw := `{"tool_calls": [{"function": {"name": "from_list", "arguments": {}}}],
		"name": "from_simple", "arguments": {}}`
	calls := Detect(raw, nil)
	if len(calls) != 1 || calls[0].Name != "from_list" {
		t.Fatalf("got %+v, want the tool_calls entry", calls)
	}
}

func TestDetect_PriorityGeminiOverAnthropic(t *testing.T) {
	raw := `{"functionCall": {"name": "from_gemini", "args": {}},
		"tool_use": {"id": "x", "name": "from_anthropic", "input": {}}}`
	calls := Detect(raw, nil)
	if len(calls) != 1 || calls[0].Name != "from_gemini" {
		t.Fatalf("got %+v, want the functionCall entry", calls)
	}
}

func TestDetect_RawListFallback(t *testing.T) {
	raw := `{"tool_calls": [{"name": "get_state", "arguments": {"entity": "light.kitchen"}}]}`
	calls := Detect(raw, nil)
	if len(calls) != 1 || calls[0].Name != "get_state" {
		t.Fatalf("got %+v, want one raw-list call", calls)
	}
	if calls[0].Arguments["entity"] != "light.kitchen" {
		t.Errorf("Arguments = %v", calls[0].Arguments)
	}
}

func TestDetect_NoCall(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain text", "The kitchen light is on."},
		{"plain json", `{"status": "ok"}`},
		{"empty tool_calls", `{"tool_calls": []}`},
		{"empty string", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if calls := Detect(tt.raw, nil); calls != nil {
				t.Errorf("Detect(%q) = %v, want nil", tt.raw, calls)
			}
		})
	}
}

func TestDetect_AllowListFiltering(t *testing.T) {
	raw := `{"tool_calls": [
		{"id": "1", "function": {"name": "get_state", "arguments": {}}},
		{"id": "2", "function": {"name": "hallucinated_tool", "arguments": {}}}
	]}`
	allowed := map[string]bool{"get_state": true}
	calls := Detect(raw, allowed)
	if len(calls) != 1 || calls[0].Name != "get_state" {
		t.Fatalf("got %+v, want only the allowed call", calls)
	}
}

func TestDetect_AllFilteredReturnsNil(t *testing.T) {
	raw := `{"name": "hallucinated_tool", "arguments": {}}`
	if calls := Detect(raw, map[string]bool{"get_state": true}); calls != nil {
		t.Errorf("got %v, want nil when every call is filtered", calls)
	}
}

func TestCoerceArgs(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want map[string]any
	}{
		{"map passthrough", map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"json string", `{"a": "b"}`, map[string]any{"a": "b"}},
		{"bad json string", `not json`, map[string]any{}},
		{"nil", nil, map[string]any{}},
		{"number", 42, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coerceArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coerceArgs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetect_ReturnsNormalisableCalls(t *testing.T) {
	calls := Detect(`{"name": "get_state"}`, nil)
	if len(calls) != 1 {
		t.Fatalf("got %d calls", len(calls))
	}
	if calls[0].Arguments == nil {
		t.Errorf("Arguments nil, extractors must yield empty maps")
	}
	var _ []schema.ToolCall = calls
}
