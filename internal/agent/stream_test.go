package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emberhome/ember/internal/schema"
)

// streamingFake scripts one chunk sequence per ChatStream call.
type streamingFake struct {
	scripts [][]schema.StreamChunk
	idx     int
}

func (s *streamingFake) Chat(context.Context, []schema.Message, []map[string]any, schema.ChatOptions) (schema.LLMResponse, error) {
	return schema.LLMResponse{Content: "one-shot"}, nil
}

func (s *streamingFake) DefaultModel() string { return "fake-model" }
func (s *streamingFake) SupportsTools() bool  { return true }

func (s *streamingFake) ChatStream(context.Context, []schema.Message, []map[string]any, schema.ChatOptions) (<-chan schema.StreamChunk, error) {
	if s.idx >= len(s.scripts) {
		return nil, errors.New("script exhausted")
	}
	chunks := s.scripts[s.idx]
	s.idx++
	ch := make(chan schema.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func collect(ch <-chan schema.Event) []schema.Event {
	var out []schema.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []schema.Event) []schema.EventType {
	out := make([]schema.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestProcessStream_TextDeltas(t *testing.T) {
	provider := &streamingFake{scripts: [][]schema.StreamChunk{{
		{Type: schema.ChunkText, Text: "The light "},
		{Type: schema.ChunkText, Text: "is on."},
	}}}
	p := newTestProcessor(provider)

	events := collect(p.ProcessStream(context.Background(), "status?", ProcessOptions{}))

	var text strings.Builder
	var completion string
	for _, ev := range events {
		if ev.QueryID == "" {
			t.Errorf("event %v missing query id", ev.Type)
		}
		switch ev.Type {
		case schema.EventText:
			text.WriteString(ev.Content)
		case schema.EventCompletion:
			completion = ev.Content
		}
	}
	if text.String() != "The light is on." {
		t.Errorf("accumulated text = %q", text.String())
	}
	if completion != "The light is on." {
		t.Errorf("completion = %q", completion)
	}
	if last := events[len(events)-1]; last.Type != schema.EventCompletion {
		t.Errorf("stream did not end with completion: %v", eventTypes(events))
	}
}

func TestProcessStream_ToolLoopEmitsToolEvents(t *testing.T) {
	tool := &stubTool{name: "get_state", result: "on"}
	provider := &streamingFake{scripts: [][]schema.StreamChunk{
		{{Type: schema.ChunkToolCall, ToolCall: &schema.ToolCall{ID: "c1", Name: "get_state", Arguments: map[string]any{}}}},
		{{Type: schema.ChunkText, Text: "It is on."}},
	}}
	p := newTestProcessor(provider, tool)

	events := collect(p.ProcessStream(context.Background(), "check the light", ProcessOptions{}))

	var sawCall, sawResult bool
	for _, ev := range events {
		if ev.Type == schema.EventToolCall && ev.Call != nil && ev.Call.Name == "get_state" {
			sawCall = true
		}
		if ev.Type == schema.EventToolResult && ev.Result == "on" {
			sawResult = true
		}
	}
	if !sawCall || !sawResult {
		t.Errorf("tool events missing: %v", eventTypes(events))
	}
	if tool.calls != 1 {
		t.Errorf("tool executed %d times", tool.calls)
	}
	if last := events[len(events)-1]; last.Type != schema.EventCompletion || last.Content != "It is on." {
		t.Errorf("last event = %+v", last)
	}
}

func TestProcessStream_DegradedProviderSynthesisesText(t *testing.T) {
	// A provider without ChatStream still produces the same event protocol.
	provider := &scriptedProvider{responses: []schema.LLMResponse{{Content: "The light is on."}}}
	p := newTestProcessor(provider)

	events := collect(p.ProcessStream(context.Background(), "status?", ProcessOptions{}))
	types := eventTypes(events)
	if len(events) != 2 || types[0] != schema.EventText || types[1] != schema.EventCompletion {
		t.Fatalf("events = %v, want [text completion]", types)
	}
	if events[0].Content != "The light is on." {
		t.Errorf("text = %q", events[0].Content)
	}
}

func TestProcessStream_EmptyQuery(t *testing.T) {
	p := newTestProcessor(&scriptedProvider{})
	events := collect(p.ProcessStream(context.Background(), "   ", ProcessOptions{}))
	if len(events) != 1 || events[0].Type != schema.EventError {
		t.Fatalf("events = %v, want one error", eventTypes(events))
	}
	if !strings.Contains(events[0].Err, "non-empty query") {
		t.Errorf("Err = %q", events[0].Err)
	}
}

func TestProcessStream_ProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	p := newTestProcessor(provider)

	events := collect(p.ProcessStream(context.Background(), "hello", ProcessOptions{}))
	if last := events[len(events)-1]; last.Type != schema.EventError {
		t.Fatalf("events = %v, want trailing error", eventTypes(events))
	}
}

func TestProcessStream_StreamChunkError(t *testing.T) {
	provider := &streamingFake{scripts: [][]schema.StreamChunk{{
		{Type: schema.ChunkText, Text: "partial"},
		{Type: schema.ChunkError, Err: errors.New("stream reset")},
	}}}
	p := newTestProcessor(provider)

	events := collect(p.ProcessStream(context.Background(), "status?", ProcessOptions{}))
	if last := events[len(events)-1]; last.Type != schema.EventError {
		t.Fatalf("events = %v, want trailing error", eventTypes(events))
	}
}
