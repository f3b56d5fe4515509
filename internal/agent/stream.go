package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/emberhome/ember/internal/compact"
	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/tools"
)

// ProcessStream runs the same loop as Process but delivers progress as a
// finite stream of tagged events. Text deltas are emitted as they arrive
// from streaming providers; tool-call deltas are accumulated silently and
// acted on only once the stream completes. Providers without streaming
// degrade to one-shot calls per iteration while the caller still sees the
// same event protocol. The channel is closed after a completion or error
// event.
func (p *Processor) ProcessStream(ctx context.Context, query string, opts ProcessOptions) <-chan schema.Event {
	ch := make(chan schema.Event, 16)
	go func() {
		defer close(ch)
		p.streamLoop(ctx, query, opts, ch)
	}()
	return ch
}

func (p *Processor) streamLoop(ctx context.Context, query string, opts ProcessOptions, ch chan<- schema.Event) {
	queryID := uuid.NewString()
	emit := func(ev schema.Event) {
		ev.QueryID = queryID
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	query, err := p.sanitize(query, opts)
	if err != nil {
		emit(schema.Event{Type: schema.EventError, Err: "Please provide a non-empty query."})
		return
	}

	msgs := p.buildMessages(ctx, query, opts)
	available := compact.AvailableForInput(p.contextWindow(opts), 0)
	chatOpts := p.chatOptions(opts)
	defs := p.definitions(opts)
	allowed := p.registry.Names()
	maxIter := p.maxIterations(opts)

	streamer, canStream := p.provider.(schema.StreamingProvider)

	for i := 0; i < maxIter; i++ {
		var resp schema.LLMResponse
		var err error
		if canStream {
			resp, err = p.collectStream(ctx, streamer, msgs, defs, chatOpts, emit)
		} else {
			resp, err = p.provider.Chat(ctx, msgs, defs, chatOpts)
		}
		if err != nil {
			slog.Error("provider call failed", "query_id", queryID, "err", err)
			emit(schema.Event{Type: schema.EventError, Err: "The language model is unavailable: " + err.Error()})
			return
		}

		calls := p.detectCalls(resp, allowed)
		if len(calls) == 0 {
			text := finalText(resp.Content)
			// Degraded (non-streaming) providers never emitted deltas, so
			// surface the text as one synthetic event.
			if !canStream && text != "" {
				emit(schema.Event{Type: schema.EventText, Content: text})
			}
			emit(schema.Event{Type: schema.EventCompletion, Content: text})
			return
		}

		msgs = append(msgs, assistantCallMessage(resp, calls))
		p.executor.Execute(ctx, calls, &msgs, tools.YieldResult, opts.DeniedTools, emit)
		msgs = p.compactor.ShrinkToolResults(msgs, available)
	}

	resp, err := p.provider.Chat(ctx, msgs, nil, chatOpts)
	if err != nil {
		slog.Error("final call after iteration cap failed", "query_id", queryID, "err", err)
		emit(schema.Event{Type: schema.EventError, Err: "Maximum tool iterations reached without a final answer."})
		return
	}
	text := finalText(resp.Content)
	emit(schema.Event{Type: schema.EventText, Content: text})
	emit(schema.Event{Type: schema.EventCompletion, Content: text})
}

// collectStream drains one provider stream: text deltas are forwarded to the
// caller immediately, tool calls accumulate until the stream ends — the
// model must finish emitting a call before it can be executed.
func (p *Processor) collectStream(
	ctx context.Context,
	provider schema.StreamingProvider,
	msgs []schema.Message,
	defs []map[string]any,
	chatOpts schema.ChatOptions,
	emit func(schema.Event),
) (schema.LLMResponse, error) {
	stream, err := provider.ChatStream(ctx, msgs, defs, chatOpts)
	if err != nil {
		return schema.LLMResponse{}, err
	}

	var text strings.Builder
	var calls []schema.ToolCall
	for chunk := range stream {
		switch chunk.Type {
		case schema.ChunkText:
			text.WriteString(chunk.Text)
			emit(schema.Event{Type: schema.EventText, Content: chunk.Text})
		case schema.ChunkToolCall:
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
		case schema.ChunkError:
			if chunk.Err != nil {
				return schema.LLMResponse{}, chunk.Err
			}
		}
	}
	return schema.LLMResponse{Content: text.String(), ToolCalls: calls}, nil
}
