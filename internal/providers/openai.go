package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emberhome/ember/internal/schema"
)

// OpenAIProvider makes direct HTTP calls to any OpenAI-compatible endpoint,
// and also handles the Anthropic Messages API as a special case.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	isAnthropic  bool
	httpClient   *http.Client
}

// NewOpenAIProvider constructs a provider from raw config values. The
// caller extracts these from config.Config to avoid an import cycle.
func NewOpenAIProvider(apiKey, apiBase, defaultModel, providerName string, extraHeaders map[string]string) *OpenAIProvider {
	spec := FindByName(providerName)
	if spec == nil {
		spec = FindByModel(defaultModel)
	}

	effectiveBase := apiBase
	if effectiveBase == "" {
		if spec != nil {
			effectiveBase = spec.DefaultAPIBase
		} else {
			effectiveBase = "https://api.openai.com/v1"
		}
	}
	effectiveBase = strings.TrimRight(effectiveBase, "/")

	isAnthropic := providerName == "anthropic" ||
		strings.Contains(strings.ToLower(effectiveBase), "anthropic.com")

	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      effectiveBase,
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		isAnthropic:  isAnthropic,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenAIProvider) SupportsTools() bool { return true }

// Chat implements schema.LLMProvider, dispatching to the Anthropic or
// OpenAI-compatible path.
func (p *OpenAIProvider) Chat(
	ctx context.Context,
	messages []schema.Message,
	tools []map[string]any,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	if p.isAnthropic {
		return p.chatAnthropic(ctx, messages, tools, model, maxTokens, opts.Temperature)
	}
	return p.chatOpenAI(ctx, messages, tools, model, maxTokens, opts.Temperature, false, nil)
}

// ChatStream implements schema.StreamingProvider. The Anthropic path
// degrades to a one-shot call surfaced as synthetic chunks.
func (p *OpenAIProvider) ChatStream(
	ctx context.Context,
	messages []schema.Message,
	tools []map[string]any,
	opts schema.ChatOptions,
) (<-chan schema.StreamChunk, error) {
	ch := make(chan schema.StreamChunk, 16)

	if p.isAnthropic {
		go func() {
			defer close(ch)
			resp, err := p.Chat(ctx, messages, tools, opts)
			if err != nil {
				ch <- schema.StreamChunk{Type: schema.ChunkError, Err: err}
				return
			}
			if resp.Content != "" {
				ch <- schema.StreamChunk{Type: schema.ChunkText, Text: resp.Content}
			}
			for i := range resp.ToolCalls {
				ch <- schema.StreamChunk{Type: schema.ChunkToolCall, ToolCall: &resp.ToolCalls[i]}
			}
		}()
		return ch, nil
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	go func() {
		defer close(ch)
		_, err := p.chatOpenAI(ctx, messages, tools, model, maxTokens, opts.Temperature, true, ch)
		if err != nil {
			ch <- schema.StreamChunk{Type: schema.ChunkError, Err: err}
		}
	}()
	return ch, nil
}

// ---------------------------------------------------------------------------
// OpenAI-compatible path

func (p *OpenAIProvider) chatOpenAI(
	ctx context.Context,
	messages []schema.Message,
	tools []map[string]any,
	model string,
	maxTokens int,
	temperature float64,
	stream bool,
	ch chan<- schema.StreamChunk,
) (schema.LLMResponse, error) {
	body := map[string]any{
		"model":       model,
		"messages":    toOpenAIMessages(messages),
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if len(tools) > 0 {
		body["tools"] = tools
		body["tool_choice"] = "auto"
	}
	if stream {
		body["stream"] = true
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return schema.LLMResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if stream {
		return schema.LLMResponse{}, p.readSSE(resp.Body, ch)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("read response: %w", err)
	}
	return parseOpenAIResponse(raw)
}

func parseOpenAIResponse(raw []byte) (schema.LLMResponse, error) {
	var parsed struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return schema.LLMResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return schema.LLMResponse{}, fmt.Errorf("response contained no choices")
	}

	choice := parsed.Choices[0]
	out := schema.LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: map[string]int{
			"input_tokens":  parsed.Usage.PromptTokens,
			"output_tokens": parsed.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// readSSE drains a chat-completions event stream, forwarding text deltas as
// they arrive and accumulating tool-call fragments until [DONE].
func (p *OpenAIProvider) readSSE(body io.Reader, ch chan<- schema.StreamChunk) error {
	type partial struct {
		id, name string
		args     strings.Builder
	}
	var calls []*partial

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content   string `json:"content"`
					ToolCalls []struct {
						Index    int    `json:"index"`
						ID       string `json:"id"`
						Function struct {
							Name      string `json:"name"`
							Arguments string `json:"arguments"`
						} `json:"function"`
					} `json:"tool_calls"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			ch <- schema.StreamChunk{Type: schema.ChunkText, Text: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			for tc.Index >= len(calls) {
				calls = append(calls, &partial{})
			}
			cur := calls[tc.Index]
			if tc.ID != "" {
				cur.id = tc.ID
			}
			if tc.Function.Name != "" {
				cur.name = tc.Function.Name
			}
			cur.args.WriteString(tc.Function.Arguments)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	for _, c := range calls {
		if c.name == "" {
			continue
		}
		var args map[string]any
		_ = json.Unmarshal([]byte(c.args.String()), &args)
		if args == nil {
			args = map[string]any{}
		}
		ch <- schema.StreamChunk{Type: schema.ChunkToolCall, ToolCall: &schema.ToolCall{
			ID:        c.id,
			Name:      c.name,
			Arguments: args,
		}}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Anthropic Messages API path

func (p *OpenAIProvider) chatAnthropic(
	ctx context.Context,
	messages []schema.Message,
	tools []map[string]any,
	model string,
	maxTokens int,
	temperature float64,
) (schema.LLMResponse, error) {
	system, converted := toAnthropicMessages(messages)

	body := map[string]any{
		"model":       model,
		"messages":    converted,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if system != "" {
		body["system"] = system
	}
	if len(tools) > 0 {
		body["tools"] = toAnthropicTools(tools)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/messages", bytes.NewReader(data))
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("anthropic HTTP request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("read anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return schema.LLMResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return parseAnthropicResponse(raw)
}

func parseAnthropicResponse(raw []byte) (schema.LLMResponse, error) {
	var parsed struct {
		Content []struct {
			Type  string         `json:"type"`
			Text  string         `json:"text"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return schema.LLMResponse{}, fmt.Errorf("decode anthropic response: %w", err)
	}

	out := schema.LLMResponse{
		FinishReason: parsed.StopReason,
		Usage: map[string]int{
			"input_tokens":  parsed.Usage.InputTokens,
			"output_tokens": parsed.Usage.OutputTokens,
		},
	}
	var texts []string
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	out.Content = strings.Join(texts, "\n")
	return out, nil
}

// ---------------------------------------------------------------------------
// Wire conversion

// toOpenAIMessages converts typed messages to the chat-completions wire
// shape. Function-role results become role "tool" entries; multimodal user
// content becomes a content-block array with data URLs.
func toOpenAIMessages(messages []schema.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		wire := map[string]any{"role": m.Role}

		switch c := m.Content.(type) {
		case schema.Multimodal:
			blocks := []map[string]any{}
			for _, img := range c.Images {
				blocks = append(blocks, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": imageURL(img)},
				})
			}
			blocks = append(blocks, map[string]any{"type": "text", "text": c.Text})
			wire["content"] = blocks
		default:
			wire["content"] = m.Text()
		}

		if m.Role == schema.RoleAssistant && len(m.ToolCalls) > 0 {
			raw := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				raw[i] = tc.ToWireMap()
			}
			wire["tool_calls"] = raw
		}
		if m.IsToolResult() {
			wire["role"] = "tool"
			wire["tool_call_id"] = m.ToolCallID
			wire["name"] = m.ToolName
		}
		out = append(out, wire)
	}
	return out
}

// toAnthropicMessages splits out the system prompt and converts the rest to
// Messages-API turns: tool calls become tool_use blocks on assistant turns,
// tool results become tool_result blocks on user turns.
func toAnthropicMessages(messages []schema.Message) (string, []map[string]any) {
	var system []string
	out := []map[string]any{}
	for _, m := range messages {
		switch {
		case m.Role == schema.RoleSystem:
			system = append(system, m.Text())
		case m.IsToolResult():
			out = append(out, map[string]any{
				"role": "user",
				"content": []map[string]any{{
					"type":        "tool_result",
					"tool_use_id": m.ToolCallID,
					"content":     m.Text(),
				}},
			})
		case m.Role == schema.RoleAssistant && len(m.ToolCalls) > 0:
			blocks := []map[string]any{}
			for _, tc := range m.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": args,
				})
			}
			out = append(out, map[string]any{"role": "assistant", "content": blocks})
		case m.Role == schema.RoleUser:
			if mm, ok := m.Content.(schema.Multimodal); ok {
				blocks := []map[string]any{}
				for _, img := range mm.Images {
					blocks = append(blocks, map[string]any{
						"type": "image",
						"source": map[string]any{
							"type":       "base64",
							"media_type": img.MIMEType,
							"data":       base64.StdEncoding.EncodeToString(img.Data),
						},
					})
				}
				blocks = append(blocks, map[string]any{"type": "text", "text": mm.Text})
				out = append(out, map[string]any{"role": "user", "content": blocks})
				continue
			}
			out = append(out, map[string]any{"role": "user", "content": m.Text()})
		default:
			out = append(out, map[string]any{"role": m.Role, "content": m.Text()})
		}
	}
	return strings.Join(system, "\n\n"), out
}

// toAnthropicTools reshapes OpenAI function definitions into the Messages
// API tool schema.
func toAnthropicTools(tools []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"name":         fn["name"],
			"description":  fn["description"],
			"input_schema": fn["parameters"],
		})
	}
	return out
}

func imageURL(img schema.Image) string {
	if img.URL != "" {
		return img.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
}
