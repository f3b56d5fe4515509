// Package tools holds the tool registry contract and the executor that runs
// model-requested tool calls against it. Tool implementations live with the
// host; the core only depends on the schema.Tool interface.
package tools

import (
	"encoding/json"

	"github.com/emberhome/ember/internal/schema"
)

// Registry holds a set of named tools and exposes them for execution.
// It is injected into the executor and the query processor at construction
// so independent instances never share process-wide state.
type Registry struct {
	tools map[string]schema.Tool
}

// GetTool returns the tool with the given name, or nil.
func (r *Registry) GetTool(name string) schema.Tool {
	return r.tools[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Names returns the set of registered tool names. Used as the allow-list
// when validating parsed calls.
func (r *Registry) Names() map[string]bool {
	out := make(map[string]bool, len(r.tools))
	for name := range r.tools {
		out[name] = true
	}
	return out
}

// NameList returns the registered tool names as a slice.
func (r *Registry) NameList() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Definitions returns all tool definitions in OpenAI function-calling format.
func (r *Registry) Definitions() []map[string]any {
	list := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	tools map[string]schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{tools: make(map[string]schema.Tool)}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	b.tools[tool.Name()] = tool
	return b
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() *Registry {
	tools := make(map[string]schema.Tool, len(b.tools))
	for k, v := range b.tools {
		tools[k] = v
	}
	return &Registry{tools: tools}
}
