package schema

import "encoding/json"

// Message roles. RoleFunction carries tool results back to the model; the
// legacy "tool" spelling is still recognised when histories arrive from
// external stores (see IsToolResult).
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Content is the payload of a message: either plain text or a multimodal
// block carrying image attachments for the provider adapter to translate.
// Provider adapters switch on the concrete type instead of probing optional
// fields.
type Content interface {
	isContent()
}

// Text is a plain-text message body.
type Text string

func (Text) isContent() {}

// Multimodal is a user message body with image attachments alongside text.
type Multimodal struct {
	Text   string
	Images []Image
}

func (Multimodal) isContent() {}

// Image is one attachment on a multimodal message. Either Data (raw bytes
// plus MIME type) or URL is set.
type Image struct {
	MIMEType string
	Data     []byte
	URL      string
}

// ToolCall represents one function call requested by the model.
// Identity is (ID, Name); ID is provider-assigned, or synthesised during
// parsing when the provider does not supply one.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
// Used by provider adapters when building the JSON request body.
func (tc ToolCall) ToWireMap() map[string]any {
	argsJSON, _ := json.Marshal(tc.Arguments)
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": string(argsJSON),
		},
	}
}

// Message is one entry in the conversation history.
//
// ToolCalls is populated for assistant messages that invoke tools; when the
// provider returned structured call objects they are preserved here verbatim
// so prior turns replay byte-exact. ToolCallID and ToolName are set on
// function-role (tool result) messages.
type Message struct {
	Role       string
	Content    Content
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// Text returns the textual payload of the message, flattening multimodal
// content to its text part. Empty for a nil Content.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case Text:
		return string(c)
	case Multimodal:
		return c.Text
	default:
		return ""
	}
}

// IsToolResult reports whether the message carries a tool result.
func (m Message) IsToolResult() bool {
	return m.Role == RoleFunction || m.Role == "tool"
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: Text(content)}
}

func NewUserMessage(content Content) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: Text(content), ToolCalls: toolCalls}
}

func NewToolResultMessage(toolCallID, toolName, result string) Message {
	return Message{
		Role:       RoleFunction,
		Content:    Text(result),
		ToolCallID: toolCallID,
		ToolName:   toolName,
	}
}

// CloneMessages returns a copy of msgs with an independent backing slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
