package schema

// EventType tags one record on a query's event stream.
type EventType string

const (
	EventStatus     EventType = "status"
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventCompletion EventType = "completion"
)

// Event is one tagged record on the stream returned by a streaming query.
// The stream is finite: it ends with a completion or error event and the
// channel is closed.
type Event struct {
	Type    EventType
	QueryID string

	Content  string    // text / status / completion payload
	Call     *ToolCall // tool_call
	ToolName string    // tool_result
	Result   string    // tool_result
	Err      string    // error
}
