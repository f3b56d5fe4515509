// Package conversation holds the bounded in-memory message window kept per
// chat session. Persistence is the host's concern; this package only
// guarantees ordering and capacity invariants.
package conversation

import "github.com/emberhome/ember/internal/schema"

// DefaultMaxMessages is the default capacity of a conversation.
const DefaultMaxMessages = 100

// Conversation is a capacity-bounded ordered message list.
//
// All system messages stay contiguous at the head: inserting a new system
// message places it at position 0, so repeated system adds are ordered
// most-recent-first among themselves while non-system messages append in
// chronological order behind them.
//
// A Conversation is not safe for concurrent use; callers that share one
// across queries must serialise access per session.
type Conversation struct {
	maxMessages int
	messages    []schema.Message
}

// New returns an empty Conversation. maxMessages <= 0 selects the default.
func New(maxMessages int) *Conversation {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Conversation{maxMessages: maxMessages}
}

// AddMessage inserts msg, maintaining the system-first invariant, and trims
// to capacity afterwards.
func (c *Conversation) AddMessage(msg schema.Message) {
	if msg.Role == schema.RoleSystem {
		c.messages = append([]schema.Message{msg}, c.messages...)
	} else {
		c.messages = append(c.messages, msg)
	}
	c.enforceLimit()
}

// AddSystem inserts a system message at the head of the list.
func (c *Conversation) AddSystem(content string) {
	c.AddMessage(schema.NewSystemMessage(content))
}

// AddUser appends a user message.
func (c *Conversation) AddUser(content string) {
	c.AddMessage(schema.NewUserMessage(schema.Text(content)))
}

// AddAssistant appends an assistant message.
func (c *Conversation) AddAssistant(content string) {
	c.AddMessage(schema.NewAssistantMessage(content, nil))
}

// Messages returns an independent copy of the message list; mutating the
// returned slice never affects the conversation.
func (c *Conversation) Messages() []schema.Message {
	return schema.CloneMessages(c.messages)
}

// Len returns the number of stored messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Clear empties the conversation unconditionally.
func (c *Conversation) Clear() { c.messages = nil }

// TrimToLimit keeps all system messages plus only the most recent
// non-system messages that fit under limit, re-concatenated system-first.
// When limit does not exceed the system count, every non-system message is
// dropped; that is not an error.
func (c *Conversation) TrimToLimit(limit int) {
	var system, rest []schema.Message
	for _, m := range c.messages {
		if m.Role == schema.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	keep := limit - len(system)
	if keep < 0 {
		keep = 0
	}
	if keep < len(rest) {
		rest = rest[len(rest)-keep:]
	}
	c.messages = append(system, rest...)
}

// LastN returns up to the last n entries of the materialised (system-first)
// list. Note this is not strict chronological recency: with system messages
// present, "last 3" may include a system entry instead of the third most
// recent turn.
func (c *Conversation) LastN(n int) []schema.Message {
	if n <= 0 {
		return nil
	}
	if n > len(c.messages) {
		n = len(c.messages)
	}
	return schema.CloneMessages(c.messages[len(c.messages)-n:])
}

func (c *Conversation) enforceLimit() {
	if len(c.messages) > c.maxMessages {
		c.TrimToLimit(c.maxMessages)
	}
}
