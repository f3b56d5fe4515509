package conversation

import "sync"

// Manager hands out one Conversation per session key. The map itself is safe
// for concurrent use; individual conversations are not, and callers must
// serialise queries per session.
type Manager struct {
	maxMessages int
	cache       sync.Map // key → *Conversation
}

// NewManager creates a Manager whose conversations hold up to maxMessages
// entries each. maxMessages <= 0 selects the default capacity.
func NewManager(maxMessages int) *Manager {
	return &Manager{maxMessages: maxMessages}
}

// GetOrCreate returns the conversation for key, creating an empty one on
// first use.
func (m *Manager) GetOrCreate(key string) *Conversation {
	if v, ok := m.cache.Load(key); ok {
		return v.(*Conversation)
	}
	actual, _ := m.cache.LoadOrStore(key, New(m.maxMessages))
	return actual.(*Conversation)
}

// Invalidate drops the conversation for key.
func (m *Manager) Invalidate(key string) {
	m.cache.Delete(key)
}

// Keys returns the currently known session keys.
func (m *Manager) Keys() []string {
	var out []string
	m.cache.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}
