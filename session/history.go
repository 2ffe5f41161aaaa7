package session

import (
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// History is a fixed-capacity, insertion-ordered buffer of messages per
// session. Once capacity is exceeded the oldest entries are evicted. It is
// authoritative for quick replay and independent of the durable store.
type History struct {
	mu       sync.RWMutex
	messages []core.Message
	capacity int
}

// NewHistory creates an empty buffer. Capacity must be at least 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{capacity: capacity}
}

// Append adds a message, evicting the oldest entry when full.
func (h *History) Append(msg core.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	if len(h.messages) > h.capacity {
		// Shift rather than re-slice so the backing array does not pin
		// evicted messages.
		copy(h.messages, h.messages[1:])
		h.messages = h.messages[:h.capacity]
	}
}

// All returns a copy of the buffered messages, oldest first.
func (h *History) All() []core.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Recent returns up to n most recent messages, oldest first.
func (h *History) Recent(n int) []core.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.messages) {
		n = len(h.messages)
	}
	out := make([]core.Message, n)
	copy(out, h.messages[len(h.messages)-n:])
	return out
}

// Len returns the number of buffered messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// LastSequence returns the highest sequence number in the buffer, or zero.
func (h *History) LastSequence() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return 0
	}
	return h.messages[len(h.messages)-1].Sequence
}
