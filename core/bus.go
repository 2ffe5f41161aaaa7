package core

import (
	"sync"
	"sync/atomic"
)

// Bus is a typed event bus delivering lifecycle events to subscribed
// collaborators over buffered channels. Publishing never blocks: if a
// subscriber's buffer is full the event is dropped for that subscriber and
// counted, so a slow consumer cannot stall message processing.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	closed  bool
	dropped atomic.Uint64
}

type subscription struct {
	ch    chan Event
	types map[EventType]bool // empty means all types
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers interest in the given event types (all types when none
// are specified). It returns the receive channel and a cancel function that
// closes it. bufferSize must be at least 1.
func (b *Bus) Subscribe(bufferSize int, types ...EventType) (<-chan Event, func()) {
	if bufferSize < 1 {
		bufferSize = 1
	}
	sub := &subscription{ch: make(chan Event, bufferSize), types: make(map[EventType]bool, len(types))}
	for _, t := range types {
		sub.types[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs = append(b.subs, sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.unsubscribe(sub) })
	}
	return sub.ch, cancel
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if len(sub.types) > 0 && !sub.types[ev.Type] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded due to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
