package store

import (
	"context"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

// Consumer mirrors lifecycle events from the bus into a Store. It runs as a
// single goroutine so writes for one session stay ordered.
type Consumer struct {
	store  Store
	logger logging.Logger
	cancel func()
	done   chan struct{}
}

// NewConsumer creates a consumer writing to store.
func NewConsumer(store Store, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Consumer{store: store, logger: logger, done: make(chan struct{})}
}

// Start subscribes to session and message lifecycle events and persists them
// until ctx is cancelled or the bus closes.
func (c *Consumer) Start(ctx context.Context, bus *core.Bus) {
	events, cancel := bus.Subscribe(256,
		core.EventSessionCreated,
		core.EventSessionEnded,
		core.EventMessageSaved,
	)
	c.cancel = cancel

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.handle(ctx, ev)
			}
		}
	}()
}

// Stop unsubscribes and waits for the consumer goroutine to drain.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
}

func (c *Consumer) handle(ctx context.Context, ev core.Event) {
	switch ev.Type {
	case core.EventSessionCreated:
		if sess, ok := ev.Payload.(*core.Session); ok {
			if err := c.store.SaveSession(ctx, sess); err != nil {
				c.logger.Error("persist created session", "session_id", ev.SessionID, "error", err)
			}
		}
	case core.EventSessionEnded:
		if payload, ok := ev.Payload.(core.SessionEndedPayload); ok {
			if err := c.store.SaveSession(ctx, payload.Session); err != nil {
				c.logger.Error("persist ended session", "session_id", ev.SessionID, "error", err)
			}
		}
	case core.EventMessageSaved:
		if msg, ok := ev.Payload.(core.Message); ok {
			if err := c.store.SaveMessage(ctx, msg); err != nil {
				c.logger.Error("persist message", "session_id", ev.SessionID, "error", err)
			}
		}
	}
}
