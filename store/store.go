package store

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatmesh/core"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = fmt.Errorf("record not found")
)

// Store persists sessions and messages. Implementations must be safe for
// concurrent use.
type Store interface {
	// SaveSession inserts or updates the session snapshot.
	SaveSession(ctx context.Context, sess *core.Session) error

	// LoadSession returns the stored session or ErrNotFound.
	LoadSession(ctx context.Context, sessionID string) (*core.Session, error)

	// SaveMessage appends one message to the session's stored history.
	SaveMessage(ctx context.Context, msg core.Message) error

	// LoadHistory returns up to limit most recent messages for the session,
	// oldest first. limit <= 0 means no limit.
	LoadHistory(ctx context.Context, sessionID string, limit int) ([]core.Message, error)

	// Close releases underlying resources.
	Close() error
}
