// Package store defines the durable persistence contract consumed by the
// orchestration core: sessions and messages are mirrored for audit and
// consulted for cold lookups on session resume. A SQLite reference
// implementation is included; deployments may substitute any backend that
// satisfies Store. The Consumer subscribes to lifecycle events so persistence
// stays a decoupled collaborator rather than an implicit listener.
package store
