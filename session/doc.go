// Package session owns conversation session lifecycle: creation with a
// per-user active-session cap (evicting the oldest, never rejecting), lazy
// and swept TTL expiry, a grace delay before memory purge, sliding-window
// rate limiting of inbound messages, and the bounded in-memory history
// buffer. Per-session processing is serialized via WithSession so sequence
// numbers and statistics stay consistent; different sessions never block one
// another.
package session
