package core

import (
	"sync"
	"time"
)

// SessionStats accumulates per-session bookkeeping. Set-valued fields use
// StringSet so concurrent merge paths cannot silently lose members.
type SessionStats struct {
	MessageCount     int
	ErrorCount       int
	AgentsUsed       *StringSet
	IntentsProcessed *StringSet
}

// SessionSecurity holds authentication state and the trust score attached to
// a session.
type SessionSecurity struct {
	Authenticated   bool
	AuthenticatedAt time.Time
	TrustScore      float64
}

// Session represents one ongoing conversation between a user and the system.
// It is safe for concurrent access; the session manager additionally
// serializes message processing per session so statistics and sequence
// numbers stay consistent.
//
// Contract:
//   - Touch updates LastAccessAt and pushes ExpiresAt forward
//   - NextSequence returns strictly increasing, gap-free numbers
//   - Snapshot returns a deep copy safe for independent use
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastAccessAt time.Time
	ExpiresAt    time.Time
	EndedAt      time.Time
	EndReason    string
	Active       bool
	Metadata     map[string]string
	Context      ConversationContext
	Stats        SessionStats
	Security     SessionSecurity

	seq int64
	mu  sync.RWMutex
}

// NewSession creates an active session for the given user with the supplied
// TTL and metadata.
func NewSession(userID string, ttl time.Duration, metadata map[string]string) *Session {
	now := time.Now().UTC()
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Session{
		ID:           NewID(),
		UserID:       userID,
		CreatedAt:    now,
		LastAccessAt: now,
		ExpiresAt:    now.Add(ttl),
		Active:       true,
		Metadata:     md,
		Stats: SessionStats{
			AgentsUsed:       NewStringSet(),
			IntentsProcessed: NewStringSet(),
		},
		Security: SessionSecurity{TrustScore: 0.5},
	}
}

// Touch marks the session as accessed now and extends expiry by ttl.
func (s *Session) Touch(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.LastAccessAt = now
	s.ExpiresAt = now.Add(ttl)
}

// Extend pushes the expiry timestamp forward by d without touching access time.
func (s *Session) Extend(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExpiresAt = s.ExpiresAt.Add(d)
}

// Expired reports whether the session's expiry timestamp has passed.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.After(s.ExpiresAt)
}

// IsActive reports whether the session has not been ended or expired.
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Active
}

// NextSequence returns the next message sequence number for this session.
func (s *Session) NextSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// RestoreSequence resets the sequence counter after a resume from the durable
// store so new messages continue the stored numbering.
func (s *Session) RestoreSequence(last int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last > s.seq {
		s.seq = last
	}
}

// Authenticate flags the session as authenticated and raises the trust score.
func (s *Session) Authenticate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Security.Authenticated = true
	s.Security.AuthenticatedAt = time.Now().UTC()
	if s.Security.TrustScore < 0.9 {
		s.Security.TrustScore = 0.9
	}
}

// SetTrustScore replaces the trust score, clamped to [0, 1].
func (s *Session) SetTrustScore(score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	s.Security.TrustScore = score
}

// Deactivate marks the session ended with the given reason and returns the
// total interaction duration.
func (s *Session) Deactivate(reason string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Active {
		return s.EndedAt.Sub(s.CreatedAt)
	}
	s.Active = false
	s.EndedAt = time.Now().UTC()
	s.EndReason = reason
	return s.EndedAt.Sub(s.CreatedAt)
}

// RecordExchange updates statistics and context after a processed message.
func (s *Session) RecordExchange(agentsUsed []string, intent string, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats.MessageCount++
	for _, id := range agentsUsed {
		s.Stats.AgentsUsed.Add(id)
	}
	s.Stats.IntentsProcessed.Add(intent)
	if failed {
		s.Stats.ErrorCount++
	}
}

// MergeMetadata merges partial metadata updates into the session.
func (s *Session) MergeMetadata(updates map[string]string) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		s.Metadata = make(map[string]string, len(updates))
	}
	for k, v := range updates {
		s.Metadata[k] = v
	}
}

// UpdateContext applies fn to the conversation context under the session lock.
func (s *Session) UpdateContext(fn func(*ConversationContext)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.Context)
}

// ContextSnapshot returns a deep copy of the conversation context.
func (s *Session) ContextSnapshot() ConversationContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Context.Clone()
}

// Snapshot returns a deep copy of the session (maps, sets and slices) except
// the mutex and sequence counter.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:           s.ID,
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
		LastAccessAt: s.LastAccessAt,
		ExpiresAt:    s.ExpiresAt,
		EndedAt:      s.EndedAt,
		EndReason:    s.EndReason,
		Active:       s.Active,
		Context:      s.Context.Clone(),
		Security:     s.Security,
		seq:          s.seq,
	}
	clone.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	clone.Stats = SessionStats{
		MessageCount:     s.Stats.MessageCount,
		ErrorCount:       s.Stats.ErrorCount,
		AgentsUsed:       s.Stats.AgentsUsed.Clone(),
		IntentsProcessed: s.Stats.IntentsProcessed.Clone(),
	}
	return clone
}
