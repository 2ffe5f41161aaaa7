package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/store"
)

// Options configure a Manager.
type Options struct {
	// TTL is the idle lifetime of a session; refreshed on every access.
	TTL time.Duration
	// Grace delays memory purge after end/expiry so a just-ended session
	// remains briefly queryable.
	Grace time.Duration
	// SweepInterval is the cadence of the background expiry sweep.
	SweepInterval time.Duration
	// MaxPerUser caps concurrently active sessions per user; exceeding it
	// evicts the user's oldest active session.
	MaxPerUser int
	// RateWindow and RateLimit bound inbound messages per session.
	RateWindow time.Duration
	RateLimit  int
	// HistoryCapacity bounds the in-memory message buffer per session.
	HistoryCapacity int
	// Store is the durable collaborator consulted on resume. Optional.
	Store store.Store
	// Bus receives lifecycle events. Optional.
	Bus *core.Bus
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Metrics defaults to NopRecorder.
	Metrics metrics.Recorder
}

// managed pairs a session with its serialization lock, rate limiter and
// history buffer.
type managed struct {
	sess    *core.Session
	history *History
	limiter *slidingWindow
	proc    sync.Mutex // serializes message processing for this session
	endedAt time.Time  // zero while active; purge clock starts here
}

// Manager owns session lifecycle: creation, TTL expiry, per-user caps,
// statistics bookkeeping and background cleanup. All methods are safe for
// concurrent use; messages for different sessions never block one another.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*managed
	byUser   map[string][]string // user id -> session ids, oldest first

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a Manager with the given options.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		TTL:             30 * time.Minute,
		Grace:           time.Minute,
		SweepInterval:   time.Minute,
		MaxPerUser:      3,
		RateWindow:      time.Minute,
		RateLimit:       20,
		HistoryCapacity: 50,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopRecorder{}
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*managed),
		byUser:   make(map[string][]string),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep. It returns immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.sweep(time.Now().UTC())
			}
		}
	}()
}

// Close stops the background sweep. Safe to call when Start never ran.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		<-m.done
	}
}

// Create returns a new active session for userID. When the user is already at
// the per-user cap, the oldest active session is ended (eviction, not
// rejection) before the new one is created.
func (m *Manager) Create(userID string, metadata map[string]string) (*core.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}

	// Evict outside the manager lock so End can take it.
	for {
		oldest := m.oldestActiveOverCap(userID)
		if oldest == "" {
			break
		}
		if err := m.End(oldest, "evicted: session cap reached"); err != nil && !core.IsKind(err, core.KindSessionNotFound) {
			return nil, err
		}
		m.opts.Metrics.IncEviction()
	}

	sess := core.NewSession(userID, m.opts.TTL, metadata)
	entry := &managed{
		sess:    sess,
		history: NewHistory(m.opts.HistoryCapacity),
		limiter: newSlidingWindow(m.opts.RateWindow, m.opts.RateLimit),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = entry
	m.byUser[userID] = append(m.byUser[userID], sess.ID)
	m.mu.Unlock()

	m.publish(core.NewEvent(core.EventSessionCreated, sess.ID, userID, sess))
	m.opts.Logger.Info("session created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

// oldestActiveOverCap returns the id of the user's oldest active session when
// the user is at or above the cap, or "" when below it.
func (m *Manager) oldestActiveOverCap(userID string) string {
	if m.opts.MaxPerUser <= 0 {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*core.Session
	for _, id := range m.byUser[userID] {
		if entry, ok := m.sessions[id]; ok && entry.sess.IsActive() {
			active = append(active, entry.sess)
		}
	}
	if len(active) < m.opts.MaxPerUser {
		return ""
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	return active[0].ID
}

// Get returns the session for id, lazily expiring it when its TTL has passed.
// Ended sessions remain queryable (inactive) until the grace purge; expired
// or unknown sessions yield taxonomy errors.
func (m *Manager) Get(id string) (*core.Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.KindSessionNotFound, fmt.Sprintf("session %q not found", id))
	}

	sess := entry.sess
	if sess.IsActive() && sess.Expired(time.Now().UTC()) {
		m.expire(entry)
		return nil, core.NewError(core.KindSessionExpired, fmt.Sprintf("session %q expired", id))
	}
	return sess, nil
}

// activeEntry resolves id to a resident, active session entry. The message
// processing path goes through here so ended or lazily-expired sessions stop
// accepting messages even while they remain queryable during the grace
// window.
func (m *Manager) activeEntry(id string) (*managed, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.KindSessionNotFound, fmt.Sprintf("session %q not found", id))
	}
	sess := entry.sess
	if sess.IsActive() && sess.Expired(time.Now().UTC()) {
		m.expire(entry)
	}
	if !sess.IsActive() {
		return nil, core.NewError(core.KindSessionExpired, fmt.Sprintf("session %q is no longer active", id))
	}
	return entry, nil
}

// Touch refreshes the session's last-access time and TTL.
func (m *Manager) Touch(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Touch(m.opts.TTL)
	return nil
}

// Update describes a partial session update. Nil fields are left untouched.
type Update struct {
	Metadata    map[string]string
	Context     *core.ConversationContext
	TrustScore  *float64
	Preferences map[string]string
}

// ApplyUpdate merges partial updates into the session's metadata, context and
// security substructures and refreshes the access time.
func (m *Manager) ApplyUpdate(id string, update Update) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	sess.MergeMetadata(update.Metadata)
	if update.Context != nil {
		sess.UpdateContext(func(c *core.ConversationContext) {
			c.SetIntent(update.Context.CurrentIntent)
			c.MergeEntities(update.Context.Entities)
			if update.Context.Sentiment != "" {
				c.Sentiment = update.Context.Sentiment
			}
			c.ToolRequested = update.Context.ToolRequested
		})
	}
	if len(update.Preferences) > 0 {
		sess.UpdateContext(func(c *core.ConversationContext) {
			if c.Preferences == nil {
				c.Preferences = make(map[string]string, len(update.Preferences))
			}
			for k, v := range update.Preferences {
				c.Preferences[k] = v
			}
		})
	}
	if update.TrustScore != nil {
		sess.SetTrustScore(*update.TrustScore)
	}

	sess.Touch(m.opts.TTL)
	return nil
}

// Extend pushes the session expiry forward by d.
func (m *Manager) Extend(id string, d time.Duration) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Extend(d)
	return nil
}

// Authenticate marks the session authenticated and raises its trust score.
func (m *Manager) Authenticate(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Authenticate()
	return nil
}

// End deactivates the session with the given reason, computes the total
// interaction duration and emits the lifecycle notification. The record stays
// in memory (queryable, inactive) until the grace delay elapses.
func (m *Manager) End(id, reason string) error {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return core.NewError(core.KindSessionNotFound, fmt.Sprintf("session %q not found", id))
	}
	m.deactivate(entry, reason)
	return nil
}

// Expire ends the session with an expiry reason. Used by the sweep and the
// lazy read path.
func (m *Manager) Expire(id string) error {
	return m.End(id, "expired")
}

func (m *Manager) expire(entry *managed) {
	m.deactivate(entry, "expired")
}

func (m *Manager) deactivate(entry *managed, reason string) {
	sess := entry.sess
	if !sess.IsActive() {
		return
	}
	duration := sess.Deactivate(reason)
	entry.endedAt = time.Now().UTC()

	m.publish(core.NewEvent(core.EventSessionEnded, sess.ID, sess.UserID, core.SessionEndedPayload{
		Session:  sess,
		Reason:   reason,
		Duration: duration,
	}))
	m.opts.Logger.Info("session ended", "session_id", sess.ID, "user_id", sess.UserID, "reason", reason, "duration", duration)
}

// Resume loads a session from the durable store into memory (cold lookup)
// when it is not already resident. The stored message history seeds the
// in-memory buffer and the sequence counter continues the stored numbering.
func (m *Manager) Resume(ctx context.Context, id string) (*core.Session, error) {
	if sess, err := m.Get(id); err == nil {
		if !sess.IsActive() {
			return nil, core.NewError(core.KindSessionExpired, fmt.Sprintf("session %q is no longer active", id))
		}
		return sess, nil
	} else if core.IsKind(err, core.KindSessionExpired) {
		return nil, err
	}

	if m.opts.Store == nil {
		return nil, core.NewError(core.KindSessionNotFound, fmt.Sprintf("session %q not found", id))
	}

	sess, err := m.opts.Store.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NewError(core.KindSessionNotFound, fmt.Sprintf("session %q not found", id))
		}
		return nil, core.WrapError(core.KindUnknown, "load session from store", err)
	}
	if !sess.Active || sess.Expired(time.Now().UTC()) {
		return nil, core.NewError(core.KindSessionExpired, fmt.Sprintf("session %q expired", id))
	}

	history, err := m.opts.Store.LoadHistory(ctx, id, m.opts.HistoryCapacity)
	if err != nil {
		return nil, core.WrapError(core.KindUnknown, "load history from store", err)
	}

	entry := &managed{
		sess:    sess,
		history: NewHistory(m.opts.HistoryCapacity),
		limiter: newSlidingWindow(m.opts.RateWindow, m.opts.RateLimit),
	}
	var lastSeq int64
	for _, msg := range history {
		entry.history.Append(msg)
		if msg.Sequence > lastSeq {
			lastSeq = msg.Sequence
		}
	}
	sess.RestoreSequence(lastSeq)
	sess.Touch(m.opts.TTL)

	m.mu.Lock()
	// Another goroutine may have resumed concurrently; keep the winner.
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing.sess, nil
	}
	m.sessions[id] = entry
	m.byUser[sess.UserID] = append(m.byUser[sess.UserID], id)
	m.mu.Unlock()

	m.opts.Logger.Info("session resumed from store", "session_id", id, "user_id", sess.UserID, "messages", len(history))
	return sess, nil
}

// AllowMessage applies the sliding-window rate limit for an inbound message.
// Only active sessions accept messages.
func (m *Manager) AllowMessage(id string) error {
	entry, err := m.activeEntry(id)
	if err != nil {
		return err
	}
	if !entry.limiter.allow(time.Now().UTC()) {
		return core.NewError(core.KindRateLimitExceeded,
			fmt.Sprintf("rate limit of %d messages per %s exceeded", m.opts.RateLimit, m.opts.RateWindow))
	}
	return nil
}

// AppendMessage assigns the next sequence number, appends the message to the
// in-memory history and publishes the message-saved event.
func (m *Manager) AppendMessage(id string, msg core.Message) (core.Message, error) {
	entry, err := m.activeEntry(id)
	if err != nil {
		return msg, err
	}

	msg.Sequence = entry.sess.NextSequence()
	msg.Processed = true
	entry.history.Append(msg)
	m.publish(core.NewEvent(core.EventMessageSaved, id, entry.sess.UserID, msg))
	return msg, nil
}

// History returns the session's buffered messages, consulting the durable
// store only when the in-memory buffer is empty (e.g. after a resume race).
func (m *Manager) History(ctx context.Context, id string) ([]core.Message, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.KindSessionNotFound, fmt.Sprintf("session %q not found", id))
	}
	if entry.history.Len() > 0 || m.opts.Store == nil {
		return entry.history.All(), nil
	}
	return m.opts.Store.LoadHistory(ctx, id, m.opts.HistoryCapacity)
}

// WithSession runs fn while holding the session's processing lock. Concurrent
// messages for the same session are serialized here; different sessions
// proceed independently.
func (m *Manager) WithSession(id string, fn func(sess *core.Session) error) error {
	entry, err := m.activeEntry(id)
	if err != nil {
		return err
	}

	entry.proc.Lock()
	defer entry.proc.Unlock()
	return fn(entry.sess)
}

// ActiveCount returns the number of active resident sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, entry := range m.sessions {
		if entry.sess.IsActive() {
			n++
		}
	}
	return n
}

// ActiveSessionsFor returns the user's active session ids, oldest first.
func (m *Manager) ActiveSessionsFor(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, id := range m.byUser[userID] {
		if entry, ok := m.sessions[id]; ok && entry.sess.IsActive() {
			ids = append(ids, id)
		}
	}
	return ids
}

// sweep expires sessions past their expiry timestamp and purges ended
// sessions once the grace delay has elapsed.
func (m *Manager) sweep(now time.Time) {
	m.mu.RLock()
	var toExpire []*managed
	var toPurge []string
	for id, entry := range m.sessions {
		switch {
		case entry.sess.IsActive() && entry.sess.Expired(now):
			toExpire = append(toExpire, entry)
		case !entry.sess.IsActive() && !entry.endedAt.IsZero() && now.Sub(entry.endedAt) >= m.opts.Grace:
			toPurge = append(toPurge, id)
		}
	}
	m.mu.RUnlock()

	for _, entry := range toExpire {
		m.expire(entry)
	}

	if len(toPurge) > 0 {
		m.mu.Lock()
		for _, id := range toPurge {
			entry, ok := m.sessions[id]
			if !ok {
				continue
			}
			delete(m.sessions, id)
			m.removeUserIndex(entry.sess.UserID, id)
		}
		m.mu.Unlock()
		m.opts.Logger.Debug("purged ended sessions", "count", len(toPurge))
	}
}

// removeUserIndex drops id from the user's session list; caller holds m.mu.
func (m *Manager) removeUserIndex(userID, id string) {
	ids := m.byUser[userID]
	for i, candidate := range ids {
		if candidate == id {
			m.byUser[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byUser[userID]) == 0 {
		delete(m.byUser, userID)
	}
}

func (m *Manager) publish(ev core.Event) {
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(ev)
	}
}
