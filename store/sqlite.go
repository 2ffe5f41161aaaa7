package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/chatmesh/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-backed store at dbPath, creating parent
// directories and the schema as needed.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency between the sweep goroutine and
	// in-flight pipelines.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_access_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		ended_at INTEGER,
		end_reason TEXT,
		active INTEGER NOT NULL,
		metadata_json TEXT,
		context_json TEXT,
		stats_json TEXT,
		authenticated INTEGER NOT NULL DEFAULT 0,
		authenticated_at INTEGER,
		trust_score REAL NOT NULL DEFAULT 0.5
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		sequence INTEGER NOT NULL,
		agent_id TEXT,
		confidence REAL,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, sequence);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// storedStats is the JSON shape of session statistics at rest.
type storedStats struct {
	MessageCount     int      `json:"message_count"`
	ErrorCount       int      `json:"error_count"`
	AgentsUsed       []string `json:"agents_used"`
	IntentsProcessed []string `json:"intents_processed"`
}

// SaveSession inserts or updates the session snapshot.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *core.Session) error {
	snap := sess.Snapshot()

	metadata, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	contextJSON, err := json.Marshal(snap.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	stats, err := json.Marshal(storedStats{
		MessageCount:     snap.Stats.MessageCount,
		ErrorCount:       snap.Stats.ErrorCount,
		AgentsUsed:       snap.Stats.AgentsUsed.Values(),
		IntentsProcessed: snap.Stats.IntentsProcessed.Values(),
	})
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	var endedAt, authenticatedAt sql.NullInt64
	if !snap.EndedAt.IsZero() {
		endedAt = sql.NullInt64{Int64: snap.EndedAt.Unix(), Valid: true}
	}
	if !snap.Security.AuthenticatedAt.IsZero() {
		authenticatedAt = sql.NullInt64{Int64: snap.Security.AuthenticatedAt.Unix(), Valid: true}
	}

	query := `
		INSERT INTO sessions (
			session_id, user_id, created_at, last_access_at, expires_at,
			ended_at, end_reason, active, metadata_json, context_json,
			stats_json, authenticated, authenticated_at, trust_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_access_at = excluded.last_access_at,
			expires_at = excluded.expires_at,
			ended_at = excluded.ended_at,
			end_reason = excluded.end_reason,
			active = excluded.active,
			metadata_json = excluded.metadata_json,
			context_json = excluded.context_json,
			stats_json = excluded.stats_json,
			authenticated = excluded.authenticated,
			authenticated_at = excluded.authenticated_at,
			trust_score = excluded.trust_score`

	_, err = s.db.ExecContext(ctx, query,
		snap.ID, snap.UserID, snap.CreatedAt.Unix(), snap.LastAccessAt.Unix(), snap.ExpiresAt.Unix(),
		endedAt, snap.EndReason, boolToInt(snap.Active), string(metadata), string(contextJSON),
		string(stats), boolToInt(snap.Security.Authenticated), authenticatedAt, snap.Security.TrustScore,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session or ErrNotFound.
func (s *SQLiteStore) LoadSession(ctx context.Context, sessionID string) (*core.Session, error) {
	query := `
		SELECT session_id, user_id, created_at, last_access_at, expires_at,
		       ended_at, end_reason, active, metadata_json, context_json,
		       stats_json, authenticated, authenticated_at, trust_score
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var (
		sess                               core.Session
		createdAt, lastAccessAt, expiresAt int64
		endedAt, authenticatedAt           sql.NullInt64
		endReason                          sql.NullString
		active, authenticated              int
		metadata, contextJSON, stats       sql.NullString
	)
	err := row.Scan(
		&sess.ID, &sess.UserID, &createdAt, &lastAccessAt, &expiresAt,
		&endedAt, &endReason, &active, &metadata, &contextJSON,
		&stats, &authenticated, &authenticatedAt, &sess.Security.TrustScore,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.LastAccessAt = time.Unix(lastAccessAt, 0).UTC()
	sess.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if endedAt.Valid {
		sess.EndedAt = time.Unix(endedAt.Int64, 0).UTC()
	}
	sess.EndReason = endReason.String
	sess.Active = active == 1
	sess.Security.Authenticated = authenticated == 1
	if authenticatedAt.Valid {
		sess.Security.AuthenticatedAt = time.Unix(authenticatedAt.Int64, 0).UTC()
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &sess.Context); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}
	var st storedStats
	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &st); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	sess.Stats = core.SessionStats{
		MessageCount:     st.MessageCount,
		ErrorCount:       st.ErrorCount,
		AgentsUsed:       core.NewStringSet(st.AgentsUsed...),
		IntentsProcessed: core.NewStringSet(st.IntentsProcessed...),
	}
	return &sess, nil
}

// SaveMessage appends one message to the session's stored history.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg core.Message) error {
	query := `
		INSERT INTO messages (message_id, session_id, direction, content, type, timestamp, sequence, agent_id, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SessionID, string(msg.Direction), msg.Content, msg.Type,
		msg.Timestamp.Unix(), msg.Sequence, msg.AgentID, msg.Confidence,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// LoadHistory returns up to limit most recent messages, oldest first.
func (s *SQLiteStore) LoadHistory(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	query := `
		SELECT message_id, session_id, direction, content, type, timestamp, sequence, agent_id, confidence
		FROM messages WHERE session_id = ? ORDER BY sequence DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			msg        core.Message
			direction  string
			ts         int64
			agentID    sql.NullString
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &direction, &msg.Content, &msg.Type, &ts, &msg.Sequence, &agentID, &confidence); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Direction = core.Direction(direction)
		msg.Timestamp = time.Unix(ts, 0).UTC()
		msg.AgentID = agentID.String
		msg.Confidence = confidence.Float64
		msg.Processed = true
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
