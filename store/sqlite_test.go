package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chatmesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_SessionRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := core.NewSession("u1", 30*time.Minute, map[string]string{"channel": "web"})
	sess.Authenticate()
	sess.UpdateContext(func(c *core.ConversationContext) {
		c.SetIntent("general.greeting")
		c.SetIntent("banking.balance.check")
		c.MergeEntities(map[string]string{"account": "checking"})
		c.Sentiment = "positive"
	})
	sess.RecordExchange([]string{"intent-agent", "banking-agent"}, "banking.balance.check", false)

	require.NoError(t, s.SaveSession(ctx, sess))

	loaded, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "u1", loaded.UserID)
	assert.True(t, loaded.Active)
	assert.Equal(t, "web", loaded.Metadata["channel"])
	assert.True(t, loaded.Security.Authenticated)
	assert.Equal(t, 0.9, loaded.Security.TrustScore)

	assert.Equal(t, "banking.balance.check", loaded.Context.CurrentIntent)
	assert.Equal(t, []string{"general.greeting"}, loaded.Context.PreviousIntents)
	assert.Equal(t, "checking", loaded.Context.Entities["account"])

	assert.Equal(t, 1, loaded.Stats.MessageCount)
	assert.ElementsMatch(t, []string{"intent-agent", "banking-agent"}, loaded.Stats.AgentsUsed.Values())
}

func TestSQLiteStore_SaveSessionUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := core.NewSession("u1", 30*time.Minute, nil)
	require.NoError(t, s.SaveSession(ctx, sess))

	sess.Deactivate("user request")
	require.NoError(t, s.SaveSession(ctx, sess))

	loaded, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Active)
	assert.Equal(t, "user request", loaded.EndReason)
	assert.False(t, loaded.EndedAt.IsZero())
}

func TestSQLiteStore_LoadSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_HistoryOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := core.NewSession("u1", 30*time.Minute, nil)
	require.NoError(t, s.SaveSession(ctx, sess))

	for seq := int64(1); seq <= 5; seq++ {
		msg := core.NewIncomingMessage(sess.ID, "hello")
		msg.Sequence = seq
		require.NoError(t, s.SaveMessage(ctx, msg))
	}

	all, err := s.LoadHistory(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, msg := range all {
		assert.Equal(t, int64(i+1), msg.Sequence, "history must be chronological")
	}

	limited, err := s.LoadHistory(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(4), limited[0].Sequence, "limit keeps the most recent messages")
	assert.Equal(t, int64(5), limited[1].Sequence)
}

func TestSQLiteStore_MessageFieldsSurvive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	out := core.NewOutgoingMessage("s1", "Your balance is $100.", "banking-agent", 0.93)
	out.Sequence = 1
	require.NoError(t, s.SaveMessage(ctx, out))

	history, err := s.LoadHistory(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, core.DirectionOutgoing, got.Direction)
	assert.Equal(t, "banking-agent", got.AgentID)
	assert.Equal(t, 0.93, got.Confidence)
	assert.Equal(t, "Your balance is $100.", got.Content)
}
