package database_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnylearn/mascotchat/internal/database"
)

func newTestStore(t *testing.T) (database.Store, *sqlx.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil), db
}

func insertChild(t *testing.T, db *sqlx.DB, id, parentID, mascotID string, age int) {
	t.Helper()

	var mascot any
	if mascotID != "" {
		mascot = mascotID
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO children (id, parent_id, name, age, personality, interests, mascot_id, created_at, updated_at)
		VALUES (?, ?, 'Minh', ?, '["tò mò"]', '["khủng long","vẽ"]', ?, ?, ?)`, id, parentID, age, mascot, now, now)
	require.NoError(t, err)
}

func insertSubscription(t *testing.T, db *sqlx.DB, parentID, plan string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO subscriptions (parent_id, plan, status, created_at, updated_at) VALUES (?, ?, 'ACTIVE', ?, ?)`,
		parentID, plan, now, now)
	require.NoError(t, err)
}

func saveTurn(t *testing.T, store database.Store, childID, sessionID, query string, flagged bool, at time.Time) *database.Turn {
	t.Helper()

	turn := &database.Turn{
		ChildID:    childID,
		SessionID:  sessionID,
		UserQuery:  query,
		AIResponse: "reply to " + query,
		PromptUsed: "none",
		IsFlagged:  flagged,
		CreatedAt:  at,
	}
	if flagged {
		turn.FlagReason = sql.NullString{String: "Profanity detected in user message", Valid: true}
	}
	require.NoError(t, store.SaveTurn(context.Background(), turn))
	return turn
}

func TestMigrations_SeedMascots(t *testing.T) {
	_, db := newTestStore(t)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM mascots`))
	assert.Equal(t, 4, count)
}

func TestGetChildProfile(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	insertChild(t, db, "child-1", "parent-1", "curious_cat", 8)
	insertSubscription(t, db, "parent-1", database.PlanFree)
	insertChild(t, db, "child-2", "parent-2", "", 6)

	profile, err := store.GetChildProfile(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, "Minh", profile.Name)
	assert.Equal(t, 8, profile.Age)
	assert.Equal(t, database.StringList{"tò mò"}, profile.Personality)
	assert.Equal(t, database.StringList{"khủng long", "vẽ"}, profile.Interests)
	assert.Equal(t, database.PlanFree, profile.Plan)
	require.NotNil(t, profile.Mascot)
	assert.Equal(t, "Curious Cat", profile.Mascot.Name)
	assert.Equal(t, database.StringList{"Curious", "Friendly", "Playful"}, profile.Mascot.Traits)

	profile, err = store.GetChildProfile(ctx, "child-2")
	require.NoError(t, err)
	assert.Nil(t, profile.Mascot)
	assert.Empty(t, profile.Plan)

	_, err = store.GetChildProfile(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSaveTurn_FlagInvariant(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	err := store.SaveTurn(ctx, &database.Turn{ChildID: "c", SessionID: "s", IsFlagged: true})
	require.Error(t, err)

	err = store.SaveTurn(ctx, &database.Turn{
		ChildID: "c", SessionID: "s",
		FlagReason: sql.NullString{String: "stray", Valid: true},
	})
	require.Error(t, err)

	// The table constraint holds even when the store is bypassed.
	_, err = db.Exec(`INSERT INTO conversation_logs (id, child_id, session_id, user_query, ai_response, prompt_used, is_flagged, flag_reason, created_at)
		VALUES ('x', 'c', 's', 'q', 'a', 'none', 1, NULL, ?)`, time.Now().UTC())
	require.Error(t, err)
}

func TestGetSessionHistory_ExcludesFlagged(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	saveTurn(t, store, "c1", "s1", "one", false, base)
	saveTurn(t, store, "c1", "s1", "bad one", true, base.Add(time.Minute))
	saveTurn(t, store, "c1", "s1", "two", false, base.Add(2*time.Minute))
	saveTurn(t, store, "c1", "s1", "bad two", true, base.Add(3*time.Minute))
	saveTurn(t, store, "c1", "s1", "three", false, base.Add(4*time.Minute))
	saveTurn(t, store, "c1", "other", "elsewhere", false, base.Add(5*time.Minute))

	history, err := store.GetSessionHistory(ctx, "s1", 10, false)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].UserQuery)
	assert.Equal(t, "two", history[1].UserQuery)
	assert.Equal(t, "three", history[2].UserQuery)

	all, err := store.GetSessionHistory(ctx, "s1", 10, true)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGetSessionHistory_KeepsMostRecent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, q := range []string{"a", "b", "c", "d"} {
		saveTurn(t, store, "c1", "s1", q, false, base.Add(time.Duration(i)*time.Minute))
	}

	history, err := store.GetSessionHistory(ctx, "s1", 2, false)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].UserQuery)
	assert.Equal(t, "d", history[1].UserQuery)
}

func TestCountTurnsSince(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	saveTurn(t, store, "c1", "s1", "yesterday", false, now.Add(-30*time.Hour))
	saveTurn(t, store, "c1", "s1", "today", false, now.Add(-time.Minute))
	saveTurn(t, store, "c1", "s1", "flagged today", true, now.Add(-30*time.Second))
	saveTurn(t, store, "c2", "s2", "other child", false, now)

	count, err := store.CountTurnsSince(ctx, "c1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListTurnsAndSetFlag(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	clean := saveTurn(t, store, "c1", "s1", "clean", false, base)
	saveTurn(t, store, "c1", "s1", "dirty", true, base.Add(time.Minute))
	saveTurn(t, store, "c2", "s2", "other", false, base.Add(2*time.Minute))

	flagged := true
	turns, total, err := store.ListTurns(ctx, database.TurnFilter{Flagged: &flagged})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, turns, 1)
	assert.Equal(t, "dirty", turns[0].UserQuery)

	turns, total, err = store.ListTurns(ctx, database.TurnFilter{ChildID: "c1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, turns, 1)
	assert.Equal(t, "dirty", turns[0].UserQuery)

	require.Error(t, store.SetTurnFlag(ctx, clean.ID, true, "  "))
	require.NoError(t, store.SetTurnFlag(ctx, clean.ID, true, "Reviewed: rude"))

	got, err := store.GetTurn(ctx, clean.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFlagged)
	assert.Equal(t, "Reviewed: rude", got.FlagReason.String)

	require.NoError(t, store.SetTurnFlag(ctx, clean.ID, false, "ignored"))
	got, err = store.GetTurn(ctx, clean.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFlagged)
	assert.False(t, got.FlagReason.Valid)

	assert.ErrorIs(t, store.SetTurnFlag(ctx, "missing", false, ""), database.ErrNotFound)
	_, err = store.GetTurn(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeleteTurnsBefore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	saveTurn(t, store, "c1", "s1", "old", false, now.Add(-100*24*time.Hour))
	saveTurn(t, store, "c1", "s1", "new", false, now)

	deleted, err := store.DeleteTurnsBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, total, err := store.ListTurns(ctx, database.TurnFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestTemplates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	active, err := store.GetActiveTemplate(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	first := &database.PromptTemplate{Name: "first", Content: "Hi {{child_name}}", SafetyRules: database.StringList{"game"}}
	second := &database.PromptTemplate{Name: "second", Content: "Hello {{child_name}}"}
	require.NoError(t, store.CreateTemplate(ctx, first))
	require.NoError(t, store.CreateTemplate(ctx, second))
	assert.Equal(t, 1, first.Version)
	assert.NotZero(t, first.ID)

	require.NoError(t, store.ActivateTemplate(ctx, first.ID))
	active, err = store.GetActiveTemplate(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "first", active.Name)
	assert.Equal(t, database.StringList{"game"}, active.SafetyRules)

	require.NoError(t, store.ActivateTemplate(ctx, second.ID))
	active, err = store.GetActiveTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", active.Name)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Templates)
	assert.Equal(t, 1, stats.ActiveTemplates)

	assert.ErrorIs(t, store.ActivateTemplate(ctx, 9999), database.ErrNotFound)
}

func TestUpdateTemplate_Version(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tmpl := &database.PromptTemplate{Name: "t", Content: "v1"}
	require.NoError(t, store.CreateTemplate(ctx, tmpl))

	tmpl.Description = "only description"
	require.NoError(t, store.UpdateTemplate(ctx, tmpl))
	assert.Equal(t, 1, tmpl.Version)
	assert.Equal(t, "only description", tmpl.Description)

	tmpl.Content = "v2"
	require.NoError(t, store.UpdateTemplate(ctx, tmpl))
	assert.Equal(t, 2, tmpl.Version)

	got, err := store.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, 2, got.Version)

	missing := &database.PromptTemplate{ID: 9999, Name: "x", Content: "y"}
	assert.ErrorIs(t, store.UpdateTemplate(ctx, missing), database.ErrNotFound)

	list, err := store.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
