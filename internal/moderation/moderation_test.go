package moderation

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnylearn/mascotchat/internal/database"
)

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	assert.Nil(t, commandArgs("/flagged"))
	assert.Equal(t, []string{"5"}, commandArgs("/flagged 5"))
	assert.Equal(t, []string{"abc", "rude", "words"}, commandArgs("/flag@mascot_bot  abc rude   words"))
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "default", args: nil, want: 10},
		{name: "explicit", args: []string{"3"}, want: 3},
		{name: "clamped", args: []string{"500"}, want: 50},
		{name: "zero", args: []string{"0"}, want: 10},
		{name: "garbage", args: []string{"many"}, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseLimit(tt.args, defaultListLimit, maxListLimit))
		})
	}
}

func TestParseFlagArgs(t *testing.T) {
	t.Parallel()

	_, _, ok := parseFlagArgs(nil)
	assert.False(t, ok)

	id, reason, ok := parseFlagArgs([]string{"log-1"})
	assert.True(t, ok)
	assert.Equal(t, "log-1", id)
	assert.Empty(t, reason)

	id, reason, ok = parseFlagArgs([]string{"log-2", "needs", "review"})
	assert.True(t, ok)
	assert.Equal(t, "log-2", id)
	assert.Equal(t, "needs review", reason)
}

func flaggedTurn(id, query string) database.Turn {
	return database.Turn{
		ID:         id,
		ChildID:    "child-1",
		SessionID:  "session-1",
		UserQuery:  query,
		IsFlagged:  true,
		FlagReason: sql.NullString{String: "Profanity detected in user message", Valid: true},
		CreatedAt:  time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC),
	}
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	got := FormatAlert(flaggedTurn("log-1", "bạn là đồ ngu"))

	assert.Contains(t, got, "Reason: Profanity detected in user message")
	assert.Contains(t, got, "Child: child-1")
	assert.Contains(t, got, "Session: session-1")
	assert.Contains(t, got, "Message: bạn là đồ ngu")
	assert.True(t, strings.HasSuffix(got, "Log ID: log-1"))
}

func TestFormatAlert_TruncatesLongMessages(t *testing.T) {
	t.Parallel()

	got := FormatAlert(flaggedTurn("log-1", strings.Repeat("ạ", 500)))

	assert.Less(t, len([]rune(got)), 300)
	assert.Contains(t, got, "...")
}

func TestFormatTurnList(t *testing.T) {
	t.Parallel()

	got := FormatTurnList([]database.Turn{flaggedTurn("a", "one"), flaggedTurn("b", "two")}, 7)

	assert.True(t, strings.HasPrefix(got, "Flagged conversations (2 of 7)"))
	assert.Contains(t, got, "1. 2025-03-14 08:30:00")
	assert.Contains(t, got, "Log ID: a")
	assert.Contains(t, got, "2. 2025-03-14 08:30:00")
	assert.True(t, strings.HasSuffix(got, "Log ID: b"))
}

func TestFormatStats(t *testing.T) {
	t.Parallel()

	got := FormatStats(&database.Stats{Templates: 3, ActiveTemplates: 1, Conversations: 40, FlaggedTurns: 2})

	assert.Equal(t, "Templates: 3 (1 active)\nConversations: 40\nFlagged: 2", got)
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	handlers := RegisterAllCommands(Deps{})

	require.Len(t, handlers, 5)
	for name, h := range handlers {
		assert.Equal(t, "/"+h.Pattern, name)
		assert.NotNil(t, h.Handler)
		assert.Equal(t, bot.MatchTypeCommandStartOnly, h.MatchType)
	}
	assert.Empty(t, handlers["/help"].Middleware)
	assert.Len(t, handlers["/flag"].Middleware, 1)
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []*bot.SendMessageParams
	err   error
	calls chan struct{}
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, params)
	f.mu.Unlock()
	f.calls <- struct{}{}
	return &models.Message{}, f.err
}

func TestNotifier_DeliversQueuedAlerts(t *testing.T) {
	sender := &fakeSender{calls: make(chan struct{}, 4)}
	n := NewNotifier(sender, -100123, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	n.NotifyFlagged(ctx, flaggedTurn("log-1", "bạn là đồ ngu"))

	select {
	case <-sender.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not sent")
	}
	cancel()
	require.NoError(t, <-done)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100123), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Log ID: log-1")
}

func TestNotifier_SendFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{calls: make(chan struct{}, 4), err: errors.New("chat not found")}
	n := NewNotifier(sender, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	n.NotifyFlagged(ctx, flaggedTurn("a", "x"))
	n.NotifyFlagged(ctx, flaggedTurn("b", "y"))
	for range 2 {
		select {
		case <-sender.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("alert was not attempted")
		}
	}
	cancel()
	require.NoError(t, <-done)
}

func TestNotifier_DropsWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	n := NewNotifier(&fakeSender{calls: make(chan struct{}, 1)}, 1, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < alertQueueSize+10; i++ {
			n.NotifyFlagged(context.Background(), flaggedTurn("x", "y"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyFlagged blocked on a full queue")
	}
	assert.Len(t, n.queue, alertQueueSize)
}
