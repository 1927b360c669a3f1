package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"F8Chat/internal/conversation"
	"F8Chat/internal/session"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive", "f8chat.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAppendAndLoad(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	start := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	msgs := []session.Message{
		{Role: session.RoleUser, Content: "hello", Timestamp: start.Add(time.Second)},
		{Role: session.RoleAssistant, Content: "hi there", Timestamp: start.Add(2 * time.Second)},
	}
	for i, msg := range msgs {
		require.NoError(t, a.Append(ctx, "chat-1", "gemini-1.5-flash", start, i, msg))
	}
	require.NoError(t, a.Append(ctx, "chat-1", "gemini-1.5-flash", start, 1, msgs[1]), "appending twice must not duplicate messages")

	got, err := a.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", got.ID)
	assert.Equal(t, "gemini-1.5-flash", got.Model)
	assert.True(t, got.StartTime.Equal(start))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, session.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "hi there", got.Messages[1].Content)
	assert.True(t, got.Messages[1].Timestamp.Equal(start.Add(2*time.Second)))
}

func TestLoadUnknown(t *testing.T) {
	a := openTestArchive(t)
	_, err := a.Load(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownRole(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	start := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	msg := session.Message{Role: "system", Content: "injected", Timestamp: start}
	require.NoError(t, a.Append(ctx, "chat-1", "gemini-1.5-flash", start, 0, msg))

	_, err := a.Load(ctx, "chat-1")
	assert.ErrorContains(t, err, `unknown role "system"`)
}

func TestObserveArchivesAppendsOnly(t *testing.T) {
	a := openTestArchive(t)
	observe := a.Observe()
	start := time.Now().UTC()

	observe(conversation.Event{
		Kind: conversation.EventAppended, ChatID: "chat-a", Model: "gemini-2.5-pro", StartTime: start,
		Index: 0, Message: session.Message{Role: session.RoleUser, Content: "q", Timestamp: start},
	})
	observe(conversation.Event{
		Kind: conversation.EventAppended, ChatID: "chat-a", Model: "gemini-2.5-pro", StartTime: start,
		Index: 1, Message: session.Message{Role: session.RoleAssistant, Content: "a", Timestamp: start},
	})
	observe(conversation.Event{Kind: conversation.EventReset, ChatID: "chat-b", StartTime: start.Add(time.Minute)})

	list, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1, "reset alone archives nothing")
	assert.Equal(t, "chat-a", list[0].ID)
	assert.Equal(t, 2, list[0].MessageCount)
	assert.Equal(t, "gemini-2.5-pro", list[0].Model)
}

func TestDigest(t *testing.T) {
	msg := session.Message{Role: session.RoleUser, Content: "hello"}
	assert.Equal(t, Digest("a", 0, msg), Digest("a", 0, msg))
	assert.NotEqual(t, Digest("a", 0, msg), Digest("a", 1, msg))
	assert.NotEqual(t, Digest("a", 0, msg), Digest("b", 0, msg))
	assert.Len(t, Digest("a", 0, msg), 64)
}
