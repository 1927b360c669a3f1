package theme

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"F8Chat/internal/session"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestNewPicksPalette(t *testing.T) {
	assert.Equal(t, "light", New(false).Name())
	assert.Equal(t, "dark", New(true).Name())
	assert.Equal(t, lipgloss.Color("#1976d2"), New(false).UserMsg.GetBackground())
	assert.Equal(t, lipgloss.Color("#1e88e5"), New(true).UserMsg.GetBackground())
	assert.Equal(t, lipgloss.Color("#1e1e1e"), New(true).BotMsg.GetBackground())
}

func TestRenderMessage(t *testing.T) {
	ts := time.Date(2026, 1, 1, 13, 14, 15, 0, time.UTC)
	out := New(false).RenderMessage(session.Message{Role: session.RoleAssistant, Content: "hi there\n", Timestamp: ts})

	assert.Contains(t, out, "Assistant [13:14:15]:")
	assert.Contains(t, out, "hi there")
	assert.Less(t, strings.Index(out, "Assistant"), strings.Index(out, "hi there"))
}

func TestRenderTranscriptKeepsOrder(t *testing.T) {
	ts := time.Now()
	out := New(true).RenderTranscript([]session.Message{
		{Role: session.RoleUser, Content: "first", Timestamp: ts},
		{Role: session.RoleAssistant, Content: "second", Timestamp: ts},
	})
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
	assert.Empty(t, New(true).RenderTranscript(nil))
}

func TestRenderNotices(t *testing.T) {
	th := New(false)
	assert.Contains(t, th.RenderWarning("nothing to save"), "Warning: nothing to save")
	assert.Contains(t, th.RenderError(errors.New("boom")), "Error: boom")
	assert.Contains(t, th.RenderInfo("hello"), "hello")
}
