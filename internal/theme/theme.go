// Package theme renders transcript messages for the terminal in a light or
// dark palette.
package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"F8Chat/internal/session"
)

// Palette holds the colors for one theme
type Palette struct {
	Background   lipgloss.Color
	Text         lipgloss.Color
	UserBubble   lipgloss.Color
	UserText     lipgloss.Color
	BotBubble    lipgloss.Color
	BotText      lipgloss.Color
	Notification lipgloss.Color
}

var (
	Light = Palette{
		Background:   lipgloss.Color("#ffffff"),
		Text:         lipgloss.Color("#000000"),
		UserBubble:   lipgloss.Color("#1976d2"),
		UserText:     lipgloss.Color("#ffffff"),
		BotBubble:    lipgloss.Color("#f1f1f1"),
		BotText:      lipgloss.Color("#000000"),
		Notification: lipgloss.Color("#000000"),
	}
	Dark = Palette{
		Background:   lipgloss.Color("#121212"),
		Text:         lipgloss.Color("#ffffff"),
		UserBubble:   lipgloss.Color("#1e88e5"),
		UserText:     lipgloss.Color("#ffffff"),
		BotBubble:    lipgloss.Color("#1e1e1e"),
		BotText:      lipgloss.Color("#ffffff"),
		Notification: lipgloss.Color("#ffffff"),
	}
)

// Theme holds the styles derived from a palette
type Theme struct {
	Dark bool

	Title    lipgloss.Style
	Caption  lipgloss.Style
	UserMsg  lipgloss.Style
	BotMsg   lipgloss.Style
	Header   lipgloss.Style
	Info     lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Prompt   lipgloss.Style
	Thinking lipgloss.Style
}

// New builds the light or dark theme
func New(dark bool) *Theme {
	p := Light
	if dark {
		p = Dark
	}

	bubble := lipgloss.NewStyle().Padding(0, 1).MarginBottom(1)
	return &Theme{
		Dark:     dark,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.Text),
		Caption:  lipgloss.NewStyle().Italic(true).Faint(true),
		UserMsg:  bubble.Foreground(p.UserText).Background(p.UserBubble),
		BotMsg:   bubble.Foreground(p.BotText).Background(p.BotBubble),
		Header:   lipgloss.NewStyle().Bold(true),
		Info:     lipgloss.NewStyle().Foreground(p.Notification),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#f9a825")).Bold(true),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
		Prompt:   lipgloss.NewStyle().Bold(true).Foreground(p.UserBubble),
		Thinking: lipgloss.NewStyle().Faint(true).Italic(true),
	}
}

// Name returns "dark" or "light"
func (t *Theme) Name() string {
	if t.Dark {
		return "dark"
	}
	return "light"
}

// RenderMessage renders "Role [HH:MM:SS]:" followed by the content, in the
// role's bubble style.
func (t *Theme) RenderMessage(msg session.Message) string {
	style := t.BotMsg
	if msg.Role == session.RoleUser {
		style = t.UserMsg
	}
	header := t.Header.Render(fmt.Sprintf("%s [%s]:", msg.Role.Title(), msg.Clock()))
	body := strings.TrimRight(msg.Content, "\n")
	return style.Render(header + "\n" + body)
}

// RenderTranscript renders every message in order
func (t *Theme) RenderTranscript(messages []session.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, t.RenderMessage(msg))
	}
	return strings.Join(parts, "\n")
}

func (t *Theme) RenderInfo(s string) string    { return t.Info.Render(s) }
func (t *Theme) RenderWarning(s string) string { return t.Warning.Render("Warning: " + s) }
func (t *Theme) RenderError(err error) string  { return t.Error.Render("Error: " + err.Error()) }
