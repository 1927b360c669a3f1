package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"F8Chat/internal/config"
	"F8Chat/internal/conversation"
	"F8Chat/internal/export"
)

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/reset":
		return false, cb.session.Reset(ctx)

	case "/export":
		dir := cb.exportDir
		if rest != "" {
			dir = rest
		}
		return false, cb.exportHistory(dir)

	case "/models":
		current := cb.session.Settings().Model
		cb.println("Available models:")
		for i, m := range config.Models() {
			marker := ""
			if m == current {
				marker = " (selected)"
			}
			cb.printf("%d. %s%s\n", i+1, m, marker)
		}
		return false, nil

	case "/model":
		if rest == "" {
			cb.printf("Selected model: %s (chat bound to %s)\n", cb.session.Settings().Model, cb.chatModel())
			return false, nil
		}
		if err := cb.session.SetModel(rest); err != nil {
			return false, err
		}
		cb.printf("Model set to %s. Use /reset to start a conversation with it.\n", rest)
		return false, nil

	case "/temperature":
		if rest == "" {
			return false, fmt.Errorf("usage: /temperature <%.1f-%.1f>", config.MinTemperature, config.MaxTemperature)
		}
		t, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return false, fmt.Errorf("invalid temperature %q: %w", rest, err)
		}
		if err := cb.session.SetTemperature(t); err != nil {
			return false, err
		}
		cb.printf("Temperature set to %.1f\n", t)
		return false, nil

	case "/max-tokens":
		if rest == "" {
			return false, fmt.Errorf("usage: /max-tokens <%d-%d>", config.MinMaxTokens, config.MaxMaxTokens)
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false, fmt.Errorf("invalid max tokens %q: %w", rest, err)
		}
		if err := cb.session.SetMaxTokens(n); err != nil {
			return false, err
		}
		cb.printf("Max tokens set to %d\n", n)
		return false, nil

	case "/persona":
		if rest == "" {
			cb.printf("Persona: %s\n", cb.session.Settings().Persona)
			return false, nil
		}
		if err := cb.session.SetPersona(rest); err != nil {
			return false, err
		}
		cb.println("Persona updated.")
		return false, nil

	case "/theme":
		dark := !cb.session.Settings().DarkMode
		switch strings.ToLower(rest) {
		case "":
		case "dark":
			dark = true
		case "light":
			dark = false
		default:
			return false, fmt.Errorf("usage: /theme [dark|light]")
		}
		if err := cb.session.SetDarkMode(dark); err != nil {
			return false, err
		}
		cb.setTheme(dark)
		cb.printf("Theme: %s\n", cb.currentTheme().Name())
		return false, nil

	case "/settings":
		s := cb.session.Settings()
		cb.printf("Model:       %s\n", s.Model)
		cb.printf("Temperature: %.1f\n", s.Temperature)
		cb.printf("Max tokens:  %d\n", s.MaxTokens)
		cb.printf("Persona:     %s\n", s.Persona)
		cb.printf("Theme:       %s\n", cb.currentTheme().Name())
		cb.printf("Messages:    %d\n", cb.session.Len())
		return false, nil

	case "/history":
		msgs := cb.session.Messages()
		if len(msgs) == 0 {
			cb.println("No messages yet.")
			return false, nil
		}
		cb.println(cb.currentTheme().RenderTranscript(msgs))
		return false, nil

	case "/archive":
		if cb.archive == nil {
			cb.println("Archive is not enabled. Use -archive-db to enable.")
			return false, nil
		}
		if rest != "" {
			rec, err := cb.archive.Load(ctx, rest)
			if err != nil {
				return false, fmt.Errorf("failed to load archived conversation %s: %w", rest, err)
			}
			cb.printf("Conversation %s (%s, started %s):\n", rec.ID, rec.Model, rec.StartTime.Format("2006-01-02 15:04:05"))
			if len(rec.Messages) == 0 {
				cb.println("No messages.")
				return false, nil
			}
			cb.println(cb.currentTheme().RenderTranscript(rec.Messages))
			return false, nil
		}
		list, err := cb.archive.List(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to list archive: %w", err)
		}
		if len(list) == 0 {
			cb.println("Archive is empty.")
			return false, nil
		}
		cb.println("Archived conversations:")
		for i, s := range list {
			cb.printf("%d. %s  %s  %s  %d messages\n", i+1, s.StartTime.Format("2006-01-02 15:04:05"), s.ID, s.Model, s.MessageCount)
		}
		return false, nil

	case "/help":
		cb.println("Available commands:")
		cb.println("  /reset                 - Start a new conversation")
		cb.println("  /export [dir]          - Save chat history as a text file")
		cb.println("  /models                - List available models")
		cb.println("  /model [name]          - Show or select the model (applies after /reset)")
		cb.println("  /temperature <0-1>     - Set creativity")
		cb.println("  /max-tokens <100-2048> - Set reply token limit")
		cb.println("  /persona [text]        - Show or set the system role")
		cb.println("  /theme [dark|light]    - Toggle dark mode")
		cb.println("  /settings              - Show current settings")
		cb.println("  /history               - Show the conversation so far")
		if cb.archive != nil {
			cb.println("  /archive [id]          - List archived conversations or show one")
		}
		cb.println("  /help                  - Show this help message")
		cb.println("  /quit, /exit           - Exit")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help)", parts[0])
	}
}

func (cb *ChatBot) exportHistory(dir string) error {
	f, err := cb.session.Export(cb.now())
	if errors.Is(err, conversation.ErrEmptyExport) {
		cb.println(cb.currentTheme().RenderWarning("No chat history to save yet!"))
		return nil
	}
	if err != nil {
		return err
	}

	path, err := export.WriteFile(dir, f)
	if err != nil {
		return err
	}
	cb.printf("Saved chat history to %s\n", path)
	return nil
}

func (cb *ChatBot) chatModel() string {
	if m := cb.session.ChatModel(); m != "" {
		return m
	}
	return "none yet"
}
