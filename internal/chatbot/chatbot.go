package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"F8Chat/internal/conversation"
	"F8Chat/internal/store"
	"F8Chat/internal/theme"
)

const (
	appTitle   = "F8 Chatbot AI"
	appCaption = "Powered by Google's Gemini API"
)

// Options configures New
type Options struct {
	Session   *conversation.Session
	Archive   *store.Archive // Optional
	In        io.Reader
	Out       io.Writer
	ExportDir string
	Logger    *slog.Logger
	Now       func() time.Time
}

// ChatBot is the terminal front end of a conversation session
type ChatBot struct {
	session   *conversation.Session
	archive   *store.Archive
	in        io.Reader
	out       io.Writer
	exportDir string
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	theme *theme.Theme
}

// New creates a ChatBot and subscribes it to session changes
func New(opts Options) (*ChatBot, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if opts.In == nil || opts.Out == nil {
		return nil, fmt.Errorf("input and output are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	cb := &ChatBot{
		session:   opts.Session,
		archive:   opts.Archive,
		in:        opts.In,
		out:       opts.Out,
		exportDir: opts.ExportDir,
		logger:    opts.Logger,
		now:       opts.Now,
		theme:     theme.New(opts.Session.Settings().DarkMode),
	}
	cb.session.Subscribe(cb.render)
	if cb.archive != nil {
		cb.session.Subscribe(cb.archive.Observe())
	}
	return cb, nil
}

// render is the session observer that redraws after every mutation
func (cb *ChatBot) render(ev conversation.Event) {
	th := cb.currentTheme()
	switch ev.Kind {
	case conversation.EventAppended:
		fmt.Fprintln(cb.out, th.RenderMessage(ev.Message))
	case conversation.EventReset:
		if ev.ChatID == "" {
			fmt.Fprintln(cb.out, th.RenderInfo("Transcript cleared."))
			return
		}
		fmt.Fprintln(cb.out, th.RenderInfo(fmt.Sprintf("Started a new conversation (model %s).", ev.Model)))
	}
}

func (cb *ChatBot) currentTheme() *theme.Theme {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.theme
}

func (cb *ChatBot) setTheme(dark bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.theme = theme.New(dark)
}

func (cb *ChatBot) printf(format string, args ...any) {
	fmt.Fprintf(cb.out, format, args...)
}

func (cb *ChatBot) println(args ...any) {
	fmt.Fprintln(cb.out, args...)
}

// Run reads lines until EOF or /quit. Plain lines are sent as messages,
// lines starting with "/" are commands.
func (cb *ChatBot) Run(ctx context.Context) error {
	th := cb.currentTheme()
	if !cb.session.Ready() {
		cb.println(th.RenderInfo(conversation.ErrMissingCredential.Error()))
		return conversation.ErrMissingCredential
	}

	cb.println(th.Title.Render("=== " + appTitle + " ==="))
	cb.println(th.Caption.Render(appCaption))
	settings := cb.session.Settings()
	cb.printf("Model: %s | Temperature: %.1f | Max tokens: %d | Theme: %s\n",
		settings.Model, settings.Temperature, settings.MaxTokens, th.Name())
	cb.println("Type /help for commands, /quit to exit")
	cb.println()

	scanner := bufio.NewScanner(cb.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			break
		}
		cb.printf("%s ", cb.currentTheme().Prompt.Render("You:"))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.println(cb.currentTheme().RenderError(err))
				cb.logger.Error("command error", "command", input, "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		cb.sendMessage(ctx, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cb.println("Goodbye!")
	return nil
}

func (cb *ChatBot) sendMessage(ctx context.Context, input string) {
	cb.println(cb.currentTheme().Thinking.Render("thinking..."))

	_, err := cb.session.Send(ctx, input)
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrMissingCredential):
		cb.println(cb.currentTheme().RenderInfo(err.Error()))
	default:
		cb.println(cb.currentTheme().RenderError(err))
	}
	cb.println()
}
