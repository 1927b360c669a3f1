package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"F8Chat/internal/backend"
	"F8Chat/internal/config"
	"F8Chat/internal/export"
	"F8Chat/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

var (
	// ErrMissingCredential blocks chatting until an API key is configured
	ErrMissingCredential = errors.New("please enter your API key to start chatting")

	// ErrEmptyMessage is returned for blank input
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyExport is returned when exporting an empty transcript
	ErrEmptyExport = export.ErrEmptyHistory

	// ErrBusy is returned while a previous message is still waiting for its reply
	ErrBusy = errors.New("still waiting for the previous reply")
)

// EventKind says what changed in the session
type EventKind int

const (
	EventAppended EventKind = iota + 1
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventAppended:
		return "appended"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event describes one transcript mutation
type Event struct {
	Kind      EventKind
	ChatID    string // Remote handle the transcript belongs to, empty before the first open
	Model     string
	StartTime time.Time
	Message   session.Message // Set for EventAppended
	Index     int             // Position of Message in the transcript
	Messages  []session.Message
}

// Observer is notified synchronously after every transcript mutation
type Observer func(Event)

// Options configures New
type Options struct {
	Opener   backend.Opener
	Settings config.Settings
	Logger   *slog.Logger
	Meter    metric.Meter
	Now      func() time.Time
}

// Session is one conversation: settings, an append-only transcript and the
// remote chat handle the transcript was exchanged on.
type Session struct {
	opener backend.Opener
	logger *slog.Logger
	now    func() time.Time

	messagesCounter metric.Int64Counter
	resetsCounter   metric.Int64Counter
	exportsCounter  metric.Int64Counter
	errorsCounter   metric.Int64Counter

	mu        sync.Mutex
	apiKey    string
	settings  config.Settings
	chat      backend.Chat
	startTime time.Time
	messages  []session.Message
	busy      bool
	observers []Observer
}

// New creates an unconfigured session. Configure must be called with an API
// key before messages can be sent.
func New(opts Options) (*Session, error) {
	if opts.Opener == nil {
		return nil, fmt.Errorf("opener cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter("f8chat")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings == (config.Settings{}) {
		opts.Settings = config.DefaultSettings()
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		opener:   opts.Opener,
		logger:   opts.Logger,
		now:      opts.Now,
		settings: opts.Settings,
	}

	var err error
	if s.messagesCounter, err = opts.Meter.Int64Counter("chat.messages",
		metric.WithDescription("Messages appended to the transcript")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if s.resetsCounter, err = opts.Meter.Int64Counter("chat.resets",
		metric.WithDescription("Conversation resets")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if s.exportsCounter, err = opts.Meter.Int64Counter("chat.exports",
		metric.WithDescription("Chat history exports")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if s.errorsCounter, err = opts.Meter.Int64Counter("chat.send.errors",
		metric.WithDescription("Messages that received no reply")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return s, nil
}

// Configure stores the API key and settings. A blank key leaves the session
// unconfigured and returns ErrMissingCredential.
func (s *Session) Configure(apiKey string, settings config.Settings) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrMissingCredential
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.apiKey = apiKey
	s.settings = settings
	s.mu.Unlock()

	s.logger.Info("session configured",
		"model", settings.Model,
		"temperature", settings.Temperature,
		"max_tokens", settings.MaxTokens,
	)
	return nil
}

// Ready reports whether an API key has been configured
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey != ""
}

// Settings returns the current settings
func (s *Session) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies fn to a copy of the settings and keeps the result if it
// validates. The change is seen by the next request only.
func (s *Session) Update(fn func(*config.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// SetModel selects the model used by the next reset
func (s *Session) SetModel(model string) error {
	return s.Update(func(cfg *config.Settings) { cfg.Model = strings.TrimSpace(model) })
}

func (s *Session) SetTemperature(t float64) error {
	return s.Update(func(cfg *config.Settings) { cfg.Temperature = t })
}

func (s *Session) SetMaxTokens(n int) error {
	return s.Update(func(cfg *config.Settings) { cfg.MaxTokens = n })
}

func (s *Session) SetPersona(persona string) error {
	return s.Update(func(cfg *config.Settings) { cfg.Persona = persona })
}

func (s *Session) SetDarkMode(dark bool) error {
	return s.Update(func(cfg *config.Settings) { cfg.DarkMode = dark })
}

// Subscribe registers an observer
func (s *Session) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Messages returns a copy of the transcript
func (s *Session) Messages() []session.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of messages in the transcript
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// ChatID returns the id of the current remote handle, empty if none is open
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chat == nil {
		return ""
	}
	return s.chat.ID()
}

// ChatModel returns the model the current remote handle is bound to
func (s *Session) ChatModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chat == nil {
		return ""
	}
	return s.chat.Model()
}

// Reset discards the transcript and opens a new remote handle bound to the
// currently selected model. The transcript is empty afterwards even when
// opening the handle fails; the next Send retries the open.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.apiKey == "" {
		s.mu.Unlock()
		return ErrMissingCredential
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}

	discarded := len(s.messages)
	s.messages = nil
	s.chat = nil
	openErr := s.openLocked(ctx)
	ev := s.eventLocked(EventReset)
	observers := s.observersLocked()
	s.mu.Unlock()

	s.resetsCounter.Add(ctx, 1)
	s.logger.Info("conversation reset", "discarded_messages", discarded, "chat_id", ev.ChatID, "model", ev.Model)
	notify(observers, ev)
	return openErr
}

// Send appends text as a user message, forwards it with the current
// generation settings and appends the reply. When the remote call fails the
// user message stays in the transcript and the error is returned; nothing is
// retried.
func (s *Session) Send(ctx context.Context, text string) (session.Message, error) {
	if strings.TrimSpace(text) == "" {
		return session.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.apiKey == "" {
		s.mu.Unlock()
		return session.Message{}, ErrMissingCredential
	}
	if s.busy {
		s.mu.Unlock()
		return session.Message{}, ErrBusy
	}
	if s.chat == nil {
		if err := s.openLocked(ctx); err != nil {
			s.mu.Unlock()
			return session.Message{}, err
		}
	}

	s.busy = true
	chat := s.chat
	params := backend.GenerationParams{
		Temperature:       s.settings.Temperature,
		MaxOutputTokens:   s.settings.MaxTokens,
		SystemInstruction: s.settings.Persona,
	}
	userMsg := session.Message{Role: session.RoleUser, Content: text, Timestamp: s.now()}
	s.messages = append(s.messages, userMsg)
	ev := s.eventLocked(EventAppended)
	observers := s.observersLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	s.messagesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(session.RoleUser))))
	notify(observers, ev)

	s.logger.Info("sending message",
		"chat_id", chat.ID(),
		"model", chat.Model(),
		"temperature", params.Temperature,
		"max_tokens", params.MaxOutputTokens,
		"length", len(text),
	)

	reply, err := chat.Send(ctx, text, params)
	if err != nil {
		s.errorsCounter.Add(ctx, 1)
		s.logger.Error("failed to send message", "chat_id", chat.ID(), "error", err)
		return session.Message{}, err
	}

	ts := s.now()
	if ts.Before(userMsg.Timestamp) {
		ts = userMsg.Timestamp
	}
	botMsg := session.Message{Role: session.RoleAssistant, Content: reply.Text, Timestamp: ts}

	// Reset is refused while busy, so chat is still the current handle.
	s.mu.Lock()
	s.messages = append(s.messages, botMsg)
	ev = s.eventLocked(EventAppended)
	observers = s.observersLocked()
	s.mu.Unlock()

	s.messagesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(session.RoleAssistant))))
	notify(observers, ev)
	return botMsg, nil
}

// Export renders the transcript as a history file named after now. An empty
// transcript yields ErrEmptyExport and no file.
func (s *Session) Export(now time.Time) (export.File, error) {
	s.mu.Lock()
	if s.apiKey == "" {
		s.mu.Unlock()
		return export.File{}, ErrMissingCredential
	}
	messages := s.snapshotLocked()
	s.mu.Unlock()

	f, err := export.Build(messages, now)
	if err != nil {
		s.logger.Warn("export requested with empty transcript")
		return export.File{}, err
	}

	s.exportsCounter.Add(context.Background(), 1)
	s.logger.Info("chat history exported", "file", f.Name, "message_count", len(messages))
	return f, nil
}

func (s *Session) openLocked(ctx context.Context) error {
	chat, err := s.opener.Open(ctx, s.apiKey, s.settings.Model)
	if err != nil {
		return fmt.Errorf("failed to open chat: %w", err)
	}
	s.chat = chat
	s.startTime = s.now()
	return nil
}

func (s *Session) snapshotLocked() []session.Message {
	out := make([]session.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) observersLocked() []Observer {
	out := make([]Observer, len(s.observers))
	copy(out, s.observers)
	return out
}

func (s *Session) eventLocked(kind EventKind) Event {
	ev := Event{
		Kind:      kind,
		StartTime: s.startTime,
		Messages:  s.snapshotLocked(),
		Index:     -1,
	}
	if s.chat != nil {
		ev.ChatID = s.chat.ID()
		ev.Model = s.chat.Model()
	}
	if kind == EventAppended && len(s.messages) > 0 {
		ev.Index = len(s.messages) - 1
		ev.Message = s.messages[ev.Index]
	}
	return ev
}

func notify(observers []Observer, ev Event) {
	for _, o := range observers {
		o(ev)
	}
}
