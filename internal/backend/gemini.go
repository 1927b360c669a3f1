package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/genai"
)

// ErrEmptyReply is returned when Gemini answers without any visible text
var ErrEmptyReply = errors.New("empty response from Gemini")

type modelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newModelsClient = func(ctx context.Context, apiKey string) (modelsClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// GeminiOptions configures NewGemini. Nil tracer, meter and logger fall back
// to no-op implementations.
type GeminiOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Meter   metric.Meter
}

// Gemini opens chat handles against the Gemini API
type Gemini struct {
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer

	requestDuration metric.Float64Histogram
	promptTokens    metric.Int64Counter
	replyTokens     metric.Int64Counter

	mu     sync.Mutex
	apiKey string
	models modelsClient
}

// NewGemini creates a Gemini opener
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer("f8chat")
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter("f8chat")
	}

	duration, err := opts.Meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Gemini request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	promptTokens, err := opts.Meter.Int64Counter(
		"llm.usage.prompt_tokens",
		metric.WithDescription("LLM usage metric: prompt tokens"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt token counter: %w", err)
	}
	replyTokens, err := opts.Meter.Int64Counter(
		"llm.usage.candidates_tokens",
		metric.WithDescription("LLM usage metric: reply tokens"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply token counter: %w", err)
	}

	return &Gemini{
		timeout:         opts.Timeout,
		logger:          opts.Logger,
		tracer:          opts.Tracer,
		requestDuration: duration,
		promptTokens:    promptTokens,
		replyTokens:     replyTokens,
	}, nil
}

// Open returns a new, empty chat bound to model. The underlying client is
// created once per API key and shared between handles.
func (g *Gemini) Open(ctx context.Context, apiKey, model string) (Chat, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	models, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	chat := &geminiChat{
		id:     uuid.NewString(),
		model:  model,
		models: models,
		parent: g,
	}
	g.logger.Info("opened gemini chat", "chat_id", chat.id, "model", model)
	return chat, nil
}

func (g *Gemini) client(ctx context.Context, apiKey string) (modelsClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.models != nil && g.apiKey == apiKey {
		return g.models, nil
	}

	models, err := newModelsClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.apiKey = apiKey
	g.models = models
	return models, nil
}

func (g *Gemini) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

type geminiChat struct {
	id     string
	model  string
	models modelsClient
	parent *Gemini

	mu      sync.Mutex
	history []*genai.Content
}

func (c *geminiChat) ID() string    { return c.id }
func (c *geminiChat) Model() string { return c.model }

// Send calls GenerateContent with the handle's history plus text. Both turns
// are committed to history only when the call succeeds.
func (c *geminiChat) Send(ctx context.Context, text string, params GenerationParams) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.parent
	ctx, span := g.tracer.Start(ctx, "gemini.generate_content",
		trace.WithAttributes(
			attribute.String("chat.id", c.id),
			attribute.String("llm.model", c.model),
			attribute.Float64("llm.temperature", params.Temperature),
			attribute.Int("llm.max_output_tokens", params.MaxOutputTokens),
		),
	)
	defer span.End()

	userTurn := &genai.Content{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: text}},
	}
	contents := make([]*genai.Content, 0, len(c.history)+1)
	contents = append(contents, c.history...)
	contents = append(contents, userTurn)

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(callCtx, c.model, contents, buildConfig(params))
	g.requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("llm.model", c.model)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		g.logger.Error("gemini request failed", "chat_id", c.id, "model", c.model, "error", err)
		return Reply{}, fmt.Errorf("gemini request failed: %w", err)
	}

	reply := Reply{Text: visibleText(resp)}
	if reply.Text == "" {
		span.SetStatus(codes.Error, ErrEmptyReply.Error())
		return Reply{}, ErrEmptyReply
	}

	if usage := resp.UsageMetadata; usage != nil {
		reply.PromptTokens = int(usage.PromptTokenCount)
		reply.ReplyTokens = int(usage.CandidatesTokenCount)
		g.promptTokens.Add(ctx, int64(usage.PromptTokenCount))
		g.replyTokens.Add(ctx, int64(usage.CandidatesTokenCount))
	}

	c.history = append(c.history, userTurn, &genai.Content{
		Role:  string(genai.RoleModel),
		Parts: []*genai.Part{{Text: reply.Text}},
	})

	g.logger.Debug("gemini reply received",
		"chat_id", c.id,
		"model", c.model,
		"prompt_tokens", reply.PromptTokens,
		"reply_tokens", reply.ReplyTokens,
		"history_len", len(c.history),
	)
	return reply, nil
}

func buildConfig(params GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(params.Temperature)),
	}
	if params.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxOutputTokens)
	}
	if persona := strings.TrimSpace(params.SystemInstruction); persona != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: persona}},
		}
	}
	return cfg
}

func visibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

var _ Opener = (*Gemini)(nil)
