package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"F8Chat/internal/backend"
	"F8Chat/internal/chatbot"
	"F8Chat/internal/config"
	"F8Chat/internal/conversation"
	"F8Chat/internal/store"
	"F8Chat/internal/telemetry"
)

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.APIKey, "api-key", "", "Google AI API key (default $GOOGLE_API_KEY or $GEMINI_API_KEY)")
	flag.StringVar(&cfg.Settings.Model, "model", cfg.Settings.Model, "Gemini model ("+strings.Join(config.Models(), "|")+")")
	flag.Float64Var(&cfg.Settings.Temperature, "temperature", cfg.Settings.Temperature, "Creativity (0.0-1.0)")
	flag.IntVar(&cfg.Settings.MaxTokens, "max-tokens", cfg.Settings.MaxTokens, "Max output tokens (100-2048)")
	flag.StringVar(&cfg.Settings.Persona, "persona", cfg.Settings.Persona, "System role sent with every message")
	flag.BoolVar(&cfg.Settings.DarkMode, "dark", false, "Start in dark mode")
	flag.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory for /export files")
	flag.StringVar(&cfg.ArchiveDB, "archive-db", "", "SQLite file to archive transcripts in (disabled when empty)")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout for the Gemini API")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for log files")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.Telemetry, "telemetry", false, "Export traces and metrics to the log directory")
	flag.Parse()

	if cfg.APIKey == "" {
		cfg.APIKey = firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY")
	}

	if err := run(cfg); err != nil {
		if errors.Is(err, conversation.ErrMissingCredential) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := telemetry.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	gemini, err := backend.NewGemini(backend.GeminiOptions{
		Timeout: cfg.Timeout,
		Logger:  logger,
		Tracer:  tracer,
		Meter:   meter,
	})
	if err != nil {
		return err
	}

	sess, err := conversation.New(conversation.Options{
		Opener:   gemini,
		Settings: cfg.Settings,
		Logger:   logger,
		Meter:    meter,
	})
	if err != nil {
		return err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		read, ok := chatbot.TerminalSecretReader(os.Stdin)
		if !ok {
			fmt.Println(conversation.ErrMissingCredential.Error())
			return conversation.ErrMissingCredential
		}
		if apiKey, err = chatbot.PromptAPIKey(read, os.Stdout); err != nil {
			return err
		}
	}
	if err := sess.Configure(apiKey, cfg.Settings); err != nil {
		return err
	}

	var archive *store.Archive
	if cfg.ArchiveDB != "" {
		archive, err = store.Open(cfg.ArchiveDB, logger)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer archive.Close()
	}

	bot, err := chatbot.New(chatbot.Options{
		Session:   sess,
		Archive:   archive,
		In:        os.Stdin,
		Out:       os.Stdout,
		ExportDir: cfg.ExportDir,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("f8chat started", "model", cfg.Settings.Model, "archive", cfg.ArchiveDB != "", "telemetry", cfg.Telemetry)
	return bot.Run(ctx)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
