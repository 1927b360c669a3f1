// Package export renders a transcript as the plain-text chat history file.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"F8Chat/internal/session"
)

// ErrEmptyHistory is returned when there is nothing to export
var ErrEmptyHistory = errors.New("no chat history to save yet")

// File is a rendered history ready to be saved
type File struct {
	Name    string
	Content string
}

// Filename returns chat_history_<YYYYMMDD>_<HHMMSS>.txt for now
func Filename(now time.Time) string {
	return fmt.Sprintf("chat_history_%s.txt", now.Format("20060102_150405"))
}

// Format renders one "[HH:MM:SS] Role: content" entry per message, each
// followed by a blank line.
func Format(messages []session.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&sb, "[%s] %s: %s\n\n", msg.Clock(), msg.Role.Title(), msg.Content)
	}
	return sb.String()
}

// Build renders messages into a File named after now
func Build(messages []session.Message, now time.Time) (File, error) {
	if len(messages) == 0 {
		return File{}, ErrEmptyHistory
	}
	return File{Name: Filename(now), Content: Format(messages)}, nil
}

type exportFile interface {
	io.StringWriter
	io.Closer
}

var createFile = func(path string) (exportFile, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

// WriteFile saves f under dir and returns the full path. An existing file
// with the same name is never overwritten.
func WriteFile(dir string, f File) (string, error) {
	if f.Name == "" {
		return "", fmt.Errorf("export file has no name")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, f.Name)
	out, err := createFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if _, err := out.WriteString(f.Content); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	return path, nil
}
