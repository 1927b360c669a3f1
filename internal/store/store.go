package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"F8Chat/internal/conversation"
	"F8Chat/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

// Summary describes one archived chat
type Summary struct {
	ID           string
	StartTime    time.Time
	Model        string
	MessageCount int
}

// Archive records transcripts in SQLite. It only ever writes what the
// session already holds; chats are never restored from it.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the archive at path
func Open(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		start_time DATETIME,
		model TEXT
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		digest TEXT UNIQUE,
		session_id TEXT,
		position INTEGER,
		role TEXT,
		content TEXT,
		timestamp DATETIME,
		FOREIGN KEY(session_id) REFERENCES sessions(id)
	);`

	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	logger.Info("transcript archive opened", "path", path)
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Observe returns a session observer that archives every appended message
func (a *Archive) Observe() conversation.Observer {
	return func(ev conversation.Event) {
		if ev.Kind != conversation.EventAppended || ev.ChatID == "" {
			return
		}
		if err := a.Append(context.Background(), ev.ChatID, ev.Model, ev.StartTime, ev.Index, ev.Message); err != nil {
			a.logger.Error("failed to archive message", "chat_id", ev.ChatID, "error", err)
		}
	}
}

// Append stores msg at position in chat id. Storing the same message twice
// is a no-op.
func (a *Archive) Append(ctx context.Context, id, model string, start time.Time, position int, msg session.Message) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (id, start_time, model) VALUES (?, ?, ?)",
		id, start, model,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO messages (digest, session_id, position, role, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		Digest(id, position, msg), id, position, string(msg.Role), msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load reads an archived chat
func (a *Archive) Load(ctx context.Context, id string) (session.Record, error) {
	rec := session.Record{ID: id}
	err := a.db.QueryRowContext(ctx, "SELECT model, start_time FROM sessions WHERE id = ?", id).
		Scan(&rec.Model, &rec.StartTime)
	if err != nil {
		return session.Record{}, fmt.Errorf("session not found: %w", err)
	}

	rows, err := a.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE session_id = ? ORDER BY position",
		id,
	)
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	rec.Messages = []session.Message{}
	for rows.Next() {
		var msg session.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return session.Record{}, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = session.Role(role)
		if !msg.Role.Valid() {
			return session.Record{}, fmt.Errorf("message %d of %s has unknown role %q", len(rec.Messages), id, role)
		}
		rec.Messages = append(rec.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return session.Record{}, fmt.Errorf("failed to read messages: %w", err)
	}
	return rec, nil
}

// List returns archived chats, newest first
func (a *Archive) List(ctx context.Context) ([]Summary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.id, s.start_time, s.model, COUNT(m.id)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.start_time DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.StartTime, &s.Model, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Digest identifies a message within a chat
func Digest(id string, position int, msg session.Message) string {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{0})
	h.Write([]byte(msg.Role))
	h.Write([]byte{0})
	h.Write([]byte(msg.Content))
	return fmt.Sprintf("%x", h.Sum(nil))
}
