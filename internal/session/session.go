package session

import (
	"strings"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Title returns the capitalized role name used in exports and rendering
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents a single chat message. Messages are never edited
// after they are appended to a transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Clock returns the wall-clock time shown next to a message
func (m Message) Clock() string {
	return m.Timestamp.Format("15:04:05")
}

// Record is an archived chat: one remote handle and the messages exchanged on it
type Record struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
}
