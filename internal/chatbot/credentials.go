package chatbot

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"F8Chat/internal/conversation"
)

// SecretReader reads one line without echoing it
type SecretReader func() ([]byte, error)

// TerminalSecretReader returns a reader for f when f is a terminal
func TerminalSecretReader(f *os.File) (SecretReader, bool) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, false
	}
	return func() ([]byte, error) { return term.ReadPassword(fd) }, true
}

// PromptAPIKey blocks until a non-blank API key is entered
func PromptAPIKey(read SecretReader, out io.Writer) (string, error) {
	for {
		fmt.Fprintln(out, conversation.ErrMissingCredential.Error())
		fmt.Fprint(out, "Google AI API Key: ")
		b, err := read()
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read api key: %w", err)
		}
		if key := strings.TrimSpace(string(b)); key != "" {
			return key, nil
		}
	}
}
