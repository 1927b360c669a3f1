package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"F8Chat/internal/session"
)

func at(h, m, s int) time.Time {
	return time.Date(2026, 3, 14, h, m, s, 0, time.Local)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "chat_history_20260314_090507.txt", Filename(at(9, 5, 7)))
}

func TestFormatOneEntryPerMessageInOrder(t *testing.T) {
	messages := []session.Message{
		{Role: session.RoleUser, Content: "hello", Timestamp: at(10, 0, 1)},
		{Role: session.RoleAssistant, Content: "hi there", Timestamp: at(10, 0, 2)},
		{Role: session.RoleUser, Content: "bye", Timestamp: at(10, 1, 0)},
	}

	got := Format(messages)
	want := "[10:00:01] User: hello\n\n" +
		"[10:00:02] Assistant: hi there\n\n" +
		"[10:01:00] User: bye\n\n"
	assert.Equal(t, want, got)

	entries := strings.Split(strings.TrimSuffix(got, "\n\n"), "\n\n")
	assert.Len(t, entries, len(messages))
}

func TestFormatKeepsMultilineContent(t *testing.T) {
	got := Format([]session.Message{{Role: session.RoleAssistant, Content: "a\nb", Timestamp: at(1, 2, 3)}})
	assert.Equal(t, "[01:02:03] Assistant: a\nb\n\n", got)
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil, at(0, 0, 0))
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	f, err := Build([]session.Message{{Role: session.RoleUser, Content: "hello", Timestamp: at(8, 0, 0)}}, at(8, 0, 5))
	require.NoError(t, err)

	path, err := WriteFile(dir, f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat_history_20260314_080005.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[08:00:00] User: hello\n\n", string(data))

	_, err = WriteFile(dir, f)
	assert.Error(t, err, "existing export must not be overwritten")
}

type failingFile struct {
	*os.File
}

func (f failingFile) WriteString(string) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteFileRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	f, err := Build([]session.Message{{Role: session.RoleUser, Content: "hello", Timestamp: at(8, 0, 0)}}, at(8, 0, 5))
	require.NoError(t, err)

	orig := createFile
	createFile = func(path string) (exportFile, error) {
		out, err := orig(path)
		if err != nil {
			return nil, err
		}
		return failingFile{out.(*os.File)}, nil
	}
	t.Cleanup(func() { createFile = orig })

	_, err = WriteFile(dir, f)
	require.ErrorContains(t, err, "disk full")
	assert.NoFileExists(t, filepath.Join(dir, f.Name))

	createFile = orig
	path, err := WriteFile(dir, f)
	require.NoError(t, err, "retry in the same second must succeed")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[08:00:00] User: hello\n\n", string(data))
}
