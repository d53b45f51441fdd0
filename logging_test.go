package cmt

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Contains(t, LogLevel(99).String(), "UNKNOWN")
}

func TestNoOpLogger_DiscardsEverything(t *testing.T) {
	l := NewNoOpLogger()
	assert.False(t, l.IsEnabled(LevelError))
	assert.NotPanics(t, func() { l.Log(LogEntry{Level: LevelError, Message: "boom"}) })
}

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cmt-log-*.json")
	require.NoError(t, err)
	defer f.Close()

	l := &DefaultLogger{Out: f}
	l.SetLevel(LevelWarn)

	assert.False(t, l.IsEnabled(LevelInfo))
	assert.True(t, l.IsEnabled(LevelWarn))
	assert.True(t, l.IsEnabled(LevelError))

	l.Log(LogEntry{Level: LevelInfo, Category: "test", Message: "should be dropped"})
	l.Log(LogEntry{Level: LevelWarn, Category: "test", Message: "should be kept"})

	content := readFile(t, f.Name())
	lines := nonEmptyLines(content)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "should be kept")
	assert.Contains(t, lines[0], `"level":"WARN"`)
}

func TestDefaultLogger_JSONIncludesContextAndError(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cmt-log-*.json")
	require.NoError(t, err)
	defer f.Close()

	l := NewDefaultLogger(LevelDebug)
	l.Out = f

	l.Log(LogEntry{
		Level:    LevelError,
		Category: "rcrx",
		Core:     1,
		MsgID:    0x42,
		Message:  "disabled after threshold",
		Err:      errors.New("too many errors"),
		Context:  map[string]any{"errorsSinceReset": 10},
	})

	line := strings.TrimSpace(readFile(t, f.Name()))
	assert.Contains(t, line, `"category":"rcrx"`)
	assert.Contains(t, line, `"core":1`)
	assert.Contains(t, line, `"msg":66`)
	assert.Contains(t, line, `"error":"too many errors"`)
	assert.Contains(t, line, `"errorsSinceReset":10`)
}

func TestSetStructuredLogger_InstallsGlobalLogger(t *testing.T) {
	defer SetStructuredLogger(nil)

	f, err := os.CreateTemp(t.TempDir(), "cmt-log-*.json")
	require.NoError(t, err)
	defer f.Close()

	l := NewDefaultLogger(LevelWarn)
	l.Out = f
	SetStructuredLogger(l)

	logWarn("queue", "ring full, message dropped", Core0, 0x9, nil)

	line := strings.TrimSpace(readFile(t, f.Name()))
	assert.Contains(t, line, "ring full, message dropped")
}

func TestGetGlobalLogger_DefaultsToNoOp(t *testing.T) {
	SetStructuredLogger(nil)
	l := getGlobalLogger()
	assert.False(t, l.IsEnabled(LevelDebug))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func nonEmptyLines(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out
}
