package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		entries = append(entries, m)
	}
	return entries
}

func TestTurnLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	l.WithComponent("engine").WithSession("s1", "t1").With("user", "u1").Info("hello", "k", 1)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "hello", e["msg"])
	assert.Equal(t, "engine", e["component"])
	assert.Equal(t, "s1", e["session_id"])
	assert.Equal(t, "t1", e["turn_id"])
	assert.Equal(t, "u1", e["user"])
	assert.EqualValues(t, 1, e["k"])
}

func TestTurnLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})
	_ = base.With("child", true)

	base.Info("parent")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	_, ok := entries[0]["child"]
	assert.False(t, ok)
}

func TestTurnLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.LogTask("response", "weather", "success", time.Millisecond, nil)
	l.LogTask("response", "weather", "missing", time.Millisecond, errors.New("timeout"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "timeout", entries[0]["error"])
	assert.Equal(t, "weather", entries[0]["task"])
}

func TestTurnLogger_Summaries(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	l.LogPhase("annotation", 5*time.Millisecond, map[string]int{"success": 3})
	l.LogTurn(10*time.Millisecond, "weather", "news", nil)
	l.LogTurn(10*time.Millisecond, "", "", errors.New("exhausted"))
	l.StartTimer("state_update")()
	l.Info("odd", "dangling")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 5)
	assert.EqualValues(t, 3, entries[0]["count_success"])
	assert.Equal(t, "weather", entries[1]["responder"])
	assert.Equal(t, "ERROR", entries[2]["level"])
	assert.Equal(t, "state_update", entries[3]["operation"])
	assert.Equal(t, "dangling", entries[4]["!BADKEY"])
}

func TestNewSlogLogger_TextFormat(t *testing.T) {
	l := NewSlogLogger(LogLevelDebug, "text", false)
	require.NotNil(t, l)
	assert.Equal(t, LogLevelDebug, l.level)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("chatty"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(9).String())
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))

	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}

func TestForTurn(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	scoped := ForTurn(l, "s1", "t1")
	Phase(scoped, "response", time.Millisecond, map[string]int{"success": 2})
	Turn(scoped, time.Millisecond, "weather", "", nil)
	Turn(scoped, time.Millisecond, "", "", errors.New("turn deadline exceeded"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "s1", e["session_id"])
		assert.Equal(t, "t1", e["turn_id"])
	}
	assert.Equal(t, "Phase completed", entries[0]["msg"])
	assert.EqualValues(t, 2, entries[0]["count_success"])
	assert.Equal(t, "Turn completed", entries[1]["msg"])
	assert.Equal(t, "weather", entries[1]["responder"])
	assert.Equal(t, "Turn failed", entries[2]["msg"])
	assert.Equal(t, "ERROR", entries[2]["level"])
}

type recordingLogger struct {
	NoOpLogger
	msgs [][]any
}

func (r *recordingLogger) Info(msg string, args ...any) {
	r.msgs = append(r.msgs, append([]any{msg}, args...))
}

func TestForTurn_PlainLogger(t *testing.T) {
	rec := &recordingLogger{}

	Turn(ForTurn(rec, "s1", "t1"), time.Second, "news", "fallback", nil)

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, []any{"Turn completed", "session_id", "s1", "turn_id", "t1",
		"duration", time.Second, "responder", "news", "prompter", "fallback"}, rec.msgs[0])
}
