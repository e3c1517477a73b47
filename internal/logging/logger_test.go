package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger_WritesToLogDir(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	require.NoError(t, err)

	logger.Info("hello", "key", "value")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)

	entries := decodeLines(t, data)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0]["msg"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "value", entries[0]["key"])
}

func TestNewLogger_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	_, err = os.Stat(filepath.Join(dir, LogFileName))
	assert.NoError(t, err)
}

func TestNewLogger_EmptyDirUsesStderr(t *testing.T) {
	logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{LevelDebug, []string{"d", "i", "w", "e"}},
		{LevelInfo, []string{"i", "w", "e"}},
		{LevelWarn, []string{"w", "e"}},
		{LevelError, []string{"e"}},
		{"bogus", []string{"i", "w", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, tt.level)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			var got []string
			for _, e := range decodeLines(t, buf.Bytes()) {
				got = append(got, e["msg"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_SetLevelIsShared(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelError)
	child := root.WithTask("task-1")

	child.Info("hidden")
	root.SetLevel(LevelDebug)
	child.Debug("visible")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["msg"])
	assert.Equal(t, LevelDebug, child.Level())
}

func TestLogger_ChildAttributes(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelDebug)

	root.WithComponent("plan").WithTask("t1").WithRole("coder").Info("step")
	root.WithDebate("d1").With("round", "vote", 42, "ignored").Info("cast")
	root.Info("plain")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 3)

	assert.Equal(t, "plan", entries[0]["component"])
	assert.Equal(t, "t1", entries[0]["task_id"])
	assert.Equal(t, "coder", entries[0]["role"])

	assert.Equal(t, "d1", entries[1]["debate_id"])
	assert.Equal(t, "vote", entries[1]["round"])

	_, hasTask := entries[2]["task_id"]
	assert.False(t, hasTask, "parent logger must not inherit child attributes")
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.SetLevel(LevelDebug)
		_ = l.WithTask("t").WithRole("r")
		_ = l.With("k", "v")
		_ = l.Close()
	})
	assert.Equal(t, LevelInfo, l.Level())
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l := logger.WithTask("task")
			for j := 0; j < 50; j++ {
				l.Info("tick", "worker", n, "n", j)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, data), 400)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("Warn"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, []string{"DEBUG", "INFO", "WARN", "ERROR"}, ValidLevels())
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NopLogger().WithTask("x").Error("dropped")
	})
}
