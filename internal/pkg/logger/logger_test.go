package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := Level()
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel(prev)
	})
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestGetReturnsSameLogger(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordsAreJSONWithService(t *testing.T) {
	buf := capture(t)
	SetLevel(slog.LevelInfo)

	Info("Switch listening", "addr", "127.0.0.1:8583")
	Error("Cannot answer request", "mti", "0200")

	recs := lines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "paycat", recs[0]["service"])
	assert.Equal(t, "127.0.0.1:8583", recs[0]["addr"])
	assert.Equal(t, "ERROR", recs[1]["level"])
}

func TestWithCarriesAttributes(t *testing.T) {
	buf := capture(t)
	SetLevel(slog.LevelInfo)

	With("session_id", "abc").Warn("Session idle timeout")

	recs := lines(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "abc", recs[0]["session_id"])
	assert.Equal(t, "paycat", recs[0]["service"])
}

func TestSetLevelFiltersOutput(t *testing.T) {
	buf := capture(t)

	SetLevel(slog.LevelWarn)
	Info("hidden message")
	Debug("hidden debug")
	Warn("visible message")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible message")

	buf.Reset()
	SetLevel(slog.LevelDebug)
	Debug("debug now visible")
	assert.Contains(t, buf.String(), "debug now visible")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
