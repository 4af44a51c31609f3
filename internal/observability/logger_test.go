package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("json output carries level and timestamp", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(LoggingConfig{Level: "debug", Format: "json"}, &buf)

		logger.Debug().Str("database", "PubMed").Msg("searching")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "PubMed", entry["database"])
		assert.Contains(t, entry, "time")
	})

	t.Run("level filters lower entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

		logger.Info().Msg("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("console format is human readable", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(LoggingConfig{Level: "info", Format: "console"}, &buf)

		logger.Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(buf.Bytes()))
	})

	t.Run("writes to a file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "service.log")
		logger := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})

		logger.Info().Msg("to file")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("unwritable path falls back to stdout", func(t *testing.T) {
		w := openOutput(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
		assert.Equal(t, os.Stdout, w)
	})

	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func decodeEntry(t *testing.T, logger zerolog.Logger, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	logger.Info().Msg("test")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithQueryContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	entry := decodeEntry(t, WithQueryContext(logger, "q-1", "PMC"), &buf)
	assert.Equal(t, "q-1", entry["query_id"])
	assert.Equal(t, "PMC", entry["database"])
}

func TestWithPaperContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	entry := decodeEntry(t, WithPaperContext(logger, "p-1", "PubMed", "23144831"), &buf)
	assert.Equal(t, "p-1", entry["paper_id"])
	assert.Equal(t, "PubMed", entry["source"])
	assert.Equal(t, "23144831", entry["identifier"])
}
