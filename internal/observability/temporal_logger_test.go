package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTemporalLogger(zerolog.New(&buf))

	logger.With("WorkflowID", "harvest-1").Warn("activity retry", "Attempt", 2, 42, "non-string key")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "temporal-sdk", entry["component"])
	assert.Equal(t, "harvest-1", entry["WorkflowID"])
	assert.Equal(t, float64(2), entry["Attempt"])
	assert.Equal(t, "non-string key", entry["42"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "activity retry", entry["message"])
}

func TestKeyvalToMap_OddLength(t *testing.T) {
	m := keyvalToMap([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, 1, m["a"])
	v, ok := m["dangling"]
	assert.True(t, ok)
	assert.Nil(t, v)
}
