package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestUserContext(t *testing.T) {
	ctx := WithUser(context.Background(), "alice")
	assert.Equal(t, "alice", UserFromContext(ctx))
	assert.Equal(t, "", UserFromContext(context.Background()))
}

func TestWorkflowContext(t *testing.T) {
	ctx := WithWorkflow(context.Background(), "harvest-abc", "run-1")

	workflowID, runID := WorkflowFromContext(ctx)
	assert.Equal(t, "harvest-abc", workflowID)
	assert.Equal(t, "run-1", runID)

	workflowID, runID = WorkflowFromContext(context.Background())
	assert.Empty(t, workflowID)
	assert.Empty(t, runID)
}

func TestContextKeysDoNotCollide(t *testing.T) {
	ctx := context.WithValue(context.Background(), "request_id", "plain-string-key")
	assert.Equal(t, "", RequestIDFromContext(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	t.Run("adds present fields", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithRequestID(context.Background(), "req-9")
		ctx = WithUser(ctx, "bob")

		log := LoggerFromContext(ctx, zerolog.New(&buf))
		log.Info().Msg("x")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-9", entry["request_id"])
		assert.Equal(t, "bob", entry["user"])
		assert.NotContains(t, entry, "workflow_id")
	})

	t.Run("leaves logger untouched without fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := LoggerFromContext(context.Background(), zerolog.New(&buf))
		log.Info().Msg("x")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "user")
	})
}
