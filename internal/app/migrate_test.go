package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/config"
)

func TestMigrationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     MigrationRequest
		wantErr string
	}{
		{"up", MigrationRequest{Action: MigrateUp}, ""},
		{"down", MigrationRequest{Action: MigrateDown}, ""},
		{"version", MigrationRequest{Action: MigrateVersion}, ""},
		{"drop", MigrationRequest{Action: MigrateDrop}, ""},
		{"steps forward", MigrationRequest{Action: MigrateSteps, N: 2}, ""},
		{"steps back", MigrationRequest{Action: MigrateSteps, N: -1}, ""},
		{"zero steps", MigrationRequest{Action: MigrateSteps}, "steps must be non-zero"},
		{"force zero", MigrationRequest{Action: MigrateForce, N: 0}, ""},
		{"force negative", MigrationRequest{Action: MigrateForce, N: -1}, "must not be negative"},
		{"unknown", MigrationRequest{Action: "sideways"}, "unknown migration action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrate_RejectsInvalidRequestBeforeConnecting(t *testing.T) {
	_, err := Migrate(context.Background(), &config.Config{}, MigrationRequest{Action: MigrateSteps}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps must be non-zero")
}
