package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_InvalidLevel(t *testing.T) {
	assert.Error(t, Setup(LogConfig{Level: "loud"}))
}

func TestSetup_JSONFileWithComponent(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	path := filepath.Join(t.TempDir(), "billing.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))

	WithComponent("dispatcher").Debug().Str("queue", "jobs:invoice_email").Msg("started")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "dispatcher", entry["component"])
	assert.Equal(t, "jobs:invoice_email", entry["queue"])
	assert.Equal(t, "started", entry["message"])
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
