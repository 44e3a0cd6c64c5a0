package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout())
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
	assert.Equal(t, 0, cfg.Session.HistoryCapacity)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.SQLite.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: gpt-4o-mini\n")
	t.Setenv("RISK_ASSESS_LLM_APIKEY", "secret")
	t.Setenv("RISK_ASSESS_SESSION_HISTORYCAPACITY", "25")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, 25, cfg.Session.HistoryCapacity)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "port out of range", body: "server:\n  port: 70000\n"},
		{name: "temperature too high", body: "llm:\n  temperature: 3.5\n"},
		{name: "no sessions", body: "session:\n  maxSessions: 0\n"},
		{name: "negative history capacity", body: "session:\n  historyCapacity: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
