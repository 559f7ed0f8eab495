package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sigdesk/internal/domain"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)

	sig := s.SignatureConfig()
	assert.Equal(t, domain.DefaultStatusSets(), sig.Statuses)
	assert.Equal(t, 24*time.Hour, sig.CacheTTL)
	assert.Equal(t, 30*time.Second, sig.LockTimeout)
	assert.Equal(t, "status:DEPLOYED", sig.DefaultQuery)
	assert.NotEmpty(t, s.AI.ReportSystemMessage)
}

func TestLoadSettingsOverrides(t *testing.T) {
	path := writeSettings(t, `
signature:
  cache_ttl: 1h
  lock_timeout: 5s
  statuses:
    draft: [STAGING, TESTING, DISABLED]
    deployed: [DEPLOYED]
    stale: [DISABLED]
    non_exclusive: [DISABLED, TESTING]
ai:
  max_tokens: 64
  headers:
    X-Tenant: lab
`)
	s, err := LoadSettings(path)
	require.NoError(t, err)

	sig := s.SignatureConfig()
	assert.Equal(t, time.Hour, sig.CacheTTL)
	assert.Equal(t, 5*time.Second, sig.LockTimeout)
	assert.Equal(t, []string{"DEPLOYED"}, sig.Statuses.Deployed)
	assert.Equal(t, 20, sig.StatsWorkers)

	aiCfg := s.AIConfig(&Config{AIChatURL: "http://ai", AIModel: "m", AIAPIKey: "secret"})
	assert.Equal(t, 64, aiCfg.MaxTokens)
	assert.Equal(t, "lab", aiCfg.Headers["X-Tenant"])
	assert.Equal(t, "Bearer secret", aiCfg.Headers["Authorization"])
	assert.Equal(t, "http://ai", aiCfg.ChatURL)
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown field", content: "signatures: {}\n"},
		{name: "overlapping sets", content: "signature:\n  statuses:\n    draft: [DEPLOYED]\n    deployed: [DEPLOYED]\n"},
		{name: "bad duration", content: "signature:\n  cache_ttl: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeSettings(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSettingsEmptyFile(t *testing.T) {
	s, err := LoadSettings(writeSettings(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().Signature.DefaultQuery, s.Signature.DefaultQuery)
}
