package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/psytech-mcp/internal/engine"
	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 0.7, cfg.Knowledge.DefaultConfidence)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  transport: http
  port: 9000
  shutdown_timeout: 5s
  session_timeout: 2m
knowledge:
  path: /srv/kb.yaml
  id_scheme: uuid
engine:
  visibility: same_pass
history:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.SessionTimeout)
	assert.Equal(t, "/srv/kb.yaml", cfg.Knowledge.Path)
	assert.Equal(t, "uuid", cfg.Knowledge.IDScheme)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 50, cfg.History.Limit, "unset keys keep defaults")
	assert.Equal(t, "d_", cfg.Knowledge.DiagnosisPrefix)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("PSYTECH_SERVER_PORT", "9100")
	t.Setenv("PSYTECH_SERVER_BEARER_TOKEN", "secret")
	t.Setenv("PSYTECH_KNOWLEDGE_DEFAULT_CONFIDENCE", "0.55")
	t.Setenv("PSYTECH_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.BearerToken)
	assert.Equal(t, 0.55, cfg.Knowledge.DefaultConfidence)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "server:\n  transport: carrier-pigeon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transport")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"session timeout", func(c *Config) { c.Server.SessionTimeout = -time.Second }},
		{"confidence", func(c *Config) { c.Knowledge.DefaultConfidence = 1.1 }},
		{"prefix", func(c *Config) { c.Knowledge.DiagnosisPrefix = "" }},
		{"scheme", func(c *Config) { c.Knowledge.IDScheme = "random" }},
		{"visibility", func(c *Config) { c.Engine.Visibility = "sometimes" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"history limit", func(c *Config) { c.History.Limit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewEngine(t *testing.T) {
	cfg := Default()
	cfg.Knowledge.DiagnosisPrefix = "dx:"
	cfg.Engine.Visibility = "same_pass"

	e, err := cfg.NewEngine()
	require.NoError(t, err)
	assert.Equal(t, "dx:", e.DiagnosisPrefix)
	assert.Equal(t, engine.SamePass, e.Visibility)
}

func TestNewEngine_BadVisibility(t *testing.T) {
	cfg := Default()
	cfg.Engine.Visibility = "sideways"

	_, err := cfg.NewEngine()
	assert.Error(t, err)
}

func TestKnowledgeOptions(t *testing.T) {
	cfg := Default()
	cfg.Knowledge.DiagnosisPrefix = "dx:"
	cfg.Knowledge.DefaultConfidence = 0.4

	b, err := knowledge.Load(knowledge.DefaultDocument(), cfg.KnowledgeOptions()...)
	require.NoError(t, err)

	r, err := b.AddRule([]string{"s1"}, "X", nil)
	require.NoError(t, err)
	assert.Equal(t, "dx:r8", r.Then.ID)
	assert.Equal(t, 0.4, r.Confidence)
}
