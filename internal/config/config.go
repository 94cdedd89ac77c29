// Package config loads psytech-mcp settings from an optional YAML file and
// PSYTECH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/wagnerlima/psytech-mcp/internal/engine"
	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/logging"
)

// Config holds the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Engine    EngineConfig    `koanf:"engine"`
	Logging   logging.Config  `koanf:"logging"`
	History   HistoryConfig   `koanf:"history"`
}

// ServerConfig holds MCP transport settings.
type ServerConfig struct {
	Transport       string        `koanf:"transport"`        // stdio or http
	Port            int           `koanf:"port"`             // http only
	BearerToken     string        `koanf:"bearer_token"`     // http only; empty disables auth
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"` // http only
	SessionTimeout  time.Duration `koanf:"session_timeout"`  // http only; zero keeps idle sessions
}

// KnowledgeConfig selects the source document and how new entries are built.
type KnowledgeConfig struct {
	Path              string  `koanf:"path"`
	DefaultConfidence float64 `koanf:"default_confidence"`
	DiagnosisPrefix   string  `koanf:"diagnosis_prefix"`
	IDScheme          string  `koanf:"id_scheme"`
}

// EngineConfig tunes the inference engine.
type EngineConfig struct {
	Visibility string `koanf:"visibility"`
}

// HistoryConfig controls the in-memory consultation history.
type HistoryConfig struct {
	Enabled bool `koanf:"enabled"`
	Limit   int  `koanf:"limit"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Transport:       "stdio",
			Port:            8081,
			ShutdownTimeout: 10 * time.Second,
			SessionTimeout:  30 * time.Minute,
		},
		Knowledge: KnowledgeConfig{
			DefaultConfidence: knowledge.DefaultConfidence,
			DiagnosisPrefix:   knowledge.DefaultDiagnosisPrefix,
			IDScheme:          "sequence",
		},
		Engine: EngineConfig{
			Visibility: engine.NextPass.String(),
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		History: HistoryConfig{
			Enabled: true,
			Limit:   50,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport %q (use stdio or http)", c.Server.Transport)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.SessionTimeout < 0 {
		return errors.New("session timeout must not be negative")
	}

	if c.Knowledge.DefaultConfidence <= 0 || c.Knowledge.DefaultConfidence > 1 {
		return fmt.Errorf("default confidence %g outside (0,1]", c.Knowledge.DefaultConfidence)
	}
	if c.Knowledge.DiagnosisPrefix == "" {
		return errors.New("diagnosis prefix is required")
	}
	switch c.Knowledge.IDScheme {
	case "sequence", "uuid":
	default:
		return fmt.Errorf("invalid id scheme %q (use sequence or uuid)", c.Knowledge.IDScheme)
	}

	if _, err := engine.ParseVisibility(c.Engine.Visibility); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("history limit must be positive, got %d", c.History.Limit)
	}
	return nil
}

// KnowledgeOptions translates the knowledge section into load options.
func (c *Config) KnowledgeOptions() []knowledge.Option {
	return []knowledge.Option{
		knowledge.WithAllocator(knowledge.NewAllocator(c.Knowledge.IDScheme)),
		knowledge.WithDefaultConfidence(c.Knowledge.DefaultConfidence),
		knowledge.WithDiagnosisPrefix(c.Knowledge.DiagnosisPrefix),
	}
}

// NewEngine builds the inference engine described by the configuration.
func (c *Config) NewEngine() (*engine.Engine, error) {
	v, err := engine.ParseVisibility(c.Engine.Visibility)
	if err != nil {
		return nil, err
	}
	e := engine.New(c.Knowledge.DiagnosisPrefix)
	e.Visibility = v
	return e, nil
}
