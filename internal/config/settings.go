package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/sigdesk/internal/ai"
	"github.com/MrSnakeDoc/sigdesk/internal/classification"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/signature"
)

// Settings is the domain configuration read from SIGDESK_SETTINGS_FILE.
// Missing sections keep their defaults.
type Settings struct {
	Classification classification.Definition `yaml:"classification"`
	Signature      SignatureSettings         `yaml:"signature"`
	AI             AISettings                `yaml:"ai"`
}

type SignatureSettings struct {
	Statuses     domain.StatusSets `yaml:"statuses"`
	CacheTTL     time.Duration     `yaml:"cache_ttl"`
	LockTimeout  time.Duration     `yaml:"lock_timeout"`
	DefaultQuery string            `yaml:"default_query"`
	StatsWorkers int               `yaml:"stats_workers"`
}

type AISettings struct {
	MaxTokens           int               `yaml:"max_tokens"`
	Headers             map[string]string `yaml:"headers"`
	Options             map[string]any    `yaml:"options"`
	ReportSystemMessage string            `yaml:"report_system_message"`
	CodeSystemMessage   string            `yaml:"code_system_message"`
}

const (
	defaultReportMessage = "You are an assistant that summarizes the output of a malware analysis " +
		"system. The report is provided in YAML. Explain in a few short paragraphs what the " +
		"file is, what it does and whether it should be considered malicious."
	defaultCodeMessage = "You are an assistant that explains code snippets extracted from files " +
		"under malware analysis. Describe what the code does and point out anything malicious."
)

// DefaultSettings returns the stock domain configuration.
func DefaultSettings() Settings {
	sig := signature.DefaultConfig()
	return Settings{
		Classification: classification.DefaultDefinition(),
		Signature: SignatureSettings{
			Statuses:     sig.Statuses,
			CacheTTL:     sig.CacheTTL,
			LockTimeout:  sig.LockTimeout,
			DefaultQuery: sig.DefaultQuery,
			StatsWorkers: sig.StatsWorkers,
		},
		AI: AISettings{
			MaxTokens:           1024,
			ReportSystemMessage: defaultReportMessage,
			CodeSystemMessage:   defaultCodeMessage,
		},
	}
}

// LoadSettings reads path over the defaults. An empty path returns the
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.SignatureConfig().Statuses.Validate(); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// SignatureConfig converts the signature section for the signature manager.
func (s Settings) SignatureConfig() signature.Config {
	cfg := signature.DefaultConfig()
	cfg.Statuses = s.Signature.Statuses
	if s.Signature.CacheTTL > 0 {
		cfg.CacheTTL = s.Signature.CacheTTL
	}
	if s.Signature.LockTimeout > 0 {
		cfg.LockTimeout = s.Signature.LockTimeout
	}
	if s.Signature.DefaultQuery != "" {
		cfg.DefaultQuery = s.Signature.DefaultQuery
	}
	if s.Signature.StatsWorkers > 0 {
		cfg.StatsWorkers = s.Signature.StatsWorkers
	}
	return cfg
}

// AIConfig combines the AI section with the environment.
func (s Settings) AIConfig(cfg *Config) ai.Config {
	headers := make(map[string]string, len(s.AI.Headers)+1)
	for k, v := range s.AI.Headers {
		headers[k] = v
	}
	if cfg.AIAPIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.AIAPIKey
	}
	return ai.Config{
		ChatURL:             cfg.AIChatURL,
		Model:               cfg.AIModel,
		MaxTokens:           s.AI.MaxTokens,
		Headers:             headers,
		Options:             s.AI.Options,
		ReportSystemMessage: s.AI.ReportSystemMessage,
		CodeSystemMessage:   s.AI.CodeSystemMessage,
		Timeout:             cfg.AITimeout,
	}
}
