// Package config loads runtime configuration from a YAML file and
// TRACKLANE_* environment variables. Environment variables win.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tracklane/tracklane/internal/commands"
)

// Config is the resolved runtime configuration.
type Config struct {
	DatabasePath string

	AnthropicAPIKey string
	AnthropicModel  string

	ResendAPIKey string
	MailFrom     string
	BaseURL      string

	AgentMaxSteps    int
	AgentTurnTimeout time.Duration

	TelemetryEnabled  bool
	TelemetryExporter string // "stdout" or "otlp"
}

// Defaults applied when neither the file nor the environment sets a key.
const (
	DefaultDatabasePath   = "tracklane.db"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultAgentMaxSteps  = commands.MaxAgentSteps
	DefaultTurnTimeout    = 30 * time.Second
)

// Load reads configuration from the given file path (missing file is fine)
// and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TRACKLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("anthropic.model", DefaultAnthropicModel)
	v.SetDefault("agent.max_steps", DefaultAgentMaxSteps)
	v.SetDefault("agent.turn_timeout", DefaultTurnTimeout.String())
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")

	// Missing config file is fine; env vars and defaults still apply.
	// A file that exists but fails to parse is an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("agent.turn_timeout"))
	if err != nil {
		return nil, fmt.Errorf("agent.turn_timeout: %w", err)
	}

	cfg := &Config{
		DatabasePath:      v.GetString("database.path"),
		AnthropicAPIKey:   v.GetString("anthropic.api_key"),
		AnthropicModel:    v.GetString("anthropic.model"),
		ResendAPIKey:      v.GetString("resend.api_key"),
		MailFrom:          v.GetString("mail.from"),
		BaseURL:           v.GetString("base_url"),
		AgentMaxSteps:     v.GetInt("agent.max_steps"),
		AgentTurnTimeout:  timeout,
		TelemetryEnabled:  v.GetBool("telemetry.enabled"),
		TelemetryExporter: v.GetString("telemetry.exporter"),
	}
	if cfg.AgentMaxSteps <= 0 {
		cfg.AgentMaxSteps = DefaultAgentMaxSteps
	}
	return cfg, nil
}
