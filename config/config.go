// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the process-wide, immutable-after-startup configuration
// described in spec §6. It is loaded once at startup by InitConfig +
// GetApplicationConfig and passed by value/pointer into every component.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// BotTokenSecret signs the JWT handed to edge devices as their room
	// join credential (facade's /connect response).
	BotTokenSecret string `mapstructure:"bot_token_secret" validate:"required"`

	Transport TransportConfig `mapstructure:"transport"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Session   SessionConfig   `mapstructure:"session"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Tooling   ToolingConfig   `mapstructure:"tooling"`
}

type TransportConfig struct {
	APIKey string `mapstructure:"api_key" validate:"required"`
}

type LLMConfig struct {
	APIKey            string `mapstructure:"api_key" validate:"required"`
	Provider          string `mapstructure:"provider" validate:"required"` // "openai" | "anthropic"
	ModelID           string `mapstructure:"model_id" validate:"required"`
	ContextTurns      int    `mapstructure:"context_turns"`
	TurnTimeoutSecond int    `mapstructure:"turn_timeout_seconds"`
	MaxConsecutiveErr int    `mapstructure:"max_consecutive_llm_failures"`
}

type SearchConfig struct {
	Provider       string `mapstructure:"provider"` // "opensearch" (or empty); cmd/clipcast rejects any other value, including "mcp"
	Endpoint       string `mapstructure:"endpoint"`
	Index          string `mapstructure:"index"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SessionConfig struct {
	ConnectTimeoutSeconds  int `mapstructure:"connect_timeout_seconds"`
	IdleTimeoutSeconds     int `mapstructure:"idle_timeout_seconds"`
	TransportGraceSeconds  int `mapstructure:"transport_grace_seconds"`
	ReaperIntervalSeconds  int `mapstructure:"reaper_interval_seconds"`
	CleanupTimeoutSeconds  int `mapstructure:"cleanup_timeout_seconds"`
}

type JournalConfig struct {
	RetentionEntries int `mapstructure:"retention_entries"`
}

type ToolingConfig struct {
	StrictClipValidation bool `mapstructure:"strict_clip_validation"`
}

// ConnectTimeout and the accessors below convert the int-seconds config
// fields into time.Duration with spec §6/§4.6 defaults substituted for zero
// values.
func (c *SessionConfig) ConnectTimeout() time.Duration {
	return secondsOr(c.ConnectTimeoutSeconds, 120)
}

func (c *SessionConfig) IdleTimeout() time.Duration {
	return secondsOr(c.IdleTimeoutSeconds, 60)
}

func (c *SessionConfig) TransportGrace() time.Duration {
	return secondsOr(c.TransportGraceSeconds, 15)
}

func (c *SessionConfig) ReaperInterval() time.Duration {
	return secondsOr(c.ReaperIntervalSeconds, 10)
}

func (c *SessionConfig) CleanupTimeout() time.Duration {
	return secondsOr(c.CleanupTimeoutSeconds, 10)
}

func (c *LLMConfig) TurnTimeout() time.Duration {
	return secondsOr(c.TurnTimeoutSecond, 30)
}

func (c *SearchConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSeconds, 5)
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// InitConfig loads configuration from an optional .env file, falling back to
// environment variables, the same pattern as the teacher's
// api/integration-api/config/config.go.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("loading config from env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefaults(vConfig)

	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("no .env file found, reading from environment variables only: %v", err)
	}

	return vConfig, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "clipcast-orchestrator")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("BOT_TOKEN_SECRET", "dev-secret-change-me")

	v.SetDefault("TRANSPORT__API_KEY", "")

	v.SetDefault("LLM__PROVIDER", "openai")
	v.SetDefault("LLM__MODEL_ID", "gpt-4o-mini")
	v.SetDefault("LLM__CONTEXT_TURNS", 12)
	v.SetDefault("LLM__TURN_TIMEOUT_SECONDS", 30)
	v.SetDefault("LLM__MAX_CONSECUTIVE_LLM_FAILURES", 5)

	v.SetDefault("SEARCH__PROVIDER", "opensearch")
	v.SetDefault("SEARCH__TIMEOUT_SECONDS", 5)
	v.SetDefault("SEARCH__INDEX", "clips")

	v.SetDefault("SESSION__CONNECT_TIMEOUT_SECONDS", 120)
	v.SetDefault("SESSION__IDLE_TIMEOUT_SECONDS", 60)
	v.SetDefault("SESSION__TRANSPORT_GRACE_SECONDS", 15)
	v.SetDefault("SESSION__REAPER_INTERVAL_SECONDS", 10)
	v.SetDefault("SESSION__CLEANUP_TIMEOUT_SECONDS", 10)

	v.SetDefault("JOURNAL__RETENTION_ENTRIES", 1000)

	v.SetDefault("TOOLING__STRICT_CLIP_VALIDATION", false)
}

// GetApplicationConfig unmarshals and validates the loaded viper config.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("failed to unmarshal config: %+v", err)
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		log.Printf("config validation failed: %+v", err)
		return nil, err
	}

	return &cfg, nil
}
