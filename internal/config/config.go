// Package config provides configuration for workdesk.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config holds the workdesk configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Language model
	APIKey                string
	LLMProvider           string
	LLMModel              string
	LLMBaseURL            string
	ChatTemperature       float32
	SuggestionTemperature float32

	// Timeouts
	LLMTimeout        time.Duration
	TurnTimeout       time.Duration
	SuggestionTimeout time.Duration

	// Limits
	MaxWorkspaces      int
	MaxAttachmentBytes int64

	// WebSocket settings
	WSReadTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSPingInterval   time.Duration
	WSMaxMessageSize int64

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	provider := strings.ToLower(v.GetString("LLM_PROVIDER"))
	if strings.EqualFold(v.GetString("WORKDESK_MODE"), "MOCK") {
		provider = ProviderMock
	}

	return &Config{
		HTTPPort:              v.GetInt("HTTP_PORT"),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		APIKey:                v.GetString("API_KEY"),
		LLMProvider:           provider,
		LLMModel:              v.GetString("LLM_MODEL"),
		LLMBaseURL:            v.GetString("LLM_BASE_URL"),
		ChatTemperature:       float32(v.GetFloat64("CHAT_TEMPERATURE")),
		SuggestionTemperature: float32(v.GetFloat64("SUGGESTION_TEMPERATURE")),
		LLMTimeout:            millis(v, "LLM_TIMEOUT_MS"),
		TurnTimeout:           millis(v, "TURN_TIMEOUT_MS"),
		SuggestionTimeout:     millis(v, "SUGGESTION_TIMEOUT_MS"),
		MaxWorkspaces:         v.GetInt("MAX_WORKSPACES"),
		MaxAttachmentBytes:    v.GetInt64("MAX_ATTACHMENT_BYTES"),
		WSReadTimeout:         millis(v, "WS_READ_TIMEOUT_MS"),
		WSWriteTimeout:        millis(v, "WS_WRITE_TIMEOUT_MS"),
		WSPingInterval:        millis(v, "WS_PING_INTERVAL_MS"),
		WSMaxMessageSize:      v.GetInt64("WS_MAX_MESSAGE_SIZE"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogPretty:             v.GetBool("LOG_PRETTY"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DATABASE_URL", "file:workdesk.db?cache=shared&mode=rwc")
	v.SetDefault("API_KEY", "")
	v.SetDefault("LLM_PROVIDER", ProviderGemini)
	v.SetDefault("WORKDESK_MODE", "")
	v.SetDefault("LLM_MODEL", "gemini-2.5-flash")
	v.SetDefault("LLM_BASE_URL", "http://localhost:4000")
	v.SetDefault("CHAT_TEMPERATURE", 0.7)
	v.SetDefault("SUGGESTION_TEMPERATURE", 0.5)
	v.SetDefault("LLM_TIMEOUT_MS", 120000)
	v.SetDefault("TURN_TIMEOUT_MS", 300000)
	v.SetDefault("SUGGESTION_TIMEOUT_MS", 15000)
	v.SetDefault("MAX_WORKSPACES", 1024)
	v.SetDefault("MAX_ATTACHMENT_BYTES", 20<<20)
	v.SetDefault("WS_READ_TIMEOUT_MS", 60000)
	v.SetDefault("WS_WRITE_TIMEOUT_MS", 10000)
	v.SetDefault("WS_PING_INTERVAL_MS", 30000)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 65536)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Millisecond
}
