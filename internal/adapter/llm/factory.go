package llm

import (
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/config"
)

// NewProvider creates the provider selected by cfg.LLMProvider.
func NewProvider(cfg *config.Config, logger zerolog.Logger) Provider {
	switch cfg.LLMProvider {
	case config.ProviderMock:
		logger.Info().Msg("mock mode detected, using mock LLM provider")
		return NewMockProvider()
	case config.ProviderOpenAI:
		logger.Info().Str("base_url", cfg.LLMBaseURL).Str("model", cfg.LLMModel).Msg("using OpenAI-compatible LLM provider")
		return NewOpenAIProvider(cfg.LLMBaseURL, cfg.APIKey, cfg.LLMModel, cfg.LLMTimeout)
	default:
		if cfg.APIKey == "" {
			logger.Warn().Msg("API_KEY is not set; every model call will fail until it is configured")
		}
		return NewGeminiProvider(cfg.APIKey, cfg.LLMModel, cfg.LLMTimeout)
	}
}
